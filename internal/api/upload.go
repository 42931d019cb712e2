package api

import (
	"encoding/json"
	"net/http"

	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/protocol"
)

func (s *Server) handleUploadSession(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.UploadSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	origin := req.Origin
	if origin == "" {
		origin = r.Header.Get("Origin")
	}

	url, provider, err := s.svc.StartUpload(r.Context(), claims.UserID, req.FileName, req.MimeType, req.Size, req.FolderID, origin)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.UploadSessionResponse{
		UploadURL: url,
		Provider:  provider,
	})
}

// handleProxyUpload accepts small files as multipart form data and
// stores them through the server, one at a time. The resumable session
// flow is the primary path; this one exists for clients that cannot
// talk to the provider directly.
func (s *Server) handleProxyUpload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	folderID := r.FormValue("folder_id")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		s.sendError(w, http.StatusBadRequest, "no files provided")
		return
	}

	uploaded := []protocol.FileResponse{}
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			s.sendError(w, http.StatusBadRequest, "unreadable file part: "+fh.Filename)
			return
		}

		mimeType := fh.Header.Get("Content-Type")
		f, err := s.svc.ProxyUpload(r.Context(), claims.UserID, fh.Filename, mimeType, fh.Size, folderID, src)
		src.Close()
		if err != nil {
			s.sendServiceError(w, err)
			return
		}
		uploaded = append(uploaded, fileResponse(f))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(protocol.FileListResponse{Files: uploaded})
}

func (s *Server) handleUploadFinalize(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.FinalizeUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := s.svc.FinalizeUpload(r.Context(), claims.UserID,
		req.FileName, req.MimeType, req.Size, req.FolderID, req.Provider, req.ExternalID,
		req.ViewURL, req.DownloadURL)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(fileResponse(f))
}
