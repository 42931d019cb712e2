package api

import (
	"encoding/json"
	"net/http"

	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/protocol"
)

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	folderID := r.URL.Query().Get("folder_id")
	trash := r.URL.Query().Get("trash") == "true"

	fs, err := s.svc.List(r.Context(), claims.UserID, folderID, trash)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := protocol.FileListResponse{Files: []protocol.FileResponse{}}
	for i := range fs {
		resp.Files = append(resp.Files, fileResponse(&fs[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	f, err := s.svc.Get(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fileResponse(f))
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	url, err := s.svc.DownloadURL(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"download_url": url})
}

func (s *Server) handleRenameFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.Rename(r.Context(), claims.UserID, r.PathValue("id"), req.Name); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"name": req.Name})
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.MoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.Move(r.Context(), claims.UserID, r.PathValue("id"), req.FolderID); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"folder_id": req.FolderID})
}

func (s *Server) handleStarFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req struct {
		Starred bool `json:"starred"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.SetStarred(r.Context(), claims.UserID, r.PathValue("id"), req.Starred); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"starred": req.Starred})
}

func (s *Server) handleShareFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	token, err := s.svc.MakePublic(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.ShareResponse{
		ShareToken: token,
		ShareURL:   s.config.PublicBaseURL + "/share/" + token,
	})
}

func (s *Server) handleTrashFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	warning, err := s.svc.Trash(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	resp := map[string]interface{}{"trashed": true}
	if warning != "" {
		resp["warning"] = warning
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleRestoreFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if err := s.svc.Restore(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"restored": true})
}

func (s *Server) handlePermanentDeleteFile(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if err := s.svc.PermanentDelete(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"deleted": true})
}
