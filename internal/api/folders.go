package api

import (
	"encoding/json"
	"net/http"

	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/protocol"
)

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	f, err := s.svc.CreateFolder(r.Context(), claims.UserID, req.Name, req.ParentID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(folderResponse(f))
}

// handleListFolders lists folders under a parent together with the files
// in it, so one call renders a directory view.
func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	parentID := r.URL.Query().Get("parent_id")
	trash := r.URL.Query().Get("trash") == "true"

	folders, err := s.svc.ListFolders(r.Context(), claims.UserID, parentID, trash)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	fs, err := s.svc.List(r.Context(), claims.UserID, parentID, trash)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := protocol.FolderListResponse{
		Folders: []protocol.FolderResponse{},
		Files:   []protocol.FileResponse{},
	}
	for i := range folders {
		resp.Folders = append(resp.Folders, folderResponse(&folders[i]))
	}
	for i := range fs {
		resp.Files = append(resp.Files, fileResponse(&fs[i]))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleGetFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	f, err := s.svc.GetFolder(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(folderResponse(f))
}

func (s *Server) handleRenameFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())

	var req protocol.RenameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.RenameFolder(r.Context(), claims.UserID, r.PathValue("id"), req.Name); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"name": req.Name})
}

func (s *Server) handleTrashFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if err := s.svc.TrashFolder(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"trashed": true})
}

func (s *Server) handleRestoreFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if err := s.svc.RestoreFolder(r.Context(), claims.UserID, r.PathValue("id")); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"restored": true})
}

func (s *Server) handlePurgeFolder(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	result, err := s.svc.PurgeFolder(r.Context(), claims.UserID, r.PathValue("id"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	// Partial purges report per-file failures but still 200: the caller
	// inspects the aggregate and may retry.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.PurgeResponse{
		Deleted: result.Deleted,
		Failed:  result.Failed,
		Errors:  result.Errors,
	})
}
