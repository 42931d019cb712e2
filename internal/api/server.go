// Package api provides the HTTP server and handlers.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/config"
	"github.com/peardrive/peardrive/internal/events"
	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/notify"
	"github.com/peardrive/peardrive/internal/protocol"
	"github.com/peardrive/peardrive/internal/storage"
)

// Server is the HTTP server.
type Server struct {
	svc         *files.Service
	notifier    *notify.Notifier
	auth        *auth.Auth
	broadcaster *events.Broadcaster
	config      *config.Config
}

// NewServer creates a new server.
func NewServer(svc *files.Service, notifier *notify.Notifier, authHandler *auth.Auth, broadcaster *events.Broadcaster, cfg *config.Config) *Server {
	return &Server{
		svc:         svc,
		notifier:    notifier,
		auth:        authHandler,
		broadcaster: broadcaster,
		config:      cfg,
	}
}

// Handler returns the HTTP handler with auth and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints (no auth required)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/token", s.auth.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/register", s.auth.HandleRegister)

	// Public share endpoints (no auth)
	mux.HandleFunc("GET /share/{token}", s.handleShareInfo)
	mux.HandleFunc("GET /share/{token}/download", s.handleShareDownload)

	// Protected endpoints
	protected := http.NewServeMux()

	// Upload endpoints
	protected.HandleFunc("POST /api/v1/uploads", s.handleProxyUpload)
	protected.HandleFunc("POST /api/v1/uploads/session", s.handleUploadSession)
	protected.HandleFunc("POST /api/v1/uploads/finalize", s.handleUploadFinalize)

	// File endpoints
	protected.HandleFunc("GET /api/v1/files", s.handleListFiles)
	protected.HandleFunc("GET /api/v1/files/{id}", s.handleGetFile)
	protected.HandleFunc("GET /api/v1/files/{id}/download", s.handleDownload)
	protected.HandleFunc("PATCH /api/v1/files/{id}/rename", s.handleRenameFile)
	protected.HandleFunc("PATCH /api/v1/files/{id}/move", s.handleMoveFile)
	protected.HandleFunc("PATCH /api/v1/files/{id}/star", s.handleStarFile)
	protected.HandleFunc("POST /api/v1/files/{id}/share", s.handleShareFile)
	protected.HandleFunc("DELETE /api/v1/files/{id}", s.handleTrashFile)
	protected.HandleFunc("POST /api/v1/files/{id}/restore", s.handleRestoreFile)
	protected.HandleFunc("DELETE /api/v1/files/{id}/permanent", s.handlePermanentDeleteFile)

	// Folder endpoints
	protected.HandleFunc("POST /api/v1/folders", s.handleCreateFolder)
	protected.HandleFunc("GET /api/v1/folders", s.handleListFolders)
	protected.HandleFunc("GET /api/v1/folders/{id}", s.handleGetFolder)
	protected.HandleFunc("PATCH /api/v1/folders/{id}/rename", s.handleRenameFolder)
	protected.HandleFunc("DELETE /api/v1/folders/{id}", s.handleTrashFolder)
	protected.HandleFunc("POST /api/v1/folders/{id}/restore", s.handleRestoreFolder)
	protected.HandleFunc("DELETE /api/v1/folders/{id}/permanent", s.handlePurgeFolder)

	// Storage stats
	protected.HandleFunc("GET /api/v1/storage", s.handleStorageStats)

	// Notifications
	protected.HandleFunc("GET /api/v1/notifications", s.handleListNotifications)
	protected.HandleFunc("POST /api/v1/notifications/{id}/read", s.handleMarkNotificationRead)
	protected.HandleFunc("POST /api/v1/notifications/read-all", s.handleMarkAllNotificationsRead)

	// SSE endpoint
	protected.HandleFunc("GET /api/v1/events", s.handleEvents)

	// Token revocation
	protected.HandleFunc("DELETE /api/v1/auth/token", s.handleRevokeToken)

	mux.Handle("/api/v1/", s.auth.Middleware(protected))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok", "version": "1.0"})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if claims == nil {
		s.sendError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := s.broadcaster.Subscribe(claims.UserID)
	defer s.broadcaster.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			data, err := events.MarshalEvent(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
			flusher.Flush()
		}
	}
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenStr := auth.ExtractToken(r)
	if err := s.auth.RevokeToken(r.Context(), tokenStr); err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to revoke token: "+err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"revoked": true})
}

func (s *Server) handleStorageStats(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	stats, err := s.svc.Stats(r.Context(), claims.UserID)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(protocol.StorageStatsResponse{
		UsedBytes:  stats.UsedBytes,
		QuotaBytes: stats.QuotaBytes,
		FileCount:  stats.FileCount,
	})
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(protocol.ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// sendServiceError maps domain errors onto HTTP status codes.
func (s *Server) sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, files.ErrNotFound):
		s.sendError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, files.ErrValidation):
		s.sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, files.ErrQuotaExceeded):
		s.sendError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, storage.ErrNotSupported):
		s.sendError(w, http.StatusNotImplemented, err.Error())
	default:
		s.sendError(w, http.StatusInternalServerError, err.Error())
	}
}

func fileResponse(f *files.File) protocol.FileResponse {
	return protocol.FileResponse{
		ID:          f.ID,
		Name:        f.Name,
		MimeType:    f.MimeType,
		SizeKB:      f.SizeKB,
		FolderID:    f.FolderID,
		Provider:    f.Provider,
		ViewURL:     f.ViewURL,
		DownloadURL: f.DownloadURL,
		ShareToken:  f.ShareToken,
		IsPublic:    f.IsPublic,
		IsStarred:   f.IsStarred,
		IsTrash:     f.IsTrash,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func folderResponse(f *files.Folder) protocol.FolderResponse {
	resp := protocol.FolderResponse{
		ID:        f.ID,
		Name:      f.Name,
		ParentID:  f.ParentID,
		IsTrash:   f.IsTrash,
		CreatedAt: f.CreatedAt,
	}
	for _, a := range f.Ancestors {
		resp.Ancestors = append(resp.Ancestors, protocol.Ancestor{ID: a.ID, Name: a.Name})
	}
	return resp
}
