package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/protocol"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	unread := r.URL.Query().Get("unread") == "true"

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	ns, err := s.notifier.List(r.Context(), claims.UserID, unread, limit)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	resp := []protocol.NotificationResponse{}
	for _, n := range ns {
		resp = append(resp, protocol.NotificationResponse{
			ID:        n.ID,
			Type:      n.Type,
			Message:   n.Message,
			FileID:    n.FileID,
			Read:      n.Read,
			CreatedAt: n.CreatedAt,
		})
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"notifications": resp})
}

func (s *Server) handleMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if err := s.notifier.MarkRead(r.Context(), id, claims.UserID); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaims(r.Context())
	if err := s.notifier.MarkAllRead(r.Context(), claims.UserID); err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
