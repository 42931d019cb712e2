package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/storage"
)

// handleShareInfo serves public metadata for a shared file. No auth:
// the token is the capability.
func (s *Server) handleShareInfo(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.GetByShareToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(fileResponse(f))
}

// handleShareDownload streams a shared file through the server, or
// redirects to the provider when streaming is not available.
func (s *Server) handleShareDownload(w http.ResponseWriter, r *http.Request) {
	f, err := s.svc.GetByShareToken(r.Context(), r.PathValue("token"))
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	rc, size, err := s.svc.OpenStream(r.Context(), f)
	if errors.Is(err, storage.ErrNotSupported) {
		url, urlErr := s.svc.ShareDownloadURL(r.Context(), f)
		if urlErr != nil {
			s.sendServiceError(w, urlErr)
			return
		}
		metrics.RecordShareDownload()
		http.Redirect(w, r, url, http.StatusFound)
		return
	}
	if err != nil {
		s.sendServiceError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(f.Name))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	metrics.RecordShareDownload()
	if _, err := io.Copy(w, rc); err != nil {
		logging.Warn("share download interrupted",
			zap.String("file_id", f.ID),
			zap.Error(err),
		)
	}
}
