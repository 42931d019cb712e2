package drive

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/peardrive/peardrive/internal/storage"
)

func testAdapter(uploadBaseURL string) *Adapter {
	return &Adapter{
		client:        http.DefaultClient,
		folderID:      "folder-123",
		uploadBaseURL: uploadBaseURL,
	}
}

func TestStartUploadSession(t *testing.T) {
	var gotMeta map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.URL.Query().Get("uploadType"); got != "resumable" {
			t.Errorf("uploadType = %q, want resumable", got)
		}
		if got := r.Header.Get("X-Upload-Content-Type"); got != "image/png" {
			t.Errorf("X-Upload-Content-Type = %q, want image/png", got)
		}
		if got := r.Header.Get("X-Upload-Content-Length"); got != "2048" {
			t.Errorf("X-Upload-Content-Length = %q, want 2048", got)
		}
		if got := r.Header.Get("Origin"); got != "https://app.example.com" {
			t.Errorf("Origin = %q, want https://app.example.com", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotMeta); err != nil {
			t.Errorf("decode metadata: %v", err)
		}
		w.Header().Set("Location", "https://upload.example.com/session/abc")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := testAdapter(srv.URL)
	url, err := a.StartUploadSession(context.Background(), storage.ObjectInfo{
		Name:     "photo.png",
		MimeType: "image/png",
		Size:     2048,
		Origin:   "https://app.example.com",
	})
	if err != nil {
		t.Fatalf("StartUploadSession: %v", err)
	}
	if url != "https://upload.example.com/session/abc" {
		t.Errorf("session url = %q", url)
	}
	if gotMeta["name"] != "photo.png" {
		t.Errorf("metadata name = %v, want photo.png", gotMeta["name"])
	}
	if gotMeta["mimeType"] != "image/png" {
		t.Errorf("metadata mimeType = %v, want image/png", gotMeta["mimeType"])
	}
	parents, _ := gotMeta["parents"].([]interface{})
	if len(parents) != 1 || parents[0] != "folder-123" {
		t.Errorf("metadata parents = %v, want [folder-123]", gotMeta["parents"])
	}
}

func TestStartUploadSessionMissingLocation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := testAdapter(srv.URL)
	_, err := a.StartUploadSession(context.Background(), storage.ObjectInfo{Name: "f", Size: 1})
	if err == nil {
		t.Fatal("expected error when Location header is missing")
	}
}

func TestStartUploadSessionRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
	}))
	defer srv.Close()

	a := testAdapter(srv.URL)
	_, err := a.StartUploadSession(context.Background(), storage.ObjectInfo{Name: "f", Size: 1})
	if err == nil {
		t.Fatal("expected error on 403")
	}
	var pErr *storage.ProviderError
	if !errors.As(err, &pErr) {
		t.Fatalf("error type = %T, want *storage.ProviderError", err)
	}
	if pErr.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want 403", pErr.StatusCode)
	}
	if pErr.Provider != "google_drive" {
		t.Errorf("provider = %q, want google_drive", pErr.Provider)
	}
}
