package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/peardrive/peardrive/internal/protocol"
)

// newAppServer builds a fake API server that hands out uploadURL as the
// session target and records the finalize request.
func newAppServer(t *testing.T, uploadURL string, finalized *protocol.FinalizeUploadRequest, finalizeStatus int) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/uploads/session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(protocol.UploadSessionResponse{
			UploadURL: uploadURL,
			Provider:  "google_drive",
		})
	})
	mux.HandleFunc("POST /api/v1/uploads/finalize", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(finalized); err != nil {
			t.Errorf("decode finalize body: %v", err)
		}
		if finalizeStatus != http.StatusCreated {
			w.WriteHeader(finalizeStatus)
			json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "boom", Code: finalizeStatus})
			return
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(protocol.FileResponse{ID: "file-1", Name: finalized.FileName})
	})
	return httptest.NewServer(mux)
}

func TestUploadCompletes(t *testing.T) {
	content := []byte("hello resumable world")

	var gotBody []byte
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "PUT" {
			t.Errorf("provider got method %s", r.Method)
		}
		gotBody, _ = io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(map[string]string{
			"id":             "drive-abc",
			"size":           "21",
			"webViewLink":    "https://drive.test/view/drive-abc",
			"webContentLink": "https://drive.test/dl/drive-abc",
		})
	}))
	defer provider.Close()

	var finalized protocol.FinalizeUploadRequest
	app := newAppServer(t, provider.URL, &finalized, http.StatusCreated)
	defer app.Close()

	client := NewClient(Config{BaseURL: app.URL, AuthToken: "test-token"})
	mgr := NewManager(client, nil)

	id := mgr.Upload(context.Background(), "notes.txt", "text/plain", int64(len(content)), "", bytes.NewReader(content))
	mgr.Wait()

	task, ok := mgr.tracker.Get(id)
	if !ok {
		t.Fatal("task disappeared")
	}
	if task.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", task.Status, task.Error)
	}
	if task.Progress != 100 {
		t.Errorf("progress = %d, want 100", task.Progress)
	}
	if !bytes.Equal(gotBody, content) {
		t.Errorf("provider received %q, want %q", gotBody, content)
	}
	if finalized.ExternalID != "drive-abc" {
		t.Errorf("finalize external_id = %q, want drive-abc", finalized.ExternalID)
	}
	if finalized.Size != 21 {
		t.Errorf("finalize size = %d, want 21", finalized.Size)
	}
	if finalized.Provider != "google_drive" {
		t.Errorf("finalize provider = %q", finalized.Provider)
	}
	if finalized.ViewURL != "https://drive.test/view/drive-abc" {
		t.Errorf("finalize view_url = %q", finalized.ViewURL)
	}
	if finalized.DownloadURL != "https://drive.test/dl/drive-abc" {
		t.Errorf("finalize download_url = %q", finalized.DownloadURL)
	}
}

func TestUploadRecoversKeyFromSessionURL(t *testing.T) {
	// Presigned PUTs answer with an empty body; the object key rides in
	// the session URL path.
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer provider.Close()

	var finalized protocol.FinalizeUploadRequest
	app := newAppServer(t, provider.URL+"/mybucket/users/2026/08/29/abc123?X-Amz-Signature=sig", &finalized, http.StatusCreated)
	defer app.Close()

	client := NewClient(Config{BaseURL: app.URL})
	mgr := NewManager(client, nil)

	content := strings.NewReader("data")
	id := mgr.Upload(context.Background(), "data.bin", "application/octet-stream", 4, "", content)
	mgr.Wait()

	task, _ := mgr.tracker.Get(id)
	if task.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", task.Status, task.Error)
	}
	if finalized.ExternalID != "users/2026/08/29/abc123" {
		t.Errorf("finalize external_id = %q, want recovered object key", finalized.ExternalID)
	}
	if finalized.Size != 4 {
		t.Errorf("finalize size = %d, want declared size 4", finalized.Size)
	}
}

func TestUploadPlaceholderOnUnparseableCompletion(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Write([]byte("<html>not json</html>"))
	}))
	defer provider.Close()

	var finalized protocol.FinalizeUploadRequest
	app := newAppServer(t, provider.URL+"/upload/session/xyz", &finalized, http.StatusCreated)
	defer app.Close()

	client := NewClient(Config{BaseURL: app.URL})
	mgr := NewManager(client, nil)

	id := mgr.Upload(context.Background(), "x.bin", "application/octet-stream", 4, "", strings.NewReader("data"))
	mgr.Wait()

	task, _ := mgr.tracker.Get(id)
	if task.Status != StatusCompleted {
		t.Fatalf("status = %s (%s), want completed", task.Status, task.Error)
	}
	if finalized.ExternalID != "unknown" {
		t.Errorf("finalize external_id = %q, want unknown placeholder", finalized.ExternalID)
	}
}

func TestUploadFailsOnSessionError(t *testing.T) {
	app := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(protocol.ErrorResponse{Error: "provider unavailable", Code: 502})
	}))
	defer app.Close()

	client := NewClient(Config{BaseURL: app.URL})
	mgr := NewManager(client, nil)

	id := mgr.Upload(context.Background(), "a.txt", "text/plain", 1, "", strings.NewReader("a"))
	mgr.Wait()

	task, _ := mgr.tracker.Get(id)
	if task.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
	if task.Error == "" {
		t.Error("failed task has no error message")
	}
}

func TestUploadFailsOnFinalizeError(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]string{"id": "drive-1", "size": "1"})
	}))
	defer provider.Close()

	var finalized protocol.FinalizeUploadRequest
	app := newAppServer(t, provider.URL, &finalized, http.StatusInternalServerError)
	defer app.Close()

	client := NewClient(Config{BaseURL: app.URL})
	mgr := NewManager(client, nil)

	id := mgr.Upload(context.Background(), "a.txt", "text/plain", 1, "", strings.NewReader("a"))
	mgr.Wait()

	task, _ := mgr.tracker.Get(id)
	if task.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", task.Status)
	}
}

func TestUploadNotifiesOnChange(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		json.NewEncoder(w).Encode(map[string]string{"id": "drive-1", "size": "4"})
	}))
	defer provider.Close()

	var finalized protocol.FinalizeUploadRequest
	app := newAppServer(t, provider.URL, &finalized, http.StatusCreated)
	defer app.Close()

	changes := make(chan struct{}, 64)
	client := NewClient(Config{BaseURL: app.URL})
	mgr := NewManager(client, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})

	mgr.Upload(context.Background(), "a.txt", "text/plain", 4, "", strings.NewReader("data"))
	mgr.Wait()

	if len(changes) == 0 {
		t.Error("onChange never fired")
	}
}

func TestProgressReaderFloors(t *testing.T) {
	var got []int
	pr := &progressReader{
		r:        strings.NewReader("abc"),
		total:    7,
		onUpdate: func(p int) { got = append(got, p) },
	}

	buf := make([]byte, 1)
	for {
		if _, err := pr.Read(buf); err != nil {
			break
		}
	}

	want := []int{14, 28, 42}
	if len(got) != len(want) {
		t.Fatalf("got %d updates, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("update %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestTrackerDismiss(t *testing.T) {
	tr := NewTracker()
	id := tr.Add("a.txt", 1)

	if err := tr.Dismiss(id); err == nil {
		t.Error("dismissed a pending task")
	}

	tr.setUploading(id)
	if err := tr.Dismiss(id); err == nil {
		t.Error("dismissed an uploading task")
	}

	tr.complete(id)
	if err := tr.Dismiss(id); err != nil {
		t.Errorf("dismiss finished task: %v", err)
	}
	if len(tr.Snapshot()) != 0 {
		t.Error("task still present after dismiss")
	}

	if err := tr.Dismiss("nope"); err == nil {
		t.Error("dismissed an unknown task")
	}
}
