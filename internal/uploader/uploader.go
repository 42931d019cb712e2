// Package uploader drives client-side resumable uploads: it requests a
// session from the server, streams the bytes to the provider's session
// URL, and finalizes the file record. One goroutine per file, no retry.
package uploader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/protocol"
)

// Manager runs uploads and tracks their progress. The OnChange callback
// fires after every task state change so a UI can re-render.
type Manager struct {
	client   *Client
	tracker  *Tracker
	onChange func()
	wg       sync.WaitGroup
}

// NewManager creates a Manager. onChange may be nil.
func NewManager(client *Client, onChange func()) *Manager {
	return &Manager{
		client:   client,
		tracker:  NewTracker(),
		onChange: onChange,
	}
}

// Tasks returns a snapshot of all tracked uploads.
func (m *Manager) Tasks() []Task {
	return m.tracker.Snapshot()
}

// Dismiss removes a finished task from the tracker.
func (m *Manager) Dismiss(id string) error {
	err := m.tracker.Dismiss(id)
	if err == nil {
		m.changed()
	}
	return err
}

// Wait blocks until all in-flight uploads have finished.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Upload starts uploading content in the background and returns the
// task id immediately. The task moves to failed on the first error;
// uploads are never restarted automatically.
func (m *Manager) Upload(ctx context.Context, name, mimeType string, size int64, folderID string, content io.Reader) string {
	id := m.tracker.Add(name, size)
	m.changed()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.run(ctx, id, name, mimeType, size, folderID, content); err != nil {
			m.tracker.fail(id, err)
			logging.Warn("upload failed",
				zap.String("file", name),
				zap.Error(err))
		} else {
			m.tracker.complete(id)
		}
		m.changed()
	}()
	return id
}

func (m *Manager) run(ctx context.Context, id, name, mimeType string, size int64, folderID string, content io.Reader) error {
	session, err := m.client.RequestUploadSession(ctx, name, mimeType, size, folderID)
	if err != nil {
		return err
	}
	if session.UploadURL == "" {
		return fmt.Errorf("server returned no upload url")
	}

	m.tracker.setUploading(id)
	m.changed()

	pr := &progressReader{
		r:     content,
		total: size,
		onUpdate: func(progress int) {
			m.tracker.setProgress(id, progress)
			m.changed()
		},
	}

	body, err := m.client.UploadToSession(ctx, session.UploadURL, mimeType, size, pr)
	if err != nil {
		return err
	}

	pf := parseProviderFile(body, session.UploadURL, size)

	_, err = m.client.FinalizeUpload(ctx, protocol.FinalizeUploadRequest{
		FileName:    name,
		MimeType:    mimeType,
		Size:        pf.size,
		FolderID:    folderID,
		Provider:    session.Provider,
		ExternalID:  pf.id,
		ViewURL:     pf.viewURL,
		DownloadURL: pf.downloadURL,
	})
	return err
}

func (m *Manager) changed() {
	if m.onChange != nil {
		m.onChange()
	}
}

// progressReader counts bytes as they are read. Progress is the floor
// of the sent percentage.
type progressReader struct {
	r        io.Reader
	total    int64
	sent     int64
	onUpdate func(progress int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		if p.total > 0 && p.onUpdate != nil {
			p.onUpdate(int(p.sent * 100 / p.total))
		}
	}
	return n, err
}

type providerFile struct {
	id          string
	size        int64
	viewURL     string
	downloadURL string
}

// parseProviderFile reads the provider's completion body. Drive returns
// the created file as JSON with size encoded as a string plus its view
// and content links. S3 presigned PUTs return an empty body, so the
// object key is recovered from the session URL path. Anything
// unparseable degrades to a placeholder id with the declared size
// rather than losing the upload.
func parseProviderFile(body []byte, uploadURL string, declaredSize int64) providerFile {
	var meta struct {
		ID             string `json:"id"`
		Size           string `json:"size"`
		WebViewLink    string `json:"webViewLink"`
		WebContentLink string `json:"webContentLink"`
	}
	if err := json.Unmarshal(body, &meta); err == nil && meta.ID != "" {
		size := declaredSize
		if n, err := strconv.ParseInt(meta.Size, 10, 64); err == nil && n > 0 {
			size = n
		}
		return providerFile{
			id:          meta.ID,
			size:        size,
			viewURL:     meta.WebViewLink,
			downloadURL: meta.WebContentLink,
		}
	}

	if key := objectKeyFromURL(uploadURL); key != "" {
		return providerFile{id: key, size: declaredSize}
	}
	return providerFile{id: "unknown", size: declaredSize}
}

// objectKeyFromURL extracts a bucket object key from a presigned PUT
// URL. Keys are date-partitioned under users/, which also disambiguates
// path-style addressing where the bucket precedes the key.
func objectKeyFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.TrimPrefix(u.Path, "/")
	if i := strings.Index(p, "users/"); i >= 0 {
		return p[i:]
	}
	return ""
}
