// Package drive implements the storage adapter for Google Drive.
//
// Uploads can go through the server (Upload) or directly from the client
// via a resumable upload session (StartUploadSession), which hands the
// client a session URL to PUT bytes to.
package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/peardrive/peardrive/internal/storage"
)

const defaultUploadBaseURL = "https://www.googleapis.com/upload/drive/v3/files"

// Config holds Google Drive OAuth credentials and the target folder.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	FolderID     string
}

// Adapter talks to the Google Drive v3 API.
type Adapter struct {
	svc      *drivev3.Service
	client   *http.Client
	folderID string

	// Overridable for tests.
	uploadBaseURL string
}

// New creates a Drive adapter. The refresh token is exchanged for access
// tokens on demand; oauth2.ReuseTokenSource refreshes them as they expire.
func New(cfg Config) (*Adapter, error) {
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("drive: refresh token required")
	}

	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
	}
	ts := oauth2.ReuseTokenSource(nil, oc.TokenSource(context.Background(),
		&oauth2.Token{RefreshToken: cfg.RefreshToken}))

	svc, err := drivev3.NewService(context.Background(), option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}

	return &Adapter{
		svc:           svc,
		client:        oauth2.NewClient(context.Background(), ts),
		folderID:      cfg.FolderID,
		uploadBaseURL: defaultUploadBaseURL,
	}, nil
}

// Provider returns "google_drive".
func (a *Adapter) Provider() string { return "google_drive" }

// Upload streams the object through the server into Drive.
func (a *Adapter) Upload(ctx context.Context, info storage.ObjectInfo, body io.Reader) (*storage.UploadResult, error) {
	meta := &drivev3.File{
		Name:     info.Name,
		MimeType: info.MimeType,
	}
	if a.folderID != "" {
		meta.Parents = []string{a.folderID}
	}

	f, err := a.svc.Files.Create(meta).
		Media(body, googleapi.ContentType(info.MimeType)).
		Fields("id, name, size, mimeType, webViewLink, webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapAPIError("upload", err)
	}

	return &storage.UploadResult{
		ID:          f.Id,
		Name:        f.Name,
		Size:        f.Size,
		MimeType:    f.MimeType,
		ViewURL:     f.WebViewLink,
		DownloadURL: f.WebContentLink,
	}, nil
}

// StartUploadSession creates a resumable upload session and returns the
// session URL from the Location response header. The client PUTs the
// file bytes to that URL directly.
func (a *Adapter) StartUploadSession(ctx context.Context, info storage.ObjectInfo) (string, error) {
	meta := map[string]interface{}{
		"name":     info.Name,
		"mimeType": info.MimeType,
	}
	if a.folderID != "" {
		meta["parents"] = []string{a.folderID}
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("drive: marshal session metadata: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.uploadBaseURL+"?uploadType=resumable&fields=id,name,size,mimeType,webViewLink,webContentLink",
		bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("drive: build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", info.MimeType)
	req.Header.Set("X-Upload-Content-Length", strconv.FormatInt(info.Size, 10))
	if info.Origin != "" {
		// Drive keys the session to this origin; direct browser PUTs
		// to the session URL fail CORS without it.
		req.Header.Set("Origin", info.Origin)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return "", storage.NewProviderError("google_drive", "start_session", 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", storage.NewProviderError("google_drive", "start_session",
			resp.StatusCode, string(body),
			fmt.Errorf("unexpected status %s", resp.Status))
	}

	loc := resp.Header.Get("Location")
	if loc == "" {
		return "", storage.NewProviderError("google_drive", "start_session",
			resp.StatusCode, "", fmt.Errorf("no Location header in session response"))
	}
	return loc, nil
}

// Delete permanently removes the file. A 404 means the file is already
// gone and is treated as success.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	err := a.svc.Files.Delete(externalID).Context(ctx).Do()
	if err != nil {
		if apiErr, ok := err.(*googleapi.Error); ok && apiErr.Code == http.StatusNotFound {
			return nil
		}
		return wrapAPIError("delete", err)
	}
	return nil
}

// GetDownloadURL returns the file's webContentLink.
func (a *Adapter) GetDownloadURL(ctx context.Context, externalID string) (string, error) {
	f, err := a.svc.Files.Get(externalID).
		Fields("webContentLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapAPIError("get_download_url", err)
	}
	return f.WebContentLink, nil
}

// Rename updates the file's name.
func (a *Adapter) Rename(ctx context.Context, externalID, newName string) error {
	_, err := a.svc.Files.Update(externalID, &drivev3.File{Name: newName}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapAPIError("rename", err)
	}
	return nil
}

// Trash moves the file to Drive's trash.
func (a *Adapter) Trash(ctx context.Context, externalID string) error {
	_, err := a.svc.Files.Update(externalID, &drivev3.File{Trashed: true}).
		Context(ctx).
		Do()
	if err != nil {
		return wrapAPIError("trash", err)
	}
	return nil
}

// Restore takes the file back out of Drive's trash. Trashed=false is a
// zero value, so it has to be force-sent.
func (a *Adapter) Restore(ctx context.Context, externalID string) error {
	update := &drivev3.File{
		Trashed:         false,
		ForceSendFields: []string{"Trashed"},
	}
	_, err := a.svc.Files.Update(externalID, update).Context(ctx).Do()
	if err != nil {
		return wrapAPIError("restore", err)
	}
	return nil
}

// MakePublic grants anyone-with-the-link read access and returns the
// file's webViewLink.
func (a *Adapter) MakePublic(ctx context.Context, externalID string) (string, error) {
	perm := &drivev3.Permission{
		Role: "reader",
		Type: "anyone",
	}
	if _, err := a.svc.Permissions.Create(externalID, perm).Context(ctx).Do(); err != nil {
		return "", wrapAPIError("make_public", err)
	}

	f, err := a.svc.Files.Get(externalID).
		Fields("webViewLink").
		Context(ctx).
		Do()
	if err != nil {
		return "", wrapAPIError("make_public", err)
	}
	return f.WebViewLink, nil
}

// DownloadStream streams the file's content through the server.
func (a *Adapter) DownloadStream(ctx context.Context, externalID string) (io.ReadCloser, int64, error) {
	resp, err := a.svc.Files.Get(externalID).Context(ctx).Download()
	if err != nil {
		return nil, 0, wrapAPIError("download_stream", err)
	}
	return resp.Body, resp.ContentLength, nil
}

func wrapAPIError(op string, err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		return storage.NewProviderError("google_drive", op, apiErr.Code, apiErr.Message, err)
	}
	return storage.NewProviderError("google_drive", op, 0, "", err)
}
