// Package storage defines the Adapter interface for cloud storage providers
// and optional capability interfaces for operations not every provider supports.
package storage

import (
	"context"
	"io"
)

// UploadResult is what a provider reports after an object lands in its store.
// Size is the provider-counted byte size, which may differ from the size the
// client declared.
type UploadResult struct {
	ID          string
	Name        string
	Size        int64
	MimeType    string
	ViewURL     string
	DownloadURL string
}

// ObjectInfo describes an object to be uploaded or finalized. Origin
// is the page origin a resumable session should authorize for direct
// PUTs; providers that do not key sessions to an origin ignore it.
type ObjectInfo struct {
	Name     string
	MimeType string
	Size     int64
	Origin   string
}

// Adapter is the core interface every storage provider must implement.
// Everything beyond these three operations is an optional capability:
// callers type-assert against Renamer, Trasher, Publisher, Streamer or
// SessionStarter and degrade gracefully when the assertion fails.
type Adapter interface {
	// Upload stores the object and returns the provider's record of it.
	Upload(ctx context.Context, info ObjectInfo, body io.Reader) (*UploadResult, error)

	// Delete permanently removes the object identified by externalID.
	// Deleting an object the provider no longer has is not an error.
	Delete(ctx context.Context, externalID string) error

	// GetDownloadURL returns a URL from which the object can be fetched.
	GetDownloadURL(ctx context.Context, externalID string) (string, error)

	// Provider returns the provider identifier ("google_drive", "s3", "local_mock").
	Provider() string
}

// Renamer is implemented by providers that can rename a stored object.
type Renamer interface {
	Rename(ctx context.Context, externalID, newName string) error
}

// Trasher is implemented by providers with a recoverable trash state.
type Trasher interface {
	Trash(ctx context.Context, externalID string) error
	Restore(ctx context.Context, externalID string) error
}

// Publisher is implemented by providers that can make an object
// world-readable and return a public link.
type Publisher interface {
	MakePublic(ctx context.Context, externalID string) (string, error)
}

// Streamer is implemented by providers that can stream object content
// through the server rather than redirecting the client.
type Streamer interface {
	DownloadStream(ctx context.Context, externalID string) (io.ReadCloser, int64, error)
}

// SessionStarter is implemented by providers that support resumable
// uploads. StartUploadSession returns a URL the client uploads bytes to
// directly, bypassing the server for the transfer itself.
type SessionStarter interface {
	StartUploadSession(ctx context.Context, info ObjectInfo) (string, error)
}
