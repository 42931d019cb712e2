// Package mock provides an in-memory storage adapter used for development
// and as the fallback when no real provider is configured. It deliberately
// implements only the core operations plus rename and streaming, so code
// paths that degrade on missing capabilities get exercised.
package mock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/peardrive/peardrive/internal/storage"
)

type object struct {
	name     string
	mimeType string
	data     []byte
}

// Adapter is an in-memory storage adapter.
type Adapter struct {
	latency time.Duration

	mu      sync.RWMutex
	objects map[string]*object
}

// New creates an empty mock adapter with no artificial latency.
func New() *Adapter {
	return NewWithLatency(0)
}

// NewWithLatency creates a mock adapter that sleeps before every
// operation, so development against it feels like a remote provider.
func NewWithLatency(latency time.Duration) *Adapter {
	return &Adapter{latency: latency, objects: make(map[string]*object)}
}

func (a *Adapter) sleep(ctx context.Context) error {
	if a.latency == 0 {
		return nil
	}
	select {
	case <-time.After(a.latency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Provider returns "local_mock".
func (a *Adapter) Provider() string { return "local_mock" }

// Upload stores the object in memory and returns a generated ID.
func (a *Adapter) Upload(ctx context.Context, info storage.ObjectInfo, body io.Reader) (*storage.UploadResult, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, storage.NewProviderError("local_mock", "upload", 0, "", err)
	}

	id := uuid.NewString()
	a.mu.Lock()
	a.objects[id] = &object{name: info.Name, mimeType: info.MimeType, data: data}
	a.mu.Unlock()

	return &storage.UploadResult{
		ID:          id,
		Name:        info.Name,
		Size:        int64(len(data)),
		MimeType:    info.MimeType,
		DownloadURL: fmt.Sprintf("mock://%s", id),
	}, nil
}

// Delete removes the object. Missing objects are not an error.
func (a *Adapter) Delete(ctx context.Context, externalID string) error {
	if err := a.sleep(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.objects, externalID)
	a.mu.Unlock()
	return nil
}

// GetDownloadURL returns a mock URL for the object.
func (a *Adapter) GetDownloadURL(ctx context.Context, externalID string) (string, error) {
	if err := a.sleep(ctx); err != nil {
		return "", err
	}
	a.mu.RLock()
	_, ok := a.objects[externalID]
	a.mu.RUnlock()
	if !ok {
		return "", storage.ErrObjectNotFound
	}
	return fmt.Sprintf("mock://%s", externalID), nil
}

// Rename changes the stored object's name.
func (a *Adapter) Rename(ctx context.Context, externalID, newName string) error {
	if err := a.sleep(ctx); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	obj, ok := a.objects[externalID]
	if !ok {
		return storage.ErrObjectNotFound
	}
	obj.name = newName
	return nil
}

// DownloadStream returns the stored content.
func (a *Adapter) DownloadStream(ctx context.Context, externalID string) (io.ReadCloser, int64, error) {
	if err := a.sleep(ctx); err != nil {
		return nil, 0, err
	}
	a.mu.RLock()
	obj, ok := a.objects[externalID]
	a.mu.RUnlock()
	if !ok {
		return nil, 0, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), int64(len(obj.data)), nil
}

// Count returns the number of stored objects.
func (a *Adapter) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.objects)
}
