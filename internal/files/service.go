package files

import (
	"context"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/events"
	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/storage"
)

// Notifier records a user-visible notification. Implementations must not
// fail the calling operation.
type Notifier interface {
	Notify(ctx context.Context, userID int, kind, message, fileID string)
}

// Service implements file operations over a metadata Store and
// per-provider storage adapters.
type Service struct {
	store           Store
	resolve         AdapterResolver
	bus             *events.Broadcaster
	notifier        Notifier
	defaultProvider string
	maxUploadSize   int64
}

// NewService creates a file service.
func NewService(store Store, resolve AdapterResolver, bus *events.Broadcaster, notifier Notifier, defaultProvider string, maxUploadSize int64) *Service {
	return &Service{
		store:           store,
		resolve:         resolve,
		bus:             bus,
		notifier:        notifier,
		defaultProvider: defaultProvider,
		maxUploadSize:   maxUploadSize,
	}
}

// DefaultProvider returns the provider used for new uploads.
func (s *Service) DefaultProvider() string { return s.defaultProvider }

// StartUpload opens a resumable upload session with the default provider
// and returns the session URL the client uploads bytes to. origin, when
// set, is the page origin the provider should authorize for the direct
// PUT.
func (s *Service) StartUpload(ctx context.Context, ownerID int, name, mimeType string, size int64, folderID, origin string) (string, string, error) {
	if strings.TrimSpace(name) == "" {
		return "", "", fmt.Errorf("%w: file name required", ErrValidation)
	}
	if size <= 0 {
		return "", "", fmt.Errorf("%w: size must be positive", ErrValidation)
	}
	if s.maxUploadSize > 0 && size > s.maxUploadSize {
		return "", "", fmt.Errorf("%w: file too large (max %d bytes)", ErrValidation, s.maxUploadSize)
	}
	if err := s.checkQuota(ctx, ownerID, size); err != nil {
		return "", "", err
	}
	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, folderID, ownerID); err != nil {
			return "", "", fmt.Errorf("folder %s: %w", folderID, err)
		}
	}

	adapter, err := s.resolve(ctx, s.defaultProvider)
	if err != nil {
		return "", "", fmt.Errorf("resolve provider: %w", err)
	}
	starter, ok := adapter.(storage.SessionStarter)
	if !ok {
		return "", "", fmt.Errorf("provider %s: %w", adapter.Provider(), storage.ErrNotSupported)
	}

	start := time.Now()
	url, err := starter.StartUploadSession(ctx, storage.ObjectInfo{
		Name:     name,
		MimeType: mimeType,
		Size:     size,
		Origin:   origin,
	})
	metrics.RecordProviderOperation(adapter.Provider(), "start_session", time.Since(start), err == nil)
	metrics.RecordUploadSession(adapter.Provider(), err == nil)
	if err != nil {
		return "", "", err
	}

	logging.Info("upload session started",
		zap.Int("owner_id", ownerID),
		zap.String("name", name),
		zap.Int64("size", size),
		zap.String("provider", adapter.Provider()))
	return url, adapter.Provider(), nil
}

// FinalizeUpload records a completed upload. size is the byte count the
// provider reported for the stored object; the file row stores it rounded
// to kilobytes while the owner's usage counter is incremented by the
// exact bytes, both in one transaction.
func (s *Service) FinalizeUpload(ctx context.Context, ownerID int, name, mimeType string, size int64, folderID, provider, externalID, viewURL, downloadURL string) (*File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: file name required", ErrValidation)
	}
	if size < 0 {
		return nil, fmt.Errorf("%w: negative size", ErrValidation)
	}
	if externalID == "" {
		return nil, fmt.Errorf("%w: external id required", ErrValidation)
	}
	if provider == "" {
		provider = s.defaultProvider
	}

	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, folderID, ownerID); err != nil {
			return nil, fmt.Errorf("folder %s: %w", folderID, err)
		}
	}

	now := time.Now()
	f := &File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		MimeType:    mimeType,
		SizeKB:      int64(math.Round(float64(size) / 1024)),
		FolderID:    folderID,
		Provider:    provider,
		ExternalID:  externalID,
		ViewURL:     viewURL,
		DownloadURL: downloadURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return s.persistUpload(ctx, f, size)
}

// ProxyUpload stores content through the server: the adapter performs
// the transfer itself instead of handing out a session URL. Meant for
// small files; the whole body passes through this process.
func (s *Service) ProxyUpload(ctx context.Context, ownerID int, name, mimeType string, size int64, folderID string, content io.Reader) (*File, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: file name required", ErrValidation)
	}
	if s.maxUploadSize > 0 && size > s.maxUploadSize {
		return nil, fmt.Errorf("%w: file too large (max %d bytes)", ErrValidation, s.maxUploadSize)
	}
	if err := s.checkQuota(ctx, ownerID, size); err != nil {
		return nil, err
	}
	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, folderID, ownerID); err != nil {
			return nil, fmt.Errorf("folder %s: %w", folderID, err)
		}
	}

	adapter, err := s.resolve(ctx, s.defaultProvider)
	if err != nil {
		return nil, fmt.Errorf("resolve provider: %w", err)
	}

	start := time.Now()
	res, err := adapter.Upload(ctx, storage.ObjectInfo{Name: name, MimeType: mimeType, Size: size}, content)
	metrics.RecordProviderOperation(adapter.Provider(), "upload", time.Since(start), err == nil)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	f := &File{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Name:        name,
		MimeType:    mimeType,
		SizeKB:      int64(math.Round(float64(res.Size) / 1024)),
		FolderID:    folderID,
		Provider:    adapter.Provider(),
		ExternalID:  res.ID,
		ViewURL:     res.ViewURL,
		DownloadURL: res.DownloadURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return s.persistUpload(ctx, f, res.Size)
}

func (s *Service) persistUpload(ctx context.Context, f *File, size int64) (*File, error) {
	if err := s.store.CreateFileWithUsage(ctx, f, size); err != nil {
		metrics.RecordUploadFinalized(f.Provider, 0, false)
		return nil, err
	}
	metrics.RecordUploadFinalized(f.Provider, size, true)

	logging.Info("upload finalized",
		zap.String("file_id", f.ID),
		zap.Int("owner_id", f.OwnerID),
		zap.String("name", f.Name),
		zap.Int64("size", size),
		zap.String("provider", f.Provider))

	s.publish(events.Event{Type: events.EventUploadComplete, UserID: f.OwnerID, FileID: f.ID, Name: f.Name, Size: size})
	if s.notifier != nil {
		s.notifier.Notify(ctx, f.OwnerID, "upload", fmt.Sprintf("%s uploaded", f.Name), f.ID)
	}
	return f, nil
}

// checkQuota rejects an upload whose declared size would pass the
// owner's quota. The finalize transaction re-checks with the
// provider-reported size; this is the early, user-friendly refusal.
func (s *Service) checkQuota(ctx context.Context, ownerID int, size int64) error {
	stats, err := s.store.GetStorageStats(ctx, ownerID)
	if err != nil {
		return err
	}
	if stats.QuotaBytes > 0 && stats.UsedBytes+size > stats.QuotaBytes {
		return fmt.Errorf("%w: %d bytes used of %d", ErrQuotaExceeded, stats.UsedBytes, stats.QuotaBytes)
	}
	return nil
}

// Get returns one of the owner's files.
func (s *Service) Get(ctx context.Context, ownerID int, id string) (*File, error) {
	return s.store.GetFile(ctx, id, ownerID)
}

// List returns the owner's files in a folder ("" for the root), trashed
// or not.
func (s *Service) List(ctx context.Context, ownerID int, folderID string, trash bool) ([]File, error) {
	return s.store.ListFiles(ctx, ownerID, folderID, trash)
}

// TrashWarning is surfaced when the local trash succeeded but the
// provider-side trash call did not.
const TrashWarning = "Cloud sync failed"

// Trash soft-deletes a file. The local record wins: the file is marked
// trashed even if the provider-side trash call fails, in which case the
// returned warning is non-empty and the user gets a warning
// notification.
func (s *Service) Trash(ctx context.Context, ownerID int, id string) (string, error) {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return "", err
	}

	if err := s.store.SetFileTrash(ctx, id, ownerID, true); err != nil {
		return "", err
	}
	s.publish(events.Event{Type: events.EventFileTrashed, UserID: ownerID, FileID: id, Name: f.Name})

	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		logging.Warn("cloud sync failed", zap.String("file_id", id), zap.Error(err))
		return TrashWarning, nil
	}
	trasher, ok := adapter.(storage.Trasher)
	if !ok {
		return "", nil
	}

	start := time.Now()
	err = trasher.Trash(ctx, f.ExternalID)
	metrics.RecordProviderOperation(adapter.Provider(), "trash", time.Since(start), err == nil)
	if err != nil {
		logging.Warn("cloud sync failed",
			zap.String("file_id", id),
			zap.String("provider", f.Provider),
			zap.Error(err))
		if s.notifier != nil {
			s.notifier.Notify(ctx, ownerID, "warning",
				fmt.Sprintf("Cloud sync failed for %s", f.Name), id)
		}
		return TrashWarning, nil
	}
	return "", nil
}

// Restore takes a file out of the trash. Unlike Trash, the provider call
// must succeed first: a file the provider cannot restore stays trashed
// locally so the two sides never disagree in the dangerous direction.
func (s *Service) Restore(ctx context.Context, ownerID int, id string) error {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return err
	}

	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		return fmt.Errorf("resolve provider: %w", err)
	}
	if trasher, ok := adapter.(storage.Trasher); ok {
		start := time.Now()
		err = trasher.Restore(ctx, f.ExternalID)
		metrics.RecordProviderOperation(adapter.Provider(), "restore", time.Since(start), err == nil)
		if err != nil {
			return fmt.Errorf("restore %s: %w", f.Name, err)
		}
	}

	if err := s.store.SetFileTrash(ctx, id, ownerID, false); err != nil {
		return err
	}
	s.publish(events.Event{Type: events.EventFileRestored, UserID: ownerID, FileID: id, Name: f.Name})
	return nil
}

// PermanentDelete removes a file for good. The provider delete must
// succeed before the metadata row is dropped and the owner's usage
// counter decremented by the file's rounded size.
func (s *Service) PermanentDelete(ctx context.Context, ownerID int, id string) error {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return err
	}

	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		metrics.RecordTrashPurge(false)
		return fmt.Errorf("resolve provider: %w", err)
	}

	start := time.Now()
	err = adapter.Delete(ctx, f.ExternalID)
	metrics.RecordProviderOperation(adapter.Provider(), "delete", time.Since(start), err == nil)
	if err != nil {
		metrics.RecordTrashPurge(false)
		return fmt.Errorf("delete %s from %s: %w", f.Name, f.Provider, err)
	}

	if err := s.store.DeleteFileWithUsage(ctx, id, ownerID, f.SizeKB*1024); err != nil {
		metrics.RecordTrashPurge(false)
		return err
	}
	metrics.RecordTrashPurge(true)

	logging.Info("file permanently deleted",
		zap.String("file_id", id),
		zap.Int("owner_id", ownerID),
		zap.String("provider", f.Provider))
	s.publish(events.Event{Type: events.EventFileDeleted, UserID: ownerID, FileID: id, Name: f.Name})
	return nil
}

// Rename renames a file. The local record wins: a provider-side rename
// failure is logged and the local rename stands.
func (s *Service) Rename(ctx context.Context, ownerID int, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}

	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return err
	}
	if err := s.store.RenameFile(ctx, id, ownerID, name); err != nil {
		return err
	}
	s.publish(events.Event{Type: events.EventFileRenamed, UserID: ownerID, FileID: id, Name: name})

	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		logging.Warn("rename not synced to provider", zap.String("file_id", id), zap.Error(err))
		return nil
	}
	if renamer, ok := adapter.(storage.Renamer); ok {
		start := time.Now()
		err = renamer.Rename(ctx, f.ExternalID, name)
		metrics.RecordProviderOperation(adapter.Provider(), "rename", time.Since(start), err == nil)
		if err != nil {
			logging.Warn("rename not synced to provider",
				zap.String("file_id", id),
				zap.String("provider", f.Provider),
				zap.Error(err))
		}
	}
	return nil
}

// Move puts the file into another folder ("" for the root).
func (s *Service) Move(ctx context.Context, ownerID int, id, folderID string) error {
	if folderID != "" {
		if _, err := s.store.GetFolder(ctx, folderID, ownerID); err != nil {
			return fmt.Errorf("folder %s: %w", folderID, err)
		}
	}
	return s.store.MoveFile(ctx, id, ownerID, folderID)
}

// SetStarred toggles the star flag.
func (s *Service) SetStarred(ctx context.Context, ownerID int, id string, starred bool) error {
	return s.store.SetFileStarred(ctx, id, ownerID, starred)
}

// MakePublic issues a share token for the file. If the provider can make
// the object world-readable the provider link is stored too; a provider
// failure is logged and sharing still happens through the server.
func (s *Service) MakePublic(ctx context.Context, ownerID int, id string) (string, error) {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	if f.IsPublic && f.ShareToken != "" {
		return f.ShareToken, nil
	}

	token := uuid.NewString()
	viewURL := ""

	adapter, err := s.resolve(ctx, f.Provider)
	if err == nil {
		if publisher, ok := adapter.(storage.Publisher); ok {
			start := time.Now()
			url, pubErr := publisher.MakePublic(ctx, f.ExternalID)
			metrics.RecordProviderOperation(adapter.Provider(), "make_public", time.Since(start), pubErr == nil)
			if pubErr != nil {
				logging.Warn("provider share failed, serving through server",
					zap.String("file_id", id),
					zap.String("provider", f.Provider),
					zap.Error(pubErr))
			} else {
				viewURL = url
			}
		}
	}

	if err := s.store.SetFilePublic(ctx, id, ownerID, token, viewURL); err != nil {
		return "", err
	}

	logging.Info("file shared", zap.String("file_id", id), zap.Int("owner_id", ownerID))
	return token, nil
}

// GetByShareToken resolves a public share token. Trashed files are not
// served even when their token is still known.
func (s *Service) GetByShareToken(ctx context.Context, token string) (*File, error) {
	f, err := s.store.GetFileByShareToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if !f.IsPublic || f.IsTrash {
		return nil, ErrNotFound
	}
	return f, nil
}

// DownloadURL asks the file's provider for a fetchable URL.
func (s *Service) DownloadURL(ctx context.Context, ownerID int, id string) (string, error) {
	f, err := s.store.GetFile(ctx, id, ownerID)
	if err != nil {
		return "", err
	}
	return s.downloadURL(ctx, f)
}

func (s *Service) downloadURL(ctx context.Context, f *File) (string, error) {
	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		return "", fmt.Errorf("resolve provider: %w", err)
	}
	start := time.Now()
	url, err := adapter.GetDownloadURL(ctx, f.ExternalID)
	metrics.RecordProviderOperation(adapter.Provider(), "get_download_url", time.Since(start), err == nil)
	if err != nil {
		return "", err
	}
	return url, nil
}

// ShareDownloadURL returns a provider URL for fetching a public file
// directly, for providers that cannot stream through the server.
func (s *Service) ShareDownloadURL(ctx context.Context, f *File) (string, error) {
	return s.downloadURL(ctx, f)
}

// OpenStream streams the file's content through the server. Falls back
// to ErrNotSupported when the provider cannot stream.
func (s *Service) OpenStream(ctx context.Context, f *File) (io.ReadCloser, int64, error) {
	adapter, err := s.resolve(ctx, f.Provider)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve provider: %w", err)
	}
	streamer, ok := adapter.(storage.Streamer)
	if !ok {
		return nil, 0, fmt.Errorf("provider %s: %w", adapter.Provider(), storage.ErrNotSupported)
	}
	return streamer.DownloadStream(ctx, f.ExternalID)
}

// Stats returns the owner's storage usage.
func (s *Service) Stats(ctx context.Context, ownerID int) (*StorageStats, error) {
	return s.store.GetStorageStats(ctx, ownerID)
}

func (s *Service) publish(e events.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}
