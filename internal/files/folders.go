package files

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/events"
	"github.com/peardrive/peardrive/internal/logging"
)

// PurgeResult aggregates the outcome of a permanent folder deletion.
// A purge keeps going past individual provider failures and reports
// them all at the end.
type PurgeResult struct {
	Deleted int
	Failed  int
	Errors  []string
}

// CreateFolder creates a folder under parentID ("" for the root). The
// new folder inherits the parent's ancestor chain plus the parent
// itself.
func (s *Service) CreateFolder(ctx context.Context, ownerID int, name, parentID string) (*Folder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: folder name required", ErrValidation)
	}

	var ancestors []Ancestor
	if parentID != "" {
		parent, err := s.store.GetFolder(ctx, parentID, ownerID)
		if err != nil {
			return nil, fmt.Errorf("parent folder %s: %w", parentID, err)
		}
		ancestors = append(ancestors, parent.Ancestors...)
		ancestors = append(ancestors, Ancestor{ID: parent.ID, Name: parent.Name})
	}

	now := time.Now()
	f := &Folder{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		ParentID:  parentID,
		Ancestors: ancestors,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateFolder(ctx, f); err != nil {
		return nil, err
	}

	s.publish(events.Event{Type: events.EventFolderCreated, UserID: ownerID, FolderID: f.ID, Name: name})
	return f, nil
}

// GetFolder returns one of the owner's folders.
func (s *Service) GetFolder(ctx context.Context, ownerID int, id string) (*Folder, error) {
	return s.store.GetFolder(ctx, id, ownerID)
}

// ListFolders returns the owner's folders under parentID ("" for the
// root), trashed or not.
func (s *Service) ListFolders(ctx context.Context, ownerID int, parentID string, trash bool) ([]Folder, error) {
	return s.store.ListFolders(ctx, ownerID, parentID, trash)
}

// RenameFolder renames a folder. Ancestor entries in descendants keep
// the name the folder had when they were created; they are display
// hints, identity is by ID.
func (s *Service) RenameFolder(ctx context.Context, ownerID int, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: name required", ErrValidation)
	}
	return s.store.RenameFolder(ctx, id, ownerID, name)
}

// TrashFolder soft-deletes a folder together with every folder and file
// underneath it. Providers are not contacted; the content is only
// hidden until restored or purged.
func (s *Service) TrashFolder(ctx context.Context, ownerID int, id string) error {
	return s.setFolderTreeTrash(ctx, ownerID, id, true)
}

// RestoreFolder takes a folder and everything under it out of the trash.
func (s *Service) RestoreFolder(ctx context.Context, ownerID int, id string) error {
	return s.setFolderTreeTrash(ctx, ownerID, id, false)
}

func (s *Service) setFolderTreeTrash(ctx context.Context, ownerID int, id string, trash bool) error {
	if _, err := s.store.GetFolder(ctx, id, ownerID); err != nil {
		return err
	}

	if err := s.store.SetFolderTrash(ctx, id, ownerID, trash); err != nil {
		return err
	}

	descendants, err := s.store.ListFoldersUnderFolder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	for _, d := range descendants {
		if err := s.store.SetFolderTrash(ctx, d.ID, ownerID, trash); err != nil {
			return err
		}
	}

	fs, err := s.store.ListFilesUnderFolder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	for _, f := range fs {
		if err := s.store.SetFileTrash(ctx, f.ID, ownerID, trash); err != nil {
			return err
		}
	}

	eventType := events.EventFolderTrashed
	if !trash {
		eventType = events.EventFolderRestored
	}
	s.publish(events.Event{Type: eventType, UserID: ownerID, FolderID: id})
	return nil
}

// PurgeFolder permanently deletes a folder and everything under it.
// Each file's provider delete is attempted independently; failures are
// collected rather than aborting the purge. The folder rows are only
// removed once every file is gone, so a partial purge can be retried.
func (s *Service) PurgeFolder(ctx context.Context, ownerID int, id string) (*PurgeResult, error) {
	if _, err := s.store.GetFolder(ctx, id, ownerID); err != nil {
		return nil, err
	}

	fs, err := s.store.ListFilesUnderFolder(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	result := &PurgeResult{}
	for _, f := range fs {
		if err := s.PermanentDelete(ctx, ownerID, f.ID); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", f.Name, err))
			logging.Warn("purge: file delete failed",
				zap.String("file_id", f.ID),
				zap.String("folder_id", id),
				zap.Error(err))
			continue
		}
		result.Deleted++
	}

	if result.Failed > 0 {
		logging.Warn("folder purge incomplete",
			zap.String("folder_id", id),
			zap.Int("deleted", result.Deleted),
			zap.Int("failed", result.Failed))
		return result, nil
	}

	descendants, err := s.store.ListFoldersUnderFolder(ctx, ownerID, id)
	if err != nil {
		return result, err
	}
	// Delete leaves first so no row ever points at a missing parent.
	for i := len(descendants) - 1; i >= 0; i-- {
		if err := s.store.DeleteFolder(ctx, descendants[i].ID, ownerID); err != nil {
			return result, err
		}
	}
	if err := s.store.DeleteFolder(ctx, id, ownerID); err != nil {
		return result, err
	}

	logging.Info("folder purged",
		zap.String("folder_id", id),
		zap.Int("owner_id", ownerID),
		zap.Int("files", result.Deleted))
	s.publish(events.Event{Type: events.EventFolderDeleted, UserID: ownerID, FolderID: id})
	return result, nil
}
