// Package files implements the file and folder domain: upload
// finalization, trash, sharing and quota accounting on top of a
// metadata Store and per-provider storage adapters.
package files

import (
	"context"
	"errors"
	"time"

	"github.com/peardrive/peardrive/internal/storage"
)

var (
	// ErrNotFound is returned when a file or folder does not exist or
	// belongs to another user.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrQuotaExceeded is returned when an upload would exceed the
	// user's storage quota.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// File is the metadata record for a stored object. SizeKB is the size
// rounded to kilobytes; byte-precise usage lives in the owner's storage
// usage counter.
type File struct {
	ID          string
	OwnerID     int
	Name        string
	MimeType    string
	SizeKB      int64
	FolderID    string
	Provider    string
	ExternalID  string
	ViewURL     string
	DownloadURL string
	ShareToken  string
	IsPublic    bool
	IsStarred   bool
	IsTrash     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Ancestor is one entry in a folder's materialized ancestor path, root
// first.
type Ancestor struct {
	ID   string
	Name string
}

// Folder is a metadata-only container. Ancestors is the full chain of
// parent folders, which makes "everything under this folder" a
// containment query instead of a recursive walk.
type Folder struct {
	ID        string
	OwnerID   int
	Name      string
	ParentID  string
	Ancestors []Ancestor
	IsTrash   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StorageStats summarizes a user's storage consumption.
type StorageStats struct {
	UsedBytes  int64
	QuotaBytes int64
	FileCount  int64
}

// Store is the metadata persistence interface.
type Store interface {
	// CreateFileWithUsage inserts the file and increments the owner's
	// storage usage by usedBytes in a single transaction. Returns
	// ErrQuotaExceeded if the increment would pass the owner's quota.
	CreateFileWithUsage(ctx context.Context, f *File, usedBytes int64) error

	// DeleteFileWithUsage removes the file row and decrements the
	// owner's storage usage by freedBytes in a single transaction.
	DeleteFileWithUsage(ctx context.Context, id string, ownerID int, freedBytes int64) error

	GetFile(ctx context.Context, id string, ownerID int) (*File, error)
	GetFileByShareToken(ctx context.Context, token string) (*File, error)
	ListFiles(ctx context.Context, ownerID int, folderID string, trash bool) ([]File, error)

	RenameFile(ctx context.Context, id string, ownerID int, name string) error
	MoveFile(ctx context.Context, id string, ownerID int, folderID string) error
	SetFileTrash(ctx context.Context, id string, ownerID int, trash bool) error
	SetFileStarred(ctx context.Context, id string, ownerID int, starred bool) error
	SetFilePublic(ctx context.Context, id string, ownerID int, token, viewURL string) error

	GetStorageStats(ctx context.Context, ownerID int) (*StorageStats, error)

	CreateFolder(ctx context.Context, f *Folder) error
	GetFolder(ctx context.Context, id string, ownerID int) (*Folder, error)
	ListFolders(ctx context.Context, ownerID int, parentID string, trash bool) ([]Folder, error)
	RenameFolder(ctx context.Context, id string, ownerID int, name string) error
	SetFolderTrash(ctx context.Context, id string, ownerID int, trash bool) error
	DeleteFolder(ctx context.Context, id string, ownerID int) error

	// ListFilesUnderFolder returns every file whose folder, or any
	// ancestor of its folder, is the given folder. Used for purge.
	ListFilesUnderFolder(ctx context.Context, ownerID int, folderID string) ([]File, error)

	// ListFoldersUnderFolder returns the folder's descendants by
	// ancestor containment, the folder itself excluded.
	ListFoldersUnderFolder(ctx context.Context, ownerID int, folderID string) ([]Folder, error)
}

// AdapterResolver returns the storage adapter for a provider name.
type AdapterResolver func(ctx context.Context, provider string) (storage.Adapter, error)
