// Package protocol defines the API request/response types.
package protocol

import "time"

// ErrorResponse is returned on API errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// UploadSessionRequest is the body for POST /api/v1/uploads/session.
// Origin is the page origin the provider should allow to PUT to the
// session URL; absent, the server falls back to the request's Origin
// header.
type UploadSessionRequest struct {
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	FolderID string `json:"folder_id,omitempty"`
	Origin   string `json:"origin,omitempty"`
}

// UploadSessionResponse is returned when a resumable upload session is created.
type UploadSessionResponse struct {
	UploadURL string `json:"upload_url"`
	Provider  string `json:"provider"`
}

// FinalizeUploadRequest is the body for POST /api/v1/uploads/finalize.
// ViewURL and DownloadURL carry the provider's webViewLink and
// webContentLink from the completion body, when it had them.
type FinalizeUploadRequest struct {
	FileName    string `json:"file_name"`
	MimeType    string `json:"mime_type"`
	Size        int64  `json:"size"`
	FolderID    string `json:"folder_id,omitempty"`
	Provider    string `json:"provider"`
	ExternalID  string `json:"external_id"`
	ViewURL     string `json:"view_url,omitempty"`
	DownloadURL string `json:"download_url,omitempty"`
}

// FileResponse describes a file in API responses.
type FileResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	SizeKB      int64     `json:"size_kb"`
	FolderID    string    `json:"folder_id,omitempty"`
	Provider    string    `json:"provider"`
	ViewURL     string    `json:"view_url,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	ShareToken  string    `json:"share_token,omitempty"`
	IsPublic    bool      `json:"is_public"`
	IsStarred   bool      `json:"is_starred"`
	IsTrash     bool      `json:"is_trash"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FileListResponse is returned by GET /api/v1/files.
type FileListResponse struct {
	Files []FileResponse `json:"files"`
}

// RenameRequest is the body for PATCH /api/v1/files/{id}/rename.
type RenameRequest struct {
	Name string `json:"name"`
}

// MoveRequest is the body for PATCH /api/v1/files/{id}/move.
type MoveRequest struct {
	FolderID string `json:"folder_id"`
}

// FolderRequest is the body for POST /api/v1/folders.
type FolderRequest struct {
	Name     string `json:"name"`
	ParentID string `json:"parent_id,omitempty"`
}

// FolderResponse describes a folder in API responses.
type FolderResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	ParentID  string     `json:"parent_id,omitempty"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
	IsTrash   bool       `json:"is_trash"`
	CreatedAt time.Time  `json:"created_at"`
}

// Ancestor is one entry in a folder's materialized ancestor path.
type Ancestor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FolderListResponse is returned by GET /api/v1/folders.
type FolderListResponse struct {
	Folders []FolderResponse `json:"folders"`
	Files   []FileResponse   `json:"files"`
}

// PurgeResponse summarizes a permanent folder deletion.
type PurgeResponse struct {
	Deleted int      `json:"deleted"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ShareResponse is returned when a file is made public.
type ShareResponse struct {
	ShareToken string `json:"share_token"`
	ShareURL   string `json:"share_url"`
}

// StorageStatsResponse is returned by GET /api/v1/storage.
type StorageStatsResponse struct {
	UsedBytes  int64 `json:"used_bytes"`
	QuotaBytes int64 `json:"quota_bytes"`
	FileCount  int64 `json:"file_count"`
}

// NotificationResponse describes a single user notification.
type NotificationResponse struct {
	ID        int       `json:"id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	FileID    string    `json:"file_id,omitempty"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// SSEEvent represents a server-sent event for real-time updates.
type SSEEvent struct {
	Type      string `json:"type"`
	FileID    string `json:"file_id,omitempty"`
	FolderID  string `json:"folder_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Size      int64  `json:"size,omitempty"`
	Timestamp int64  `json:"timestamp"`
}
