package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/metrics"
)

const fileColumns = `id, owner_id, name, mime_type, size_kb, COALESCE(folder_id, ''), provider,
	external_id, view_url, download_url, COALESCE(share_token, ''), is_public, is_starred,
	is_trash, created_at, updated_at`

func scanFile(row interface{ Scan(...interface{}) error }) (*files.File, error) {
	var f files.File
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.MimeType, &f.SizeKB, &f.FolderID,
		&f.Provider, &f.ExternalID, &f.ViewURL, &f.DownloadURL, &f.ShareToken,
		&f.IsPublic, &f.IsStarred, &f.IsTrash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// nullable maps "" to NULL for optional foreign keys.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// CreateFileWithUsage inserts the file and bumps the owner's usage
// counter in one transaction. The usage update doubles as the quota
// check: it only matches when the new total stays under the quota. A
// zero quota means unlimited.
func (s *Store) CreateFileWithUsage(ctx context.Context, f *files.File, usedBytes int64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_file_with_usage", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE users SET storage_used = storage_used + $1
		 WHERE id = $2 AND (storage_quota = 0 OR storage_used + $1 <= storage_quota)`,
		usedBytes, f.OwnerID)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either the user is missing or the quota would be exceeded.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, f.OwnerID).Scan(&exists); err != nil {
			return fmt.Errorf("check user: %w", err)
		}
		if !exists {
			return files.ErrNotFound
		}
		return files.ErrQuotaExceeded
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO files (id, owner_id, name, mime_type, size_kb, folder_id, provider,
			external_id, view_url, download_url, is_public, is_starred, is_trash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		f.ID, f.OwnerID, f.Name, f.MimeType, f.SizeKB, nullable(f.FolderID), f.Provider,
		f.ExternalID, f.ViewURL, f.DownloadURL, f.IsPublic, f.IsStarred, f.IsTrash,
		f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert file: %w", err)
	}

	return tx.Commit()
}

// DeleteFileWithUsage removes the file row and releases freedBytes from
// the owner's usage counter in one transaction. The counter never goes
// below zero.
func (s *Store) DeleteFileWithUsage(ctx context.Context, id string, ownerID int, freedBytes int64) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_file_with_usage", time.Since(start)) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return files.ErrNotFound
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET storage_used = GREATEST(storage_used - $1, 0) WHERE id = $2`,
		freedBytes, ownerID)
	if err != nil {
		return fmt.Errorf("update usage: %w", err)
	}

	return tx.Commit()
}

// GetFile returns one of the owner's files.
func (s *Store) GetFile(ctx context.Context, id string, ownerID int) (*files.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_file", time.Since(start)) }()

	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	return f, nil
}

// GetFileByShareToken returns a file by its public share token.
func (s *Store) GetFileByShareToken(ctx context.Context, token string) (*files.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_file_by_share_token", time.Since(start)) }()

	f, err := scanFile(s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE share_token = $1`, token))
	if err == sql.ErrNoRows {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query file: %w", err)
	}
	return f, nil
}

// ListFiles returns the owner's files in a folder ("" for the root).
func (s *Store) ListFiles(ctx context.Context, ownerID int, folderID string, trash bool) ([]files.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_files", time.Since(start)) }()

	var rows *sql.Rows
	var err error
	if folderID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+fileColumns+` FROM files
			 WHERE owner_id = $1 AND folder_id IS NULL AND is_trash = $2 ORDER BY name`,
			ownerID, trash)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+fileColumns+` FROM files
			 WHERE owner_id = $1 AND folder_id = $2 AND is_trash = $3 ORDER BY name`,
			ownerID, folderID, trash)
	}
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var out []files.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// ListFilesUnderFolder returns every file directly in the folder or in
// any of its descendants, found by ancestor containment.
func (s *Store) ListFilesUnderFolder(ctx context.Context, ownerID int, folderID string) ([]files.File, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_files_under_folder", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files
		 WHERE owner_id = $1 AND (
			folder_id = $2 OR folder_id IN (
				SELECT id FROM folders
				WHERE owner_id = $1 AND ancestors @> jsonb_build_array(jsonb_build_object('id', $2::text))
			)
		 ) ORDER BY name`,
		ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("query files under folder: %w", err)
	}
	defer rows.Close()

	var out []files.File
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// RenameFile updates the file's name.
func (s *Store) RenameFile(ctx context.Context, id string, ownerID int, name string) error {
	return s.updateFile(ctx, "rename_file",
		`UPDATE files SET name = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, name)
}

// MoveFile updates the file's folder ("" for the root).
func (s *Store) MoveFile(ctx context.Context, id string, ownerID int, folderID string) error {
	return s.updateFile(ctx, "move_file",
		`UPDATE files SET folder_id = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, nullable(folderID))
}

// SetFileTrash sets the file's trash flag.
func (s *Store) SetFileTrash(ctx context.Context, id string, ownerID int, trash bool) error {
	return s.updateFile(ctx, "set_file_trash",
		`UPDATE files SET is_trash = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, trash)
}

// SetFileStarred sets the file's star flag.
func (s *Store) SetFileStarred(ctx context.Context, id string, ownerID int, starred bool) error {
	return s.updateFile(ctx, "set_file_starred",
		`UPDATE files SET is_starred = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, starred)
}

// SetFilePublic marks the file public with its share token and optional
// provider view URL. An empty viewURL keeps whatever link was stored
// before, so re-sharing after a provider failure never erases one.
func (s *Store) SetFilePublic(ctx context.Context, id string, ownerID int, token, viewURL string) error {
	return s.updateFile(ctx, "set_file_public",
		`UPDATE files SET is_public = TRUE, share_token = $3,
			view_url = COALESCE(NULLIF($4, ''), view_url), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2`,
		id, ownerID, token, viewURL)
}

func (s *Store) updateFile(ctx context.Context, query string, stmt string, args ...interface{}) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery(query, time.Since(start)) }()

	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", query, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return files.ErrNotFound
	}
	return nil
}
