package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/metrics"
)

type ancestorJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func marshalAncestors(a []files.Ancestor) ([]byte, error) {
	out := make([]ancestorJSON, len(a))
	for i, anc := range a {
		out[i] = ancestorJSON{ID: anc.ID, Name: anc.Name}
	}
	return json.Marshal(out)
}

func unmarshalAncestors(data []byte) ([]files.Ancestor, error) {
	var raw []ancestorJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]files.Ancestor, len(raw))
	for i, anc := range raw {
		out[i] = files.Ancestor{ID: anc.ID, Name: anc.Name}
	}
	return out, nil
}

func scanFolder(row interface{ Scan(...interface{}) error }) (*files.Folder, error) {
	var f files.Folder
	var ancestors []byte
	err := row.Scan(&f.ID, &f.OwnerID, &f.Name, &f.ParentID, &ancestors,
		&f.IsTrash, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	f.Ancestors, err = unmarshalAncestors(ancestors)
	if err != nil {
		return nil, fmt.Errorf("decode ancestors: %w", err)
	}
	return &f, nil
}

const folderColumns = `id, owner_id, name, COALESCE(parent_id, ''), ancestors, is_trash, created_at, updated_at`

// CreateFolder inserts a folder row.
func (s *Store) CreateFolder(ctx context.Context, f *files.Folder) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("create_folder", time.Since(start)) }()

	ancestors, err := marshalAncestors(f.Ancestors)
	if err != nil {
		return fmt.Errorf("encode ancestors: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO folders (id, owner_id, name, parent_id, ancestors, is_trash, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		f.ID, f.OwnerID, f.Name, nullable(f.ParentID), ancestors, f.IsTrash, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert folder: %w", err)
	}
	return nil
}

// GetFolder returns one of the owner's folders.
func (s *Store) GetFolder(ctx context.Context, id string, ownerID int) (*files.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_folder", time.Since(start)) }()

	f, err := scanFolder(s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = $1 AND owner_id = $2`, id, ownerID))
	if err == sql.ErrNoRows {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query folder: %w", err)
	}
	return f, nil
}

// ListFolders returns the owner's folders under parentID ("" for the root).
func (s *Store) ListFolders(ctx context.Context, ownerID int, parentID string, trash bool) ([]files.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_folders", time.Since(start)) }()

	var rows *sql.Rows
	var err error
	if parentID == "" {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+folderColumns+` FROM folders
			 WHERE owner_id = $1 AND parent_id IS NULL AND is_trash = $2 ORDER BY name`,
			ownerID, trash)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT `+folderColumns+` FROM folders
			 WHERE owner_id = $1 AND parent_id = $2 AND is_trash = $3 ORDER BY name`,
			ownerID, parentID, trash)
	}
	if err != nil {
		return nil, fmt.Errorf("query folders: %w", err)
	}
	defer rows.Close()

	return collectFolders(rows)
}

// ListFoldersUnderFolder returns a folder's descendants via ancestor
// containment, ordered shallow to deep so callers can delete in reverse.
func (s *Store) ListFoldersUnderFolder(ctx context.Context, ownerID int, folderID string) ([]files.Folder, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_folders_under_folder", time.Since(start)) }()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+folderColumns+` FROM folders
		 WHERE owner_id = $1 AND ancestors @> jsonb_build_array(jsonb_build_object('id', $2::text))
		 ORDER BY jsonb_array_length(ancestors)`,
		ownerID, folderID)
	if err != nil {
		return nil, fmt.Errorf("query descendant folders: %w", err)
	}
	defer rows.Close()

	return collectFolders(rows)
}

func collectFolders(rows *sql.Rows) ([]files.Folder, error) {
	var out []files.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan folder: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// RenameFolder updates the folder's name.
func (s *Store) RenameFolder(ctx context.Context, id string, ownerID int, name string) error {
	return s.updateFile(ctx, "rename_folder",
		`UPDATE folders SET name = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, name)
}

// SetFolderTrash sets the folder's trash flag.
func (s *Store) SetFolderTrash(ctx context.Context, id string, ownerID int, trash bool) error {
	return s.updateFile(ctx, "set_folder_trash",
		`UPDATE folders SET is_trash = $3, updated_at = NOW() WHERE id = $1 AND owner_id = $2`,
		id, ownerID, trash)
}

// DeleteFolder removes the folder row.
func (s *Store) DeleteFolder(ctx context.Context, id string, ownerID int) error {
	return s.updateFile(ctx, "delete_folder",
		`DELETE FROM folders WHERE id = $1 AND owner_id = $2`, id, ownerID)
}
