// Package postgres provides a PostgreSQL-backed metadata store with metrics.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metrics"
)

// Store is a PostgreSQL metadata store. It implements files.Store.
type Store struct {
	db           *sql.DB
	defaultQuota int64
}

// New creates a new PostgreSQL metadata store. defaultQuota is the
// storage quota assigned to newly created users, in bytes.
func New(databaseURL string, defaultQuota int64) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db, defaultQuota: defaultQuota}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// UpdateConnectionMetrics updates the database connection metrics.
func (s *Store) UpdateConnectionMetrics() {
	stats := s.db.Stats()
	metrics.SetDBConnectionsOpen(stats.OpenConnections)
}

// Migrate runs SQL migration files.
func (s *Store) Migrate(migrationsDir string) error {
	matches, err := filepath.Glob(filepath.Join(migrationsDir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}

	for _, f := range matches {
		logging.Info("running migration", zap.String("file", filepath.Base(f)))
		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", f, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", f, err)
		}
	}

	return nil
}

// GetStorageStats returns a user's storage usage, quota and file count.
func (s *Store) GetStorageStats(ctx context.Context, ownerID int) (*files.StorageStats, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_storage_stats", time.Since(start)) }()

	var stats files.StorageStats
	err := s.db.QueryRowContext(ctx,
		`SELECT storage_used, storage_quota FROM users WHERE id = $1`,
		ownerID).Scan(&stats.UsedBytes, &stats.QuotaBytes)
	if err == sql.ErrNoRows {
		return nil, files.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM files WHERE owner_id = $1 AND is_trash = FALSE`,
		ownerID).Scan(&stats.FileCount)
	if err != nil {
		return nil, fmt.Errorf("count files: %w", err)
	}
	return &stats, nil
}
