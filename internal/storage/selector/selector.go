// Package selector maps provider names to storage adapters.
package selector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/config"
	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/storage"
	"github.com/peardrive/peardrive/internal/storage/drive"
	"github.com/peardrive/peardrive/internal/storage/mock"
	s3adapter "github.com/peardrive/peardrive/internal/storage/s3"
)

// mockLatency makes the development adapter feel like a remote
// provider.
const mockLatency = 100 * time.Millisecond

// Select returns the adapter for the named provider. Unknown or empty
// provider names fall back to the mock adapter so file metadata written
// under a provider that was later removed stays serviceable.
func Select(ctx context.Context, provider string, cfg *config.Config) (storage.Adapter, error) {
	switch provider {
	case "google_drive":
		return drive.New(drive.Config{
			ClientID:     cfg.DriveClientID,
			ClientSecret: cfg.DriveClientSecret,
			RefreshToken: cfg.DriveRefreshToken,
			FolderID:     cfg.DriveFolderID,
		})
	case "s3":
		return s3adapter.New(ctx, s3adapter.Config{
			Endpoint:  cfg.S3Endpoint,
			Bucket:    cfg.S3Bucket,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
			Region:    cfg.S3Region,
		})
	case "local_mock", "":
		return mock.NewWithLatency(mockLatency), nil
	default:
		logging.Warn("unknown storage provider, falling back to mock",
			zap.String("provider", provider))
		return mock.NewWithLatency(mockLatency), nil
	}
}
