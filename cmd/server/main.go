// PearDrive Server
//
// Features:
// - Resumable uploads via provider sessions (Drive, S3)
// - Transactional finalization with per-user storage quotas
// - Trash, restore and permanent purge with provider reconciliation
// - Public share links
// - SSE real-time updates per user
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/peardrive/peardrive/internal/api"
	"github.com/peardrive/peardrive/internal/auth"
	"github.com/peardrive/peardrive/internal/config"
	"github.com/peardrive/peardrive/internal/events"
	"github.com/peardrive/peardrive/internal/files"
	"github.com/peardrive/peardrive/internal/logging"
	"github.com/peardrive/peardrive/internal/metadata/postgres"
	"github.com/peardrive/peardrive/internal/metrics"
	"github.com/peardrive/peardrive/internal/notify"
	"github.com/peardrive/peardrive/internal/storage"
	"github.com/peardrive/peardrive/internal/storage/selector"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("PearDrive Server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("provider", cfg.StorageProvider))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize PostgreSQL
	logging.Info("connecting to PostgreSQL...")
	metaStore, err := postgres.New(cfg.DatabaseURL, cfg.DefaultStorageQuota)
	if err != nil {
		logging.Fatal("database connection failed", zap.Error(err))
	}
	defer metaStore.Close()

	// Run migrations
	migrationsDir := findMigrationsDir()
	if migrationsDir != "" {
		logging.Info("running migrations...", zap.String("dir", migrationsDir))
		if err := metaStore.Migrate(migrationsDir); err != nil {
			logging.Fatal("migration failed", zap.Error(err))
		}
	}

	// Initialize auth
	authHandler := auth.New(metaStore.DB(), cfg.JWTSecret, cfg.DefaultStorageQuota)
	if err := authHandler.EnsureDefaultAdmin(ctx); err != nil {
		logging.Error("failed to ensure default admin", zap.Error(err))
	}

	// Initialize SSE broadcaster and notifications
	broadcaster := events.NewBroadcaster()
	notifier := notify.New(metaStore, broadcaster)

	// Storage adapters are constructed once per provider and reused.
	resolve := cachedResolver(cfg)

	svc := files.NewService(metaStore, resolve, broadcaster, notifier,
		cfg.StorageProvider, cfg.MaxUploadSize)

	srv := api.NewServer(svc, notifier, authHandler, broadcaster, cfg)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Handler(),
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Start periodic metrics update
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metaStore.UpdateConnectionMetrics()
			}
		}
	}()

	logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}

// cachedResolver wraps the provider selector so each adapter is built
// once. Drive and S3 clients hold token sources and connection pools
// that should be shared across requests.
func cachedResolver(cfg *config.Config) files.AdapterResolver {
	var mu sync.Mutex
	adapters := make(map[string]storage.Adapter)

	return func(ctx context.Context, provider string) (storage.Adapter, error) {
		mu.Lock()
		defer mu.Unlock()

		if a, ok := adapters[provider]; ok {
			return a, nil
		}
		a, err := selector.Select(ctx, provider, cfg)
		if err != nil {
			return nil, err
		}
		adapters[provider] = a
		return a, nil
	}
}

func findMigrationsDir() string {
	candidates := []string{
		"migrations",
		"../migrations",
	}

	exe, _ := os.Executable()
	if exe != "" {
		candidates = append(candidates, filepath.Join(filepath.Dir(exe), "migrations"))
	}

	for _, dir := range candidates {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
	}
	return ""
}
