// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Public base URL used when building share links.
	PublicBaseURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string

	// Auth
	JWTSecret string

	// Storage provider for new uploads ("google_drive", "s3", "local_mock")
	StorageProvider string

	// Google Drive
	DriveClientID     string
	DriveClientSecret string
	DriveRefreshToken string
	DriveFolderID     string

	// S3
	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string

	// Uploads
	MaxUploadSize int64

	// Default storage quota for new users (bytes)
	DefaultStorageQuota int64
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:    envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:   envOr("METRICS_ADDR", ":9090"),
		PublicBaseURL: envOr("PUBLIC_BASE_URL", "http://localhost:8080"),
		LogLevel:      envOr("LOG_LEVEL", "info"),
		LogFormat:     envOr("LOG_FORMAT", "json"),
		DatabaseURL:   envOr("DATABASE_URL", ""),
		JWTSecret:     envOr("JWT_SECRET", ""),

		StorageProvider: envOr("STORAGE_PROVIDER", "local_mock"),

		DriveClientID:     envOr("DRIVE_CLIENT_ID", ""),
		DriveClientSecret: envOr("DRIVE_CLIENT_SECRET", ""),
		DriveRefreshToken: envOr("DRIVE_REFRESH_TOKEN", ""),
		DriveFolderID:     envOr("DRIVE_FOLDER_ID", ""),

		S3Endpoint:  envOr("S3_ENDPOINT", "http://localhost:9000"),
		S3Bucket:    envOr("S3_BUCKET", "peardrive"),
		S3AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		S3Region:    envOr("S3_REGION", "us-east-1"),

		MaxUploadSize:       envInt64("MAX_UPLOAD_SIZE", 100*1024*1024),        // 100MB default
		DefaultStorageQuota: envInt64("DEFAULT_STORAGE_QUOTA", 1024*1024*1024), // 1GB default
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.StorageProvider == "google_drive" && cfg.DriveRefreshToken == "" {
		return nil, fmt.Errorf("DRIVE_REFRESH_TOKEN is required when STORAGE_PROVIDER=google_drive")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}
