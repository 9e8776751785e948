package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/nzoschke/beatmarket/internal/config"
)

// Storage holds uploaded beat files.
type Storage interface {
	// Save stores a file at the given path
	Save(ctx context.Context, path string, file io.Reader, contentType string) error

	// Delete removes a file at the given path
	Delete(ctx context.Context, path string) error

	// URL returns a URL clients can download the file from
	URL(ctx context.Context, path string) string
}

// New picks the backend configured by STORAGE_DRIVER.
func New(ctx context.Context, c *config.Config) (Storage, error) {
	switch c.StorageDriver {
	case config.StorageDriverS3:
		slog.Info("initializing S3 storage",
			"bucket", c.S3Bucket,
			"region", c.S3Region,
			"endpoint", c.S3Endpoint,
		)
		return NewS3Storage(ctx, S3Config{
			Region:        c.S3Region,
			Bucket:        c.S3Bucket,
			AccessKey:     c.S3AccessKey,
			SecretKey:     c.S3SecretKey,
			Endpoint:      c.S3Endpoint,
			PresignExpiry: c.S3PresignExpiry,
		})
	case config.StorageDriverDisk, "":
		slog.Info("initializing disk storage", "dir", c.UploadDir)
		return NewDiskStorage(c.UploadDir, c.AppURL+"/uploads")
	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.StorageDriver)
	}
}
