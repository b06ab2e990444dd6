// Package archive reads and publishes precomputed backtest results on a
// local directory or an S3-compatible bucket.
package archive

import (
	"context"
	"fmt"
)

// Storage is a flat object store addressed by slash-separated paths.
// Read of a missing object returns an error matching fs.ErrNotExist.
type Storage interface {
	// Write stores data at the given path
	Write(ctx context.Context, path string, data []byte) error

	// Read retrieves data from the given path
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists checks if data exists at the given path
	Exists(ctx context.Context, path string) (bool, error)
}

// Config selects and configures a Storage backend.
type Config struct {
	Type string // "localfs" or "s3"
	Path string // For localfs
	S3   S3Config
}

// Open creates the backend named by cfg.Type.
func Open(cfg Config) (Storage, error) {
	switch cfg.Type {
	case "localfs", "":
		return NewLocalFS(cfg.Path)
	case "s3":
		return NewS3(cfg.S3)
	default:
		return nil, fmt.Errorf("unknown archive type %q", cfg.Type)
	}
}
