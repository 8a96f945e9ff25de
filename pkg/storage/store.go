package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/noah-isme/dokumen-api/pkg/config"
)

// ErrObjectNotFound is returned by Open when no object exists under the key.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore persists document binaries under opaque keys.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// New builds the object store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.BaseDir)
	case "s3":
		return NewS3Store(ctx, cfg.Region, cfg.Bucket, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
