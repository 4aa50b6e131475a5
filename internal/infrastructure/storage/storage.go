package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
)

var (
	ErrObjectNotFound = errors.New("object not found in storage")
	// ErrPresignNotSupported is returned by backends that cannot mint
	// time-limited URLs.
	ErrPresignNotSupported = errors.New("presigned URLs not supported by this storage backend")
)

// BlobStore stores opaque byte payloads under caller-chosen keys and
// returns a stable ref for later retrieval. It never retries
// internally; transport errors are returned wrapped.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Get(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
	Exists(ctx context.Context, ref string) (bool, error)
	PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error)
}

func New(cfg *config.StorageConfig) (BlobStore, error) {
	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("Initializing local blob storage")
		return NewLocalStorage(cfg)
	case "s3":
		zlog.Logger.Info().Msg("Initializing S3 blob storage")
		return NewS3Storage(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("Unsupported storage type, use 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
