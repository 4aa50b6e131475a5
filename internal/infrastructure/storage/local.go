package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
)

type localStorage struct {
	basePath string
	blobDir  string
}

func NewLocalStorage(cfg *config.StorageConfig) (BlobStore, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if cfg.BlobDir == "" {
		cfg.BlobDir = "blobs"
	}

	s := &localStorage{
		basePath: cfg.LocalPath,
		blobDir:  cfg.BlobDir,
	}

	if err := os.MkdirAll(filepath.Join(s.basePath, s.blobDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return s, nil
}

func (s *localStorage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}

	ref := filepath.Join(s.blobDir, key)
	fullPath := filepath.Join(s.basePath, ref)

	file, err := os.Create(fullPath)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create blob file")
		return "", fmt.Errorf("create file %s: %w", fullPath, err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write blob file")
		return "", fmt.Errorf("write file %s: %w", fullPath, err)
	}

	zlog.Logger.Info().
		Str("ref", ref).
		Str("content_type", contentType).
		Int64("bytes", written).
		Msg("blob saved")

	return ref, nil
}

func (s *localStorage) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	fullPath := filepath.Join(s.basePath, ref)

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Error().Str("path", fullPath).Msg("blob not found")
			return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to open blob file")
		return nil, fmt.Errorf("open file %s: %w", fullPath, err)
	}

	return file, nil
}

func (s *localStorage) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}

	fullPath := filepath.Join(s.basePath, ref)

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			zlog.Logger.Warn().Str("path", fullPath).Msg("blob not found, skipping delete")
			return nil
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to delete blob file")
		return fmt.Errorf("delete file %s: %w", fullPath, err)
	}

	zlog.Logger.Info().Str("ref", ref).Msg("blob deleted")
	return nil
}

func (s *localStorage) Exists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(s.basePath, ref))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat %s: %w", ref, err)
	}
	return true, nil
}

// PresignedURL cannot be supported by a plain filesystem backend: there
// is no way to hand out a self-authorizing reference.
func (s *localStorage) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	return "", ErrPresignNotSupported
}
