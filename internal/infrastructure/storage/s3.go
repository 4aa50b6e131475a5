package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
)

type s3Storage struct {
	client  *minio.Client
	bucket  string
	blobDir string
}

func NewS3Storage(cfg *config.StorageConfig) (BlobStore, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	if cfg.BlobDir == "" {
		cfg.BlobDir = "blobs"
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	return &s3Storage{
		client:  client,
		bucket:  cfg.S3Bucket,
		blobDir: cfg.BlobDir,
	}, nil
}

func (s *s3Storage) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	if reader == nil {
		zlog.Logger.Error().Str("key", key).Msg("reader is nil")
		return "", fmt.Errorf("reader is nil")
	}

	ref := path.Join(s.blobDir, key)

	_, err := s.client.PutObject(ctx, s.bucket, ref, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", ref).Msg("failed to put object to s3")
		return "", fmt.Errorf("put object %s: %w", ref, err)
	}

	zlog.Logger.Info().Str("ref", ref).Int64("bytes", size).Msg("object saved to s3")
	return ref, nil
}

func (s *s3Storage) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", ref).Msg("failed to get object")
		return nil, fmt.Errorf("get object %s: %w", ref, err)
	}

	if _, err := obj.Stat(); err != nil {
		zlog.Logger.Error().Err(err).Str("object", ref).Msg("object not found or inaccessible")
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, ref)
	}

	return obj, nil
}

func (s *s3Storage) Delete(ctx context.Context, ref string) error {
	if ref == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		zlog.Logger.Error().Err(err).Str("ref", ref).Msg("failed to delete object from s3")
		return fmt.Errorf("remove object %s: %w", ref, err)
	}
	zlog.Logger.Info().Str("ref", ref).Msg("object deleted from s3")
	return nil
}

func (s *s3Storage) Exists(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	_, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return false, nil
		}
		return false, fmt.Errorf("stat object %s: %w", ref, err)
	}
	return true, nil
}

// PresignedURL mints a time-limited GET link for the redirect download
// type.
func (s *s3Storage) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, ref, expiry, url.Values{})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("ref", ref).Msg("failed to presign object URL")
		return "", fmt.Errorf("presign object %s: %w", ref, err)
	}
	return u.String(), nil
}
