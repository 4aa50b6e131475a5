package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/infrastructure/analyzer"
	"github.com/terekhovme/imagehub/internal/repository/memory"
)

func encodePNG(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func seedPending(t *testing.T, repo domain.ImageRepository, blobs *fakeBlobStore, id string, content []byte) *domain.ImageRecord {
	t.Helper()
	ctx := context.Background()

	ref := id + ".png"
	if content != nil {
		_, err := blobs.Put(ctx, ref, bytes.NewReader(content), int64(len(content)), "image/png")
		require.NoError(t, err)
	}

	now := time.Now().UTC()
	rec := &domain.ImageRecord{
		ID:               id,
		OwnerID:          "alice",
		BlobRef:          ref,
		Filename:         id + ".png",
		ContentType:      "image/png",
		SizeBytes:        int64(len(content)),
		ProcessingStatus: domain.StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	require.NoError(t, repo.Create(ctx, rec))
	return rec
}

func TestProcessImage(t *testing.T) {
	ctx := context.Background()

	t.Run("derives size checksum and dimensions", func(t *testing.T) {
		repo := memory.NewImageRepository()
		blobs := newFakeBlobStore()
		uc := NewProcessorUsecase(repo, blobs, analyzer.New())

		content := encodePNG(t, 3, 2)
		seedPending(t, repo, blobs, "img-1", content)

		require.NoError(t, uc.ProcessImage(ctx, "img-1"))

		rec, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessed, rec.ProcessingStatus)
		assert.Equal(t, int64(len(content)), rec.SizeBytes)
		assert.Equal(t, 3, rec.Width)
		assert.Equal(t, 2, rec.Height)

		sum := sha256.Sum256(content)
		assert.Equal(t, hex.EncodeToString(sum[:]), rec.Checksum)
		assert.Empty(t, rec.ProcessingError)
	})

	t.Run("redelivery is a no-op", func(t *testing.T) {
		repo := memory.NewImageRepository()
		blobs := newFakeBlobStore()
		uc := NewProcessorUsecase(repo, blobs, analyzer.New())

		seedPending(t, repo, blobs, "img-1", encodePNG(t, 3, 2))

		require.NoError(t, uc.ProcessImage(ctx, "img-1"))
		first, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)

		require.NoError(t, uc.ProcessImage(ctx, "img-1"))
		second, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)

		assert.Equal(t, first.Checksum, second.Checksum)
		assert.Equal(t, first.UpdatedAt, second.UpdatedAt, "second delivery changed nothing")
		assert.Equal(t, first.Version, second.Version)
	})

	t.Run("missing record is discarded", func(t *testing.T) {
		uc := NewProcessorUsecase(memory.NewImageRepository(), newFakeBlobStore(), analyzer.New())
		assert.NoError(t, uc.ProcessImage(ctx, "nope"))
	})

	t.Run("undecodable blob marks the record failed", func(t *testing.T) {
		repo := memory.NewImageRepository()
		blobs := newFakeBlobStore()
		uc := NewProcessorUsecase(repo, blobs, analyzer.New())

		content := []byte("definitely not an image")
		seedPending(t, repo, blobs, "img-1", content)

		require.NoError(t, uc.ProcessImage(ctx, "img-1"), "terminal failure still commits the task")

		rec, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, rec.ProcessingStatus)
		assert.Contains(t, rec.ProcessingError, "corrupt image")
		assert.Equal(t, int64(len(content)), rec.SizeBytes, "size and checksum recorded even for bad images")
		assert.NotEmpty(t, rec.Checksum)
	})

	t.Run("failed record can be reprocessed", func(t *testing.T) {
		repo := memory.NewImageRepository()
		blobs := newFakeBlobStore()
		uc := NewProcessorUsecase(repo, blobs, analyzer.New())

		rec := seedPending(t, repo, blobs, "img-1", []byte("broken"))
		require.NoError(t, uc.ProcessImage(ctx, "img-1"))

		// blob replaced with a valid image, task redelivered
		content := encodePNG(t, 4, 4)
		_, err := blobs.Put(ctx, rec.BlobRef, bytes.NewReader(content), int64(len(content)), "image/png")
		require.NoError(t, err)

		require.NoError(t, uc.ProcessImage(ctx, "img-1"))

		got, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusProcessed, got.ProcessingStatus)
		assert.Equal(t, 4, got.Width)
	})

	t.Run("missing blob marks the record failed", func(t *testing.T) {
		repo := memory.NewImageRepository()
		blobs := newFakeBlobStore()
		uc := NewProcessorUsecase(repo, blobs, analyzer.New())

		seedPending(t, repo, blobs, "img-1", nil)

		require.NoError(t, uc.ProcessImage(ctx, "img-1"))

		rec, err := repo.FindByID(ctx, "img-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusFailed, rec.ProcessingStatus)
		assert.Contains(t, rec.ProcessingError, "blob missing")
	})
}
