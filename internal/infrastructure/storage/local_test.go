package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

func newLocal(t *testing.T) BlobStore {
	t.Helper()
	store, err := NewLocalStorage(&config.StorageConfig{LocalPath: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalStorageRoundtrip(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)

	payload := []byte("image-bytes")
	ref, err := store.Put(ctx, "img-1.png", bytes.NewReader(payload), int64(len(payload)), "image/png")
	require.NoError(t, err)
	require.NotEmpty(t, ref)

	exists, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.True(t, exists)

	reader, err := store.Get(ctx, ref)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestLocalStorageGetMissing(t *testing.T) {
	store := newLocal(t)
	_, err := store.Get(context.Background(), "blobs/nope.png")
	assert.True(t, errors.Is(err, ErrObjectNotFound))
}

func TestLocalStorageDelete(t *testing.T) {
	ctx := context.Background()
	store := newLocal(t)

	ref, err := store.Put(ctx, "img-1.png", bytes.NewReader([]byte("x")), 1, "image/png")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, ref))

	exists, err := store.Exists(ctx, ref)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, store.Delete(ctx, ref), "deleting a missing blob is not an error")
}

func TestLocalStoragePresignUnsupported(t *testing.T) {
	store := newLocal(t)
	_, err := store.PresignedURL(context.Background(), "blobs/img-1.png", time.Minute)
	assert.True(t, errors.Is(err, ErrPresignNotSupported))
}
