package http

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/dto"
	"github.com/terekhovme/imagehub/internal/infrastructure/storage"
	"github.com/terekhovme/imagehub/internal/repository/memory"
	"github.com/terekhovme/imagehub/internal/usecase"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

// --- fakes ---

type memBlobStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobStore() *memBlobStore {
	return &memBlobStore{objects: make(map[string][]byte)}
}

func (s *memBlobStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return key, nil
}

func (s *memBlobStore) Get(ctx context.Context, ref string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[ref]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memBlobStore) Delete(ctx context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, ref)
	return nil
}

func (s *memBlobStore) Exists(ctx context.Context, ref string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[ref]
	return ok, nil
}

func (s *memBlobStore) PresignedURL(ctx context.Context, ref string, expiry time.Duration) (string, error) {
	return "", storage.ErrPresignNotSupported
}

type noopQueue struct{}

func (noopQueue) PublishProcessingTask(ctx context.Context, imageID, blobRef string) error {
	return nil
}
func (noopQueue) Close() error { return nil }

func newTestEngine() *ginext.Engine {
	service := usecase.NewImageUsecase(
		memory.NewImageRepository(),
		newMemBlobStore(),
		noopQueue{},
		10, 10, 100,
	)
	handler := NewImageHandler(service, 10, []string{"jpg", "jpeg", "png", "gif"}, 15)

	engine := ginext.New("test")
	handler.RegisterRoutes(engine)
	return engine
}

func doRequest(engine *ginext.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func multipartUpload(t *testing.T, engine *ginext.Engine, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/images/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return doRequest(engine, req)
}

func uploadOne(t *testing.T, engine *ginext.Engine, filename string, fields map[string]string) dto.ImageResponse {
	t.Helper()
	w := multipartUpload(t, engine, filename, []byte("image-bytes"), fields)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp dto.ImageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// --- tests ---

func TestUploadEndpoint(t *testing.T) {
	t.Run("multipart", func(t *testing.T) {
		engine := newTestEngine()
		resp := uploadOne(t, engine, "cat.png", map[string]string{
			"userId":      "alice",
			"description": "my cat",
			"tags":        `["x","x","y"]`,
		})

		assert.NotEmpty(t, resp.ID)
		assert.Equal(t, "alice", resp.UserID)
		assert.Equal(t, "private", resp.Visibility)
		assert.Equal(t, []string{"x", "y"}, resp.Tags)
		assert.Equal(t, "pending", resp.ProcessingStatus)
	})

	t.Run("multipart with comma separated tags", func(t *testing.T) {
		engine := newTestEngine()
		resp := uploadOne(t, engine, "cat.png", map[string]string{
			"userId": "alice",
			"tags":   "a, b ,a",
		})
		assert.Equal(t, []string{"a", "b"}, resp.Tags)
	})

	t.Run("json with base64 content", func(t *testing.T) {
		engine := newTestEngine()
		body, err := json.Marshal(dto.JSONUploadRequest{
			Image: dto.JSONUploadImage{
				Filename:    "cat.png",
				Content:     base64.StdEncoding.EncodeToString([]byte("image-bytes")),
				ContentType: "image/png",
			},
			Metadata: dto.JSONUploadMetadata{
				UserID:     "alice",
				Visibility: "public",
			},
		})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodPost, "/images/upload", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := doRequest(engine, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var resp dto.ImageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "public", resp.Visibility)
	})

	t.Run("disallowed extension", func(t *testing.T) {
		engine := newTestEngine()
		w := multipartUpload(t, engine, "script.exe", []byte("x"), map[string]string{"userId": "alice"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing owner", func(t *testing.T) {
		engine := newTestEngine()
		w := multipartUpload(t, engine, "cat.png", []byte("x"), nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "validation_error", resp.Error)
	})
}

func TestGetEndpoint(t *testing.T) {
	engine := newTestEngine()
	created := uploadOne(t, engine, "cat.png", map[string]string{"userId": "alice"})

	w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.ImageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, created.ID, resp.ID)

	t.Run("unknown id", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/nope", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDownloadEndpoint(t *testing.T) {
	engine := newTestEngine()
	created := uploadOne(t, engine, "cat.png", map[string]string{"userId": "alice"})

	t.Run("binary", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID+"/download", nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []byte("image-bytes"), w.Body.Bytes())
		assert.Contains(t, w.Header().Get("Content-Disposition"), "cat.png")
	})

	t.Run("base64", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID+"/download?type=base64", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var resp dto.DownloadResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		decoded, err := base64.StdEncoding.DecodeString(resp.Content)
		require.NoError(t, err)
		assert.Equal(t, []byte("image-bytes"), decoded)
	})

	t.Run("redirect unsupported on this backend", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID+"/download?type=redirect", nil))
		require.Equal(t, http.StatusBadRequest, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "presign_unsupported", resp.Error)
	})

	t.Run("unknown type", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID+"/download?type=carrier-pigeon", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateEndpoint(t *testing.T) {
	engine := newTestEngine()
	created := uploadOne(t, engine, "cat.png", map[string]string{"userId": "alice"})

	update := func(callerID string, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPut, "/images/"+created.ID, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if callerID != "" {
			req.Header.Set("X-User-Id", callerID)
		}
		return doRequest(engine, req)
	}

	t.Run("owner", func(t *testing.T) {
		w := update("alice", `{"description":"updated","visibility":"public"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp dto.ImageResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "updated", resp.Description)
		assert.Equal(t, "public", resp.Visibility)
	})

	t.Run("non-owner", func(t *testing.T) {
		w := update("mallory", `{"description":"hijacked"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("no caller header", func(t *testing.T) {
		w := update("", `{"description":"anonymous"}`)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		w := update("alice", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDeleteEndpoint(t *testing.T) {
	engine := newTestEngine()
	created := uploadOne(t, engine, "cat.png", map[string]string{"userId": "alice"})

	w := doRequest(engine, httptest.NewRequest(http.MethodDelete, "/images/"+created.ID, nil))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(engine, httptest.NewRequest(http.MethodGet, "/images/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(engine, httptest.NewRequest(http.MethodDelete, "/images/"+created.ID, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListEndpoint(t *testing.T) {
	engine := newTestEngine()
	for i := 0; i < 5; i++ {
		uploadOne(t, engine, fmt.Sprintf("file-%d.png", i), map[string]string{"userId": "alice"})
	}
	uploadOne(t, engine, "other.png", map[string]string{"userId": "bob"})

	list := func(query string) dto.ImageListResponse {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images"+query, nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var resp dto.ImageListResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		return resp
	}

	t.Run("filter by owner", func(t *testing.T) {
		resp := list("?userId=bob")
		assert.Equal(t, 1, resp.Count)
	})

	t.Run("pages chain via nextToken", func(t *testing.T) {
		resp := list("?userId=alice&sort=filename&limit=2")
		require.Len(t, resp.Images, 2)
		require.NotEmpty(t, resp.NextToken)
		assert.Equal(t, "file-0.png", resp.Images[0].Filename)

		resp = list("?userId=alice&sort=filename&limit=2&nextToken=" + resp.NextToken)
		require.Len(t, resp.Images, 2)
		assert.Equal(t, "file-2.png", resp.Images[0].Filename)

		resp = list("?userId=alice&sort=filename&limit=2&nextToken=" + resp.NextToken)
		require.Len(t, resp.Images, 1)
		assert.Empty(t, resp.NextToken, "last page has no token")
	})

	t.Run("malformed token", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images?nextToken=garbage", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid date", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images?dateFrom=yesterday", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid sort", func(t *testing.T) {
		w := doRequest(engine, httptest.NewRequest(http.MethodGet, "/images?sort=size", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
