package http

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/dto"
	"github.com/terekhovme/imagehub/internal/helpers"
)

type ImageHandler struct {
	service        domain.ImageService
	maxUploadSize  int64
	allowedFormats []string
	presignExpiry  time.Duration
}

func NewImageHandler(service domain.ImageService, maxUploadSizeMB int, allowedFormats []string, presignExpiryMin int) *ImageHandler {
	return &ImageHandler{
		service:        service,
		maxUploadSize:  int64(maxUploadSizeMB) * 1024 * 1024,
		allowedFormats: allowedFormats,
		presignExpiry:  time.Duration(presignExpiryMin) * time.Minute,
	}
}

func (h *ImageHandler) RegisterRoutes(engine *ginext.Engine) {
	engine.POST("/images/upload", h.UploadImage)
	engine.GET("/images", h.ListImages)
	engine.GET("/images/:id", h.GetImage)
	engine.GET("/images/:id/download", h.DownloadImage)
	engine.PUT("/images/:id", h.UpdateImage)
	engine.DELETE("/images/:id", h.DeleteImage)
}

// UploadImage POST /images/upload
//
// Accepts either multipart form-data (file field plus metadata fields)
// or JSON with base64 content; both normalize into domain.UploadInput.
func (h *ImageHandler) UploadImage(c *ginext.Context) {
	contentType := c.Request.Header.Get("Content-Type")

	var (
		in  domain.UploadInput
		err error
	)
	switch {
	case strings.Contains(contentType, "multipart/form-data"):
		in, err = h.uploadInputFromForm(c)
	case strings.Contains(contentType, "application/json"):
		in, err = h.uploadInputFromJSON(c)
	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "Unsupported Content-Type. Use application/json with base64 encoded file or multipart/form-data",
		})
		return
	}
	if err != nil {
		h.respondError(c, err)
		return
	}

	if !h.isAllowedFormat(filepath.Ext(in.Filename)) {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "invalid_format",
			Message: fmt.Sprintf("Unsupported file format. Allowed: %v", h.allowedFormats),
		})
		return
	}

	rec, err := h.service.Upload(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.MapImageToResponse(rec))
}

func (h *ImageHandler) uploadInputFromForm(c *ginext.Context) (domain.UploadInput, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		zlog.Logger.Warn().Err(err).Msg("failed to get file from request")
		return domain.UploadInput{}, fmt.Errorf("%w: no file found in the form data", domain.ErrValidation)
	}
	defer file.Close()

	if header.Size > h.maxUploadSize {
		return domain.UploadInput{}, fmt.Errorf("%w: maximum is %d MB", domain.ErrFileTooLarge, h.maxUploadSize/(1024*1024))
	}

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadSize+1))
	if err != nil {
		return domain.UploadInput{}, fmt.Errorf("%w: unreadable file content", domain.ErrValidation)
	}
	if int64(len(content)) > h.maxUploadSize {
		return domain.UploadInput{}, fmt.Errorf("%w: maximum is %d MB", domain.ErrFileTooLarge, h.maxUploadSize/(1024*1024))
	}

	contentType := header.Header.Get("Content-Type")

	return domain.UploadInput{
		OwnerID:     c.PostForm("userId"),
		Filename:    header.Filename,
		ContentType: contentType,
		Description: c.PostForm("description"),
		Visibility:  c.PostForm("visibility"),
		Tags:        parseTagsField(c.PostForm("tags")),
		Content:     content,
	}, nil
}

func (h *ImageHandler) uploadInputFromJSON(c *ginext.Context) (domain.UploadInput, error) {
	var req dto.JSONUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return domain.UploadInput{}, fmt.Errorf("%w: invalid JSON in request body", domain.ErrValidation)
	}

	if req.Image.Filename == "" || req.Image.Content == "" {
		return domain.UploadInput{}, fmt.Errorf("%w: missing required fields in image data: filename and content", domain.ErrValidation)
	}

	content, err := base64.StdEncoding.DecodeString(req.Image.Content)
	if err != nil {
		return domain.UploadInput{}, fmt.Errorf("%w: invalid base64 encoded content", domain.ErrValidation)
	}
	if int64(len(content)) > h.maxUploadSize {
		return domain.UploadInput{}, fmt.Errorf("%w: maximum is %d MB", domain.ErrFileTooLarge, h.maxUploadSize/(1024*1024))
	}

	return domain.UploadInput{
		OwnerID:     req.Metadata.UserID,
		Filename:    req.Image.Filename,
		ContentType: req.Image.ContentType,
		Description: req.Metadata.Description,
		Visibility:  req.Metadata.Visibility,
		Tags:        req.Metadata.Tags,
		Content:     content,
	}, nil
}

// parseTagsField accepts either a JSON array or a comma-separated list.
func parseTagsField(raw string) []string {
	if raw == "" {
		return nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err == nil {
		return tags
	}
	return helpers.SplitAndTrim(raw, ",")
}

// GetImage GET /images/:id
func (h *ImageHandler) GetImage(c *ginext.Context) {
	rec, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MapImageToResponse(rec))
}

// DownloadImage GET /images/:id/download?type=redirect|binary|base64
func (h *ImageHandler) DownloadImage(c *ginext.Context) {
	id := c.Param("id")

	switch downloadType := c.DefaultQuery("type", "binary"); downloadType {
	case "redirect":
		url, err := h.service.PresignDownload(c.Request.Context(), id, h.presignExpiry)
		if err != nil {
			h.respondError(c, err)
			return
		}
		c.Redirect(http.StatusFound, url)

	case "binary":
		reader, rec, err := h.service.Download(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer reader.Close()

		c.Header("Content-Type", rec.ContentType)
		c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
		if rec.SizeBytes > 0 {
			c.Header("Content-Length", strconv.FormatInt(rec.SizeBytes, 10))
		}

		written, err := io.Copy(c.Writer, reader)
		if err != nil {
			zlog.Logger.Error().
				Err(err).
				Str("image_id", id).
				Int64("bytes_written", written).
				Msg("failed to write image to response")
			return
		}

	case "base64":
		reader, rec, err := h.service.Download(c.Request.Context(), id)
		if err != nil {
			h.respondError(c, err)
			return
		}
		defer reader.Close()

		content, err := io.ReadAll(reader)
		if err != nil {
			zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to read blob for base64 download")
			h.respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, dto.DownloadResponse{
			Filename:    rec.Filename,
			ContentType: rec.ContentType,
			Content:     base64.StdEncoding.EncodeToString(content),
		})

	default:
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "type must be one of: redirect, binary, base64",
		})
	}
}

// UpdateImage PUT /images/:id
//
// The caller identity arrives in X-User-Id, verified by the gateway in
// front of this service.
func (h *ImageHandler) UpdateImage(c *ginext.Context) {
	var req dto.UpdateImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: "Invalid JSON in request body",
		})
		return
	}

	in := domain.UpdateInput{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Description: req.Description,
		Visibility:  req.Visibility,
		Tags:        req.Tags,
	}

	callerID := c.GetHeader("X-User-Id")
	rec, err := h.service.Update(c.Request.Context(), callerID, c.Param("id"), in)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapImageToResponse(rec))
}

// DeleteImage DELETE /images/:id
func (h *ImageHandler) DeleteImage(c *ginext.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListImages GET /images
func (h *ImageHandler) ListImages(c *ginext.Context) {
	query, err := h.listQueryFromParams(c)
	if err != nil {
		h.respondError(c, err)
		return
	}

	records, next, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.MapImagesToResponse(records, next))
}

func (h *ImageHandler) listQueryFromParams(c *ginext.Context) (domain.ListQuery, error) {
	var query domain.ListQuery

	query.Filter.OwnerID = c.Query("userId")
	query.Filter.Tag = c.Query("tag")
	query.Filter.Filename = c.Query("filename")

	if v := c.Query("visibility"); v != "" {
		visibility, ok := domain.ParseVisibility(v)
		if !ok {
			return query, fmt.Errorf("%w: unknown visibility %q", domain.ErrValidation, v)
		}
		query.Filter.Visibility = visibility
	}

	if s := c.Query("dateFrom"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return query, fmt.Errorf("%w: invalid dateFrom format", domain.ErrValidation)
		}
		query.Filter.DateFrom = &t
	}
	if s := c.Query("dateTo"); s != "" {
		t, err := parseDate(s)
		if err != nil {
			return query, fmt.Errorf("%w: invalid dateTo format", domain.ErrValidation)
		}
		query.Filter.DateTo = &t
	}

	query.Sort = domain.SortField(c.Query("sort"))
	query.Order = domain.SortOrder(strings.ToLower(c.Query("order")))

	if s := c.Query("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			return query, fmt.Errorf("%w: limit must be a non-negative integer", domain.ErrValidation)
		}
		query.Limit = limit
	}

	cursor, err := domain.DecodeCursor(c.Query("nextToken"))
	if err != nil {
		return query, err
	}
	query.Cursor = cursor

	return query, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

func (h *ImageHandler) isAllowedFormat(ext string) bool {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	for _, allowed := range h.allowedFormats {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

func (h *ImageHandler) respondError(c *ginext.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrImageNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{
			Error:   "not_found",
			Message: "Image not found",
		})
	case errors.Is(err, domain.ErrForbidden):
		c.JSON(http.StatusForbidden, dto.ErrorResponse{
			Error:   "forbidden",
			Message: "Caller is not the owner of this image",
		})
	case errors.Is(err, domain.ErrConflict):
		c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   "conflict",
			Message: "The record was modified concurrently, retry with a fresh read",
		})
	case errors.Is(err, domain.ErrFileTooLarge):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "file_too_large",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrEmptyContent):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
		})
	case errors.Is(err, domain.ErrPresignNotSupported):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   "presign_unsupported",
			Message: "The storage backend cannot issue signed URLs, use type=binary or type=base64",
		})
	case errors.Is(err, domain.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{
			Error:   "store_unavailable",
			Message: "Backing store is temporarily unavailable",
		})
	default:
		zlog.Logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
			Error:   "server_error",
			Message: "Request failed",
		})
	}
}
