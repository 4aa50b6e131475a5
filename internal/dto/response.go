package dto

import (
	"time"

	"github.com/terekhovme/imagehub/internal/domain"
)

type ImageResponse struct {
	ID          string   `json:"id"`
	UserID      string   `json:"userId"`
	Filename    string   `json:"filename"`
	ContentType string   `json:"contentType"`
	Description string   `json:"description"`
	Visibility  string   `json:"visibility"`
	Tags        []string `json:"tags"`

	Size             int64  `json:"size"`
	Checksum         string `json:"checksum,omitempty"`
	Width            int    `json:"width,omitempty"`
	Height           int    `json:"height,omitempty"`
	ProcessingStatus string `json:"processingStatus"`
	ProcessingError  string `json:"processingError,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ImageListResponse struct {
	Images    []*ImageResponse `json:"images"`
	Count     int              `json:"count"`
	NextToken string           `json:"nextToken,omitempty"`
}

// DownloadResponse is the type=base64 download payload.
type DownloadResponse struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func MapImageToResponse(rec *domain.ImageRecord) *ImageResponse {
	if rec == nil {
		return nil
	}
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return &ImageResponse{
		ID:               rec.ID,
		UserID:           rec.OwnerID,
		Filename:         rec.Filename,
		ContentType:      rec.ContentType,
		Description:      rec.Description,
		Visibility:       string(rec.Visibility),
		Tags:             tags,
		Size:             rec.SizeBytes,
		Checksum:         rec.Checksum,
		Width:            rec.Width,
		Height:           rec.Height,
		ProcessingStatus: string(rec.ProcessingStatus),
		ProcessingError:  rec.ProcessingError,
		CreatedAt:        rec.CreatedAt,
		UpdatedAt:        rec.UpdatedAt,
	}
}

func MapImagesToResponse(records []*domain.ImageRecord, next *domain.Cursor) *ImageListResponse {
	images := make([]*ImageResponse, 0, len(records))
	for _, rec := range records {
		images = append(images, MapImageToResponse(rec))
	}
	return &ImageListResponse{
		Images:    images,
		Count:     len(images),
		NextToken: domain.EncodeCursor(next),
	}
}
