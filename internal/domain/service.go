package domain

import (
	"context"
	"io"
	"time"
)

// UploadInput is the normalized upload request. Handlers map both
// accepted wire shapes (multipart form, JSON with base64 content) into
// it before the pipeline runs.
type UploadInput struct {
	OwnerID     string
	Filename    string
	ContentType string
	Description string
	Visibility  string
	Tags        []string
	Content     []byte
}

// UpdateInput carries the mutable fields of a record; nil means "leave
// unchanged". Processing fields are not part of it on purpose.
type UpdateInput struct {
	Filename    *string
	ContentType *string
	Description *string
	Visibility  *string
	Tags        *[]string
}

func (in UpdateInput) Empty() bool {
	return in.Filename == nil && in.ContentType == nil && in.Description == nil &&
		in.Visibility == nil && in.Tags == nil
}

type ImageService interface {
	Upload(ctx context.Context, in UploadInput) (*ImageRecord, error)
	Get(ctx context.Context, id string) (*ImageRecord, error)
	Download(ctx context.Context, id string) (io.ReadCloser, *ImageRecord, error)
	PresignDownload(ctx context.Context, id string, expiry time.Duration) (string, error)
	Update(ctx context.Context, callerID, id string, in UpdateInput) (*ImageRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, query ListQuery) ([]*ImageRecord, *Cursor, error)
}

type ProcessorService interface {
	ProcessImage(ctx context.Context, imageID string) error
}

type QueueService interface {
	PublishProcessingTask(ctx context.Context, imageID, blobRef string) error
	Close() error
}
