package domain

import (
	"strings"
	"time"
)

type ProcessingStatus string

const (
	StatusPending   ProcessingStatus = "pending"
	StatusProcessed ProcessingStatus = "processed"
	StatusFailed    ProcessingStatus = "failed"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
)

// ParseVisibility maps a wire value to the enum. An empty value falls
// back to private; anything else unknown is rejected.
func ParseVisibility(s string) (Visibility, bool) {
	switch Visibility(s) {
	case "":
		return VisibilityPrivate, true
	case VisibilityPublic, VisibilityPrivate, VisibilityFriends:
		return Visibility(s), true
	default:
		return "", false
	}
}

// ImageRecord is the metadata entry kept per stored image. BlobRef
// points into the blob store; SizeBytes, Checksum, Width, Height,
// ProcessingStatus and ProcessingError are owned by the async
// processor and never written by the client-facing update path.
type ImageRecord struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"userId"`
	BlobRef     string     `json:"blobRef"`
	Filename    string     `json:"filename"`
	ContentType string     `json:"contentType"`
	Description string     `json:"description"`
	Tags        []string   `json:"tags"`
	Visibility  Visibility `json:"visibility"`

	SizeBytes        int64            `json:"sizeBytes"`
	Checksum         string           `json:"checksum,omitempty"`
	Width            int              `json:"width,omitempty"`
	Height           int              `json:"height,omitempty"`
	ProcessingStatus ProcessingStatus `json:"processingStatus"`
	ProcessingError  string           `json:"processingError,omitempty"`

	Version   int64     `json:"-"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (r *ImageRecord) IsProcessed() bool {
	return r.ProcessingStatus == StatusProcessed
}

// CanBeProcessed reports whether a redelivered processing task should
// run. Processed is terminal; failed records get another chance.
func (r *ImageRecord) CanBeProcessed() bool {
	return r.ProcessingStatus == StatusPending || r.ProcessingStatus == StatusFailed
}

func (r *ImageRecord) MarkProcessed(size int64, checksum string, width, height int) {
	r.ProcessingStatus = StatusProcessed
	r.SizeBytes = size
	r.Checksum = checksum
	r.Width = width
	r.Height = height
	r.ProcessingError = ""
	r.UpdatedAt = time.Now().UTC()
}

func (r *ImageRecord) MarkFailed(reason string) {
	r.ProcessingStatus = StatusFailed
	r.ProcessingError = reason
	r.UpdatedAt = time.Now().UTC()
}

// NormalizeTags trims, drops empties and deduplicates while keeping
// first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
