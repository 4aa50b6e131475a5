package dto

// JSONUploadRequest is the structured upload shape: base64 content plus
// a metadata object.
type JSONUploadRequest struct {
	Image    JSONUploadImage    `json:"image"`
	Metadata JSONUploadMetadata `json:"metadata"`
}

type JSONUploadImage struct {
	Filename    string `json:"filename"`
	Content     string `json:"content"`
	ContentType string `json:"contentType"`
}

type JSONUploadMetadata struct {
	UserID      string   `json:"userId"`
	Description string   `json:"description"`
	Visibility  string   `json:"visibility"`
	Tags        []string `json:"tags"`
}

// UpdateImageRequest updates mutable fields only; absent fields stay
// untouched.
type UpdateImageRequest struct {
	Filename    *string   `json:"filename"`
	ContentType *string   `json:"contentType"`
	Description *string   `json:"description"`
	Visibility  *string   `json:"visibility"`
	Tags        *[]string `json:"tags"`
}

// ProcessImageTask is the queue message that triggers post-processing.
type ProcessImageTask struct {
	ImageID string `json:"image_id"`
	BlobRef string `json:"blob_ref"`
}
