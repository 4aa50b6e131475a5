package domain

import "errors"

var (
	ErrImageNotFound       = errors.New("image not found")
	ErrValidation          = errors.New("validation failed")
	ErrForbidden           = errors.New("caller is not the owner")
	ErrConflict            = errors.New("record version conflict")
	ErrStoreUnavailable    = errors.New("backing store unavailable")
	ErrPresignNotSupported = errors.New("storage backend cannot presign URLs")
	ErrFileTooLarge        = errors.New("file size exceeds maximum allowed")
	ErrEmptyContent        = errors.New("file content is empty")
)
