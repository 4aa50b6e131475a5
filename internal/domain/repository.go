package domain

import "context"

// ImageRepository is the narrow record-store contract. Scan is the
// listing primitive: bounded, ordered, resumable via keyset cursor.
// Update performs a full overwrite guarded by the record's Version and
// returns ErrConflict on a concurrent write.
type ImageRepository interface {
	Create(ctx context.Context, rec *ImageRecord) error
	FindByID(ctx context.Context, id string) (*ImageRecord, error)
	Update(ctx context.Context, rec *ImageRecord) error
	Delete(ctx context.Context, id string) error
	ListByOwner(ctx context.Context, ownerID string) ([]*ImageRecord, error)
	Scan(ctx context.Context, query ListQuery) ([]*ImageRecord, *Cursor, error)
}
