package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/infrastructure/storage"
)

type ImageUsecase struct {
	repo          domain.ImageRepository
	blobs         storage.BlobStore
	queue         domain.QueueService
	maxUploadSize int64
	defaultLimit  int
	maxLimit      int
}

func NewImageUsecase(
	repo domain.ImageRepository,
	blobs storage.BlobStore,
	queue domain.QueueService,
	maxUploadSizeMB int,
	defaultLimit int,
	maxLimit int,
) *ImageUsecase {
	return &ImageUsecase{
		repo:          repo,
		blobs:         blobs,
		queue:         queue,
		maxUploadSize: int64(maxUploadSizeMB) * 1024 * 1024,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
	}
}

// Upload runs the pipeline: validate, store the blob under an id-derived
// key, persist the pending record, signal the processor. A failed
// record write rolls the blob back so no orphan survives the request.
func (u *ImageUsecase) Upload(ctx context.Context, in domain.UploadInput) (*domain.ImageRecord, error) {
	if strings.TrimSpace(in.OwnerID) == "" {
		return nil, fmt.Errorf("%w: userId is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrValidation)
	}

	visibility, ok := domain.ParseVisibility(in.Visibility)
	if !ok {
		return nil, fmt.Errorf("%w: visibility must be one of public, private, friends", domain.ErrValidation)
	}

	if len(in.Content) == 0 {
		return nil, domain.ErrEmptyContent
	}
	if int64(len(in.Content)) > u.maxUploadSize {
		return nil, fmt.Errorf("%w: maximum is %d bytes", domain.ErrFileTooLarge, u.maxUploadSize)
	}

	contentType := in.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	imageID := uuid.New().String()
	// Blob keys derive from the id, never the filename, so concurrent
	// uploads of identically named files cannot collide.
	key := imageID + strings.ToLower(filepath.Ext(in.Filename))

	ref, err := u.blobs.Put(ctx, key, bytes.NewReader(in.Content), int64(len(in.Content)), contentType)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("filename", in.Filename).Msg("failed to store blob")
		return nil, fmt.Errorf("store blob: %w", err)
	}

	now := time.Now().UTC()
	rec := &domain.ImageRecord{
		ID:               imageID,
		OwnerID:          in.OwnerID,
		BlobRef:          ref,
		Filename:         in.Filename,
		ContentType:      contentType,
		Description:      in.Description,
		Tags:             domain.NormalizeTags(in.Tags),
		Visibility:       visibility,
		SizeBytes:        int64(len(in.Content)),
		ProcessingStatus: domain.StatusPending,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := u.repo.Create(ctx, rec); err != nil {
		if delErr := u.blobs.Delete(ctx, ref); delErr != nil {
			zlog.Logger.Error().Err(delErr).Str("blob_ref", ref).Msg("failed to roll back blob after record write failure")
		}
		zlog.Logger.Error().Err(err).Str("image_id", imageID).Msg("failed to create image record")
		return nil, fmt.Errorf("create image record: %w", err)
	}

	// Fire-and-forget: the upload response never waits for processing,
	// and a publish failure leaves the record pending for later repair.
	if err := u.queue.PublishProcessingTask(ctx, imageID, ref); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", imageID).Msg("failed to publish processing task")
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Str("owner_id", in.OwnerID).
		Str("filename", in.Filename).
		Msg("image uploaded")

	return rec, nil
}

func (u *ImageUsecase) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	return u.repo.FindByID(ctx, id)
}

func (u *ImageUsecase) Download(ctx context.Context, id string) (io.ReadCloser, *domain.ImageRecord, error) {
	rec, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := u.blobs.Get(ctx, rec.BlobRef)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			zlog.Logger.Error().Str("image_id", id).Str("blob_ref", rec.BlobRef).Msg("record points at missing blob")
			return nil, nil, domain.ErrImageNotFound
		}
		return nil, nil, fmt.Errorf("get blob: %w", err)
	}

	return reader, rec, nil
}

func (u *ImageUsecase) PresignDownload(ctx context.Context, id string, expiry time.Duration) (string, error) {
	rec, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return "", err
	}

	url, err := u.blobs.PresignedURL(ctx, rec.BlobRef, expiry)
	if err != nil {
		if errors.Is(err, storage.ErrPresignNotSupported) {
			return "", domain.ErrPresignNotSupported
		}
		return "", fmt.Errorf("presign blob: %w", err)
	}

	return url, nil
}

// Update mutates the client-writable fields only; processing results
// pass through untouched. Ownership is checked before any write.
func (u *ImageUsecase) Update(ctx context.Context, callerID, id string, in domain.UpdateInput) (*domain.ImageRecord, error) {
	if in.Empty() {
		return nil, fmt.Errorf("%w: no fields to update", domain.ErrValidation)
	}

	rec, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if callerID == "" || callerID != rec.OwnerID {
		return nil, domain.ErrForbidden
	}

	if in.Filename != nil {
		if strings.TrimSpace(*in.Filename) == "" {
			return nil, fmt.Errorf("%w: filename cannot be empty", domain.ErrValidation)
		}
		rec.Filename = *in.Filename
	}
	if in.ContentType != nil {
		rec.ContentType = *in.ContentType
	}
	if in.Description != nil {
		rec.Description = *in.Description
	}
	if in.Visibility != nil {
		visibility, ok := domain.ParseVisibility(*in.Visibility)
		if !ok {
			return nil, fmt.Errorf("%w: visibility must be one of public, private, friends", domain.ErrValidation)
		}
		rec.Visibility = visibility
	}
	if in.Tags != nil {
		rec.Tags = domain.NormalizeTags(*in.Tags)
	}

	rec.UpdatedAt = time.Now().UTC()

	if err := u.repo.Update(ctx, rec); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to update image record")
		return nil, err
	}

	return rec, nil
}

// Delete removes the record first, the blob second: a blob without a
// record is invisible garbage at worst, a record without a blob is a
// broken listing entry.
func (u *ImageUsecase) Delete(ctx context.Context, id string) error {
	rec, err := u.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image record")
		return err
	}

	if err := u.blobs.Delete(ctx, rec.BlobRef); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Str("blob_ref", rec.BlobRef).Msg("failed to delete blob, leaving orphan")
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image deleted")
	return nil
}

func (u *ImageUsecase) List(ctx context.Context, query domain.ListQuery) ([]*domain.ImageRecord, *domain.Cursor, error) {
	if err := query.Normalize(u.defaultLimit, u.maxLimit); err != nil {
		return nil, nil, err
	}

	records, next, err := u.repo.Scan(ctx, query)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to scan image records")
		return nil, nil, err
	}

	return records, next, nil
}
