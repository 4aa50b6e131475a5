package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/infrastructure/analyzer"
	"github.com/terekhovme/imagehub/internal/infrastructure/storage"
)

const updateAttempts = 3

// ProcessorUsecase is the post-processing trigger: it re-derives size,
// checksum and dimensions from the stored blob and records the terminal
// status. Tasks are delivered at least once, so every path here is
// idempotent.
type ProcessorUsecase struct {
	repo     domain.ImageRepository
	blobs    storage.BlobStore
	analyzer *analyzer.Analyzer
}

func NewProcessorUsecase(
	repo domain.ImageRepository,
	blobs storage.BlobStore,
	an *analyzer.Analyzer,
) *ProcessorUsecase {
	return &ProcessorUsecase{
		repo:     repo,
		blobs:    blobs,
		analyzer: an,
	}
}

// ProcessImage returns nil for every terminal outcome (processed,
// failed, record gone) so the task gets committed; only transient store
// errors propagate and cause redelivery.
func (u *ProcessorUsecase) ProcessImage(ctx context.Context, imageID string) error {
	rec, err := u.repo.FindByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrImageNotFound) {
			// Record deleted before processing ran, or the task raced a
			// slow record write that ultimately failed. Discard.
			zlog.Logger.Warn().Str("image_id", imageID).Msg("no record for processing task, discarding")
			return nil
		}
		return fmt.Errorf("find image: %w", err)
	}

	if !rec.CanBeProcessed() {
		zlog.Logger.Info().
			Str("image_id", imageID).
			Str("status", string(rec.ProcessingStatus)).
			Msg("record already processed, skipping redelivered task")
		return nil
	}

	reader, err := u.blobs.Get(ctx, rec.BlobRef)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return u.finish(ctx, imageID, func(r *domain.ImageRecord) {
				r.MarkFailed("blob missing from storage")
			})
		}
		return fmt.Errorf("get blob: %w", err)
	}

	data, err := io.ReadAll(reader)
	reader.Close()
	if err != nil {
		return u.finish(ctx, imageID, func(r *domain.ImageRecord) {
			r.MarkFailed(fmt.Sprintf("blob unreadable: %v", err))
		})
	}

	result, err := u.analyzer.Analyze(data)
	if err != nil {
		zlog.Logger.Warn().Err(err).Str("image_id", imageID).Msg("blob failed analysis")
		return u.finish(ctx, imageID, func(r *domain.ImageRecord) {
			r.SizeBytes = result.SizeBytes
			r.Checksum = result.Checksum
			r.MarkFailed(fmt.Sprintf("corrupt image: %v", err))
		})
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Int64("size_bytes", result.SizeBytes).
		Int("width", result.Width).
		Int("height", result.Height).
		Msg("image processed")

	return u.finish(ctx, imageID, func(r *domain.ImageRecord) {
		r.MarkProcessed(result.SizeBytes, result.Checksum, result.Width, result.Height)
	})
}

// finish applies the mutation on a fresh read and retries around
// version conflicts with concurrent metadata updates; processing only
// ever touches its own fields, so re-applying is safe.
func (u *ProcessorUsecase) finish(ctx context.Context, imageID string, apply func(*domain.ImageRecord)) error {
	var lastErr error
	for attempt := 0; attempt < updateAttempts; attempt++ {
		rec, err := u.repo.FindByID(ctx, imageID)
		if err != nil {
			if errors.Is(err, domain.ErrImageNotFound) {
				zlog.Logger.Warn().Str("image_id", imageID).Msg("record deleted mid-processing, discarding result")
				return nil
			}
			return fmt.Errorf("reload image: %w", err)
		}

		apply(rec)

		err = u.repo.Update(ctx, rec)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			if errors.Is(err, domain.ErrImageNotFound) {
				return nil
			}
			return fmt.Errorf("persist processing result: %w", err)
		}
		lastErr = err
	}
	return fmt.Errorf("persist processing result: %w", lastErr)
}
