package worker

import (
	"context"
	"fmt"

	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/domain"
	"github.com/terekhovme/imagehub/internal/dto"
)

// ImageWorker bridges queue tasks to the processor service.
type ImageWorker struct {
	processorService domain.ProcessorService
}

func NewImageWorker(processorService domain.ProcessorService) *ImageWorker {
	return &ImageWorker{
		processorService: processorService,
	}
}

func (w *ImageWorker) HandleProcessingTask(ctx context.Context, task *dto.ProcessImageTask) error {
	zlog.Logger.Info().
		Str("image_id", task.ImageID).
		Str("blob_ref", task.BlobRef).
		Msg("starting processing task")

	if err := w.processorService.ProcessImage(ctx, task.ImageID); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("image_id", task.ImageID).
			Msg("failed to process image")
		return fmt.Errorf("process image %s: %w", task.ImageID, err)
	}

	return nil
}
