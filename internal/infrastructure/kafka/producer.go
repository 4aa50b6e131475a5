package kafka

import (
	"context"
	"encoding/json"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
	"github.com/terekhovme/imagehub/internal/dto"
	"github.com/terekhovme/imagehub/internal/retry"
)

type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("Kafka producer initialized")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

// PublishProcessingTask enqueues a post-processing task. Delivery is
// at-least-once; the consumer side is idempotent.
func (p *Producer) PublishProcessingTask(ctx context.Context, imageID, blobRef string) error {
	task := dto.ProcessImageTask{
		ImageID: imageID,
		BlobRef: blobRef,
	}

	data, err := json.Marshal(task)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", imageID).Msg("failed to marshal task")
		return err
	}

	if err := p.client.SendWithRetry(ctx, retry.DefaultStrategy, nil, data); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", imageID).Msg("failed to send kafka message")
		return err
	}

	zlog.Logger.Info().
		Str("image_id", imageID).
		Str("blob_ref", blobRef).
		Msg("processing task published")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer")
		return err
	}
	return nil
}
