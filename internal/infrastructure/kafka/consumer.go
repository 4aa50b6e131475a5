package kafka

import (
	"context"
	"encoding/json"
	"time"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/zlog"

	"github.com/terekhovme/imagehub/internal/config"
	"github.com/terekhovme/imagehub/internal/dto"
	"github.com/terekhovme/imagehub/internal/retry"
)

type MessageHandler func(ctx context.Context, task *dto.ProcessImageTask) error

type Consumer struct {
	client  *wbfkafka.Consumer
	handler MessageHandler
	topic   string
}

func NewConsumer(cfg *config.KafkaConfig, handler MessageHandler) (*Consumer, error) {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("Kafka consumer initialized")

	return &Consumer{
		client:  client,
		handler: handler,
		topic:   cfg.Topic,
	}, nil
}

// Start fetches tasks until the context is cancelled. A message is
// committed only after the handler returns nil; handler errors leave it
// uncommitted for redelivery.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.client.FetchWithRetry(ctx, retry.DefaultStrategy)
			if err != nil {
				zlog.Logger.Error().Err(err).Msg("failed to fetch kafka message")
				time.Sleep(time.Second)
				continue
			}

			var task dto.ProcessImageTask
			if err := json.Unmarshal(msg.Value, &task); err != nil {
				zlog.Logger.Error().Err(err).Bytes("msg", msg.Value).Msg("failed to unmarshal task")
				continue
			}

			if task.ImageID == "" {
				zlog.Logger.Error().Bytes("msg", msg.Value).Msg("invalid task: empty image id")
				continue
			}

			if err := c.handler(ctx, &task); err != nil {
				zlog.Logger.Error().
					Err(err).
					Str("image_id", task.ImageID).
					Msg("task processing failed, leaving uncommitted")
				continue
			}

			if err := c.client.Commit(ctx, msg); err != nil {
				zlog.Logger.Error().Err(err).Str("image_id", task.ImageID).Msg("failed to commit message")
				continue
			}
		}
	}
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer")
		return err
	}
	return nil
}
