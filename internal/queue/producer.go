package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, msg EventMessage) (string, error)
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

// Enqueue appends the event to the stream and returns its stream id. Stream ids
// preserve arrival order, which the correlator depends on.
func (p *redisProducer) Enqueue(ctx context.Context, msg EventMessage) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: eventValues(msg),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("enqueue network event: %w", err)
	}

	p.logger.DebugContext(ctx, "enqueued network event", "message_id", id, "status_code", msg.StatusCode)
	return id, nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
