package worker

import (
	"context"

	"basegraph.app/advflag/internal/eventbus"
	"basegraph.app/advflag/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// Publisher delivers classified events to their handlers.
type Publisher interface {
	Publish(ctx context.Context, event eventbus.Event) error
}
