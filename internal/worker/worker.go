package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/netevent"
	"basegraph.app/advflag/internal/queue"
)

// Worker reads observed network events in stream order, classifies them and
// publishes the result on the event bus. Messages are handled one at a time so
// a review item is always seen before the vote that follows it.
type Worker struct {
	consumer  Consumer
	publisher Publisher

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer Consumer, publisher Publisher) *Worker {
	return &Worker{
		consumer:  consumer,
		publisher: publisher,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{Component: "advflag.worker"})
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID)
			w.handleFailedMessage(ctx, msg, err)
			continue
		}
		if err := w.consumer.Ack(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "failed to ack message", "error", err, "message_id", msg.ID)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	msgID := msg.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{MessageID: &msgID})

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.network_event")
	defer sc.End()
	sc.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.Int("http.status_code", msg.StatusCode))
	ctx = sc.Context()

	event, err := netevent.Classify(netevent.Raw{URL: msg.URL, StatusCode: msg.StatusCode, Body: msg.Body})
	if err != nil {
		sc.RecordError(err)
		return err
	}
	if event == nil {
		slog.DebugContext(ctx, "network event ignored", "status_code", msg.StatusCode)
		return nil
	}

	kind := string(event.Type())
	postID := event.Post()
	ctx = logger.WithLogFields(ctx, logger.LogFields{EventKind: &kind, PostID: &postID})
	slog.InfoContext(ctx, "network event classified")

	if err := w.publisher.Publish(ctx, event); err != nil {
		sc.RecordError(err)
		return fmt.Errorf("publishing %s: %w", kind, err)
	}
	return nil
}

// handleFailedMessage dead-letters malformed events. Anything else stays pending
// and is cleaned up by the janitor: replaying it later would pair votes with the
// wrong review items.
func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if !errors.Is(err, netevent.ErrMalformed) {
		return
	}
	if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
		slog.ErrorContext(ctx, "failed to send message to DLQ",
			"error", dlqErr,
			"message_id", msg.ID)
	}
}
