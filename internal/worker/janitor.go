package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/advflag/common/logger"
	"basegraph.app/advflag/internal/queue"
)

type JanitorConfig struct {
	Stream    string
	Group     string
	Consumer  string
	MinIdle   time.Duration
	Interval  time.Duration
	BatchSize int64
}

// Janitor moves stale pending messages to the DLQ. A worker that died between
// XREADGROUP and XACK leaves its messages pending; they are not reprocessed
// because correlation depends on arrival order.
type Janitor struct {
	client   *redis.Client
	cfg      JanitorConfig
	consumer Consumer

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewJanitor(client *redis.Client, cfg JanitorConfig, consumer Consumer) *Janitor {
	return &Janitor{
		client:    client,
		cfg:       cfg,
		consumer:  consumer,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop is called or ctx is done.
func (j *Janitor) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "advflag.worker.janitor",
	})

	defer close(j.stoppedCh)

	ticker := time.NewTicker(j.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "janitor started",
		"interval", j.cfg.Interval,
		"min_idle", j.cfg.MinIdle,
		"stream", j.cfg.Stream,
		"group", j.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return
		case <-j.stopCh:
			slog.InfoContext(ctx, "janitor stopping")
			return
		case <-ticker.C:
			if err := j.sweepOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "janitor sweep error", "error", err)
			}
		}
	}
}

func (j *Janitor) Stop() {
	close(j.stopCh)
	<-j.stoppedCh
}

func (j *Janitor) sweepOnce(ctx context.Context) error {
	pending, err := j.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: j.cfg.Stream,
		Group:  j.cfg.Group,
		Idle:   j.cfg.MinIdle,
		Start:  "-",
		End:    "+",
		Count:  j.cfg.BatchSize,
	}).Result()
	if err != nil {
		return fmt.Errorf("xpending: %w", err)
	}

	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "found stale pending messages", "count", len(pending))

	for _, p := range pending {
		if err := j.discard(ctx, p); err != nil {
			slog.ErrorContext(ctx, "failed to discard stale message",
				"error", err,
				"message_id", p.ID,
				"original_consumer", p.Consumer,
				"idle_time", p.Idle)
		}
	}

	return nil
}

func (j *Janitor) discard(ctx context.Context, pending redis.XPendingExt) error {
	msgID := pending.ID
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		MessageID: &msgID,
	})

	messages, err := j.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   j.cfg.Stream,
		Group:    j.cfg.Group,
		Consumer: j.cfg.Consumer,
		MinIdle:  j.cfg.MinIdle,
		Messages: []string{pending.ID},
	}).Result()
	if err != nil {
		return fmt.Errorf("xclaim: %w", err)
	}

	if len(messages) == 0 {
		slog.DebugContext(ctx, "message already claimed by another worker")
		return nil
	}

	msg := queue.Message{ID: messages[0].ID, Raw: messages[0]}
	if parsed, err := queue.ParseMessage(messages[0]); err == nil {
		msg = parsed
	}

	reason := fmt.Sprintf("abandoned by %s after %s", pending.Consumer, pending.Idle.Round(time.Second))
	if err := j.consumer.SendDLQ(ctx, msg, reason); err != nil {
		return fmt.Errorf("dead-lettering stale message: %w", err)
	}
	return nil
}
