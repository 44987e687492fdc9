package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Handler reacts to the event types it lists in Handles.
type Handler interface {
	ID() string
	Handles() []EventType
	Handle(ctx context.Context, event Event) error
}

// Bus delivers events to handlers in registration order, one at a time.
// Handler errors are logged and do not stop the chain.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
}

func New() *Bus {
	return &Bus{}
}

func (b *Bus) Register(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish returns once every matching handler has finished.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if event == nil {
		return fmt.Errorf("eventbus: nil event")
	}

	b.mu.RLock()
	var matching []Handler
	for _, h := range b.handlers {
		if slices.Contains(h.Handles(), event.Type()) {
			matching = append(matching, h)
		}
	}
	b.mu.RUnlock()

	for _, h := range matching {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("eventbus: context cancelled: %w", err)
		}
		if err := h.Handle(ctx, event); err != nil {
			slog.ErrorContext(ctx, "event handler failed",
				"handler", h.ID(),
				"event_type", event.Type(),
				"post_id", event.Post(),
				"error", err)
		}
	}
	return nil
}

func (b *Bus) Handlers() []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.handlers)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc struct {
	Name  string
	Types []EventType
	Fn    func(ctx context.Context, event Event) error
}

func (f HandlerFunc) ID() string           { return f.Name }
func (f HandlerFunc) Handles() []EventType { return f.Types }

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f.Fn(ctx, event)
}
