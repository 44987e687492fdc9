package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"basegraph.app/advflag/internal/queue"
)

// NetworkEventParams is one completed request reported by the page agent.
type NetworkEventParams struct {
	URL        string     `json:"url"`
	StatusCode int        `json:"status_code"`
	Body       string     `json:"body"`
	ObservedAt *time.Time `json:"observed_at,omitempty"`
	TraceID    *string    `json:"trace_id,omitempty"`
}

type NetworkEventResult struct {
	MessageID string
}

// NetworkEventService appends observed events to the stream. Classification
// happens on the worker side so every event goes through one ordered path.
type NetworkEventService interface {
	Ingest(ctx context.Context, params NetworkEventParams) (*NetworkEventResult, error)
}

var ErrInvalidNetworkEvent = errors.New("invalid network event")

type networkEventService struct {
	queue  queue.Producer
	logger *slog.Logger
}

func NewNetworkEventService(producer queue.Producer, logger *slog.Logger) NetworkEventService {
	if logger == nil {
		logger = slog.Default()
	}
	return &networkEventService{
		queue:  producer,
		logger: logger,
	}
}

func (s *networkEventService) Ingest(ctx context.Context, params NetworkEventParams) (*NetworkEventResult, error) {
	if params.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidNetworkEvent)
	}
	if _, err := url.Parse(params.URL); err != nil {
		return nil, fmt.Errorf("%w: url: %w", ErrInvalidNetworkEvent, err)
	}
	if params.StatusCode < 100 || params.StatusCode > 599 {
		return nil, fmt.Errorf("%w: status_code %d", ErrInvalidNetworkEvent, params.StatusCode)
	}

	msg := queue.EventMessage{
		URL:        params.URL,
		StatusCode: params.StatusCode,
		Body:       params.Body,
		TraceID:    params.TraceID,
		ObservedAt: time.Now(),
	}
	if params.ObservedAt != nil {
		msg.ObservedAt = *params.ObservedAt
	}

	messageID, err := s.queue.Enqueue(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("enqueueing network event: %w", err)
	}

	s.logger.DebugContext(ctx, "network event accepted", "message_id", messageID, "status_code", params.StatusCode)
	return &NetworkEventResult{MessageID: messageID}, nil
}
