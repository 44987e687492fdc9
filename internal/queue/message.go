package queue

import (
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventMessage is one completed network request observed by the page agent.
type EventMessage struct {
	URL        string
	StatusCode int
	Body       string
	TraceID    *string
	ObservedAt time.Time
}

type Message struct {
	ID         string
	URL        string
	StatusCode int
	Body       string
	TraceID    string
	ObservedAt time.Time
	Raw        redis.XMessage
}

func ParseMessage(msg redis.XMessage) (Message, error) {
	url, err := parseString(msg.Values, "url")
	if err != nil {
		return Message{}, err
	}
	if url == "" {
		return Message{}, fmt.Errorf("empty url")
	}
	statusCode, err := parseInt(msg.Values, "status_code")
	if err != nil {
		return Message{}, err
	}
	body, err := parseOptionalString(msg.Values, "body")
	if err != nil {
		return Message{}, err
	}
	traceID, err := parseOptionalString(msg.Values, "trace_id")
	if err != nil {
		return Message{}, err
	}
	observedAt, err := parseOptionalInt64(msg.Values, "observed_at")
	if err != nil {
		return Message{}, err
	}

	m := Message{
		ID:         msg.ID,
		URL:        url,
		StatusCode: statusCode,
		Body:       body,
		TraceID:    traceID,
		Raw:        msg,
	}
	if observedAt != nil {
		m.ObservedAt = time.UnixMilli(*observedAt).UTC()
	}
	return m, nil
}

func parseInt(values map[string]any, key string) (int, error) {
	raw, ok := values[key]
	if !ok {
		return 0, fmt.Errorf("missing %s", key)
	}
	str := fmt.Sprint(raw)
	num, err := strconv.Atoi(str)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", key, err)
	}
	return num, nil
}

func parseString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", fmt.Errorf("missing %s", key)
	}
	return fmt.Sprint(raw), nil
}

func parseOptionalInt64(values map[string]any, key string) (*int64, error) {
	raw, ok := values[key]
	if !ok {
		return nil, nil
	}
	str := fmt.Sprint(raw)
	num, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", key, err)
	}
	return &num, nil
}

func parseOptionalString(values map[string]any, key string) (string, error) {
	raw, ok := values[key]
	if !ok {
		return "", nil
	}
	return fmt.Sprint(raw), nil
}

func eventValues(msg EventMessage) map[string]any {
	values := map[string]any{
		"url":         msg.URL,
		"status_code": msg.StatusCode,
		"body":        msg.Body,
	}
	if !msg.ObservedAt.IsZero() {
		values["observed_at"] = msg.ObservedAt.UnixMilli()
	}
	if msg.TraceID != nil && *msg.TraceID != "" {
		values["trace_id"] = *msg.TraceID
	}
	return values
}

func messageValues(msg Message) map[string]any {
	values := map[string]any{}
	for k, v := range msg.Raw.Values {
		values[k] = v
	}
	if len(values) == 0 {
		values["url"] = msg.URL
		values["status_code"] = msg.StatusCode
		values["body"] = msg.Body
		if msg.TraceID != "" {
			values["trace_id"] = msg.TraceID
		}
	}
	return values
}
