package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Handlers and background consumers enrich the context once, and every slog call made
// with that context carries the moderation identifiers (post, reporter, action, etc.).
type LogFields struct {
	PostID     *int64  // Platform post ID
	ActionID   *int64  // Snowflake ID of one Act invocation
	FlagTypeID *int    // Catalog flag type
	MessageID  *string // Redis stream message ID
	EventKind  *string // Typed network event kind (e.g. "vote_cast")
	Reporter   string  // Reporter name (e.g. "Natty")
	Component  string  // Component name (e.g. "advflag.dispatch")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.PostID != nil {
		result.PostID = next.PostID
	}
	if next.ActionID != nil {
		result.ActionID = next.ActionID
	}
	if next.FlagTypeID != nil {
		result.FlagTypeID = next.FlagTypeID
	}
	if next.MessageID != nil {
		result.MessageID = next.MessageID
	}
	if next.EventKind != nil {
		result.EventKind = next.EventKind
	}
	if next.Reporter != "" {
		result.Reporter = next.Reporter
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{PostID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen characters, appending "..." if truncated.
// Raw response bodies go through this before they are logged.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
