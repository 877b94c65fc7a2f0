package logger

import (
	"context"
	"unicode/utf8"
)

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// The Slack adapter seeds EventID/ChannelID/UserID, the bot adds ConversationKey,
// and the run driver adds RunID and ToolName as a run progresses.
type LogFields struct {
	EventID         *int64  // Snowflake ID assigned to the inbound Slack event
	ConversationKey *string // Conversation store key (channel or DM id)
	RunID           *string // Remote assistant run ID
	ToolName        *string // Tool being dispatched
	UserID          *string // Slack user ID
	ChannelID       *string // Slack channel ID
	Component       string  // Component name, e.g. "sam.assistant.run_driver"
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	merged := mergeFields(GetLogFields(ctx), fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.EventID != nil {
		result.EventID = next.EventID
	}
	if next.ConversationKey != nil {
		result.ConversationKey = next.ConversationKey
	}
	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.ToolName != nil {
		result.ToolName = next.ToolName
	}
	if next.UserID != nil {
		result.UserID = next.UserID
	}
	if next.ChannelID != nil {
		result.ChannelID = next.ChannelID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{RunID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to at most maxLen bytes, appending "..." if
// truncated. The cut never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := max(maxLen, 0)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
