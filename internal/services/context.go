package services

import "context"

type contextKey string

const (
	tagIDKey     contextKey = "tag_id"
	stateKey     contextKey = "state"
	requestIDKey contextKey = "request_id"
)

// WithTagID annotates context with the tag being resolved.
func WithTagID(ctx context.Context, tagID string) context.Context {
	if tagID == "" {
		return ctx
	}
	return context.WithValue(ctx, tagIDKey, tagID)
}

// TagIDFromContext extracts the tag identifier if present.
func TagIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(tagIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithState annotates context with the resolver state name.
func WithState(ctx context.Context, state string) context.Context {
	if state == "" {
		return ctx
	}
	return context.WithValue(ctx, stateKey, state)
}

// StateFromContext returns the resolver state name if present.
func StateFromContext(ctx context.Context) (string, bool) {
	v := ctx.Value(stateKey)
	if str, ok := v.(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
