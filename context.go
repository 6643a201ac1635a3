package tiqology

import "context"

type ctxKey string

const (
	ctxKeySession   ctxKey = "tiqology_session"
	ctxKeyRequestID ctxKey = "tiqology_request_id"
)

// WithSession stores a session snapshot in the context.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, ctxKeySession, s)
}

// SessionFromContext extracts the session snapshot from the context.
// The zero Session (unauthenticated) is returned when none is set.
func SessionFromContext(ctx context.Context) Session {
	v, _ := ctx.Value(ctxKeySession).(Session)
	return v
}

// WithRequestID stores a request ID that gateways forward as X-Request-ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}
