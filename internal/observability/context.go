package observability

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/google/uuid"
)

type contextKey string

// Context keys carried into every log line, in the order they are emitted.
const (
	traceIDKey   contextKey = "trace_id"
	spanIDKey    contextKey = "span_id"
	requestIDKey contextKey = "request_id"
	sessionIDKey contextKey = "session_id"
	providerKey  contextKey = "provider"
	modelKey     contextKey = "model"
)

var loggedKeys = []contextKey{traceIDKey, spanIDKey, requestIDKey, sessionIDKey, providerKey, modelKey}

func with(ctx context.Context, key contextKey, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

func get(ctx context.Context, key contextKey) string {
	value, _ := ctx.Value(key).(string)
	return value
}

// WithTraceID tags ctx with a trace id.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return with(ctx, traceIDKey, traceID)
}

// WithSpanID tags ctx with a span id.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return with(ctx, spanIDKey, spanID)
}

// WithRequestID tags ctx with the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return with(ctx, requestIDKey, requestID)
}

// WithSessionID tags ctx with the conversation the work belongs to.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return with(ctx, sessionIDKey, sessionID)
}

// WithProvider tags ctx with the serving provider.
func WithProvider(ctx context.Context, provider string) context.Context {
	return with(ctx, providerKey, provider)
}

// WithModel tags ctx with the routed model.
func WithModel(ctx context.Context, model string) context.Context {
	return with(ctx, modelKey, model)
}

// Getters return "" when the id is absent.
func GetTraceID(ctx context.Context) string   { return get(ctx, traceIDKey) }
func GetRequestID(ctx context.Context) string { return get(ctx, requestIDKey) }
func GetSessionID(ctx context.Context) string { return get(ctx, sessionIDKey) }

// GenerateTraceID returns 16 random bytes hex encoded, falling back to a UUID.
func GenerateTraceID() string {
	return randomHex(16)
}

// GenerateSpanID returns 8 random bytes hex encoded.
func GenerateSpanID() string {
	return randomHex(8)
}

// GenerateRequestID returns a random UUID.
func GenerateRequestID() string {
	return uuid.NewString()
}

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		id := uuid.New()
		return hex.EncodeToString(id[:])[:2*n]
	}
	return hex.EncodeToString(buf)
}
