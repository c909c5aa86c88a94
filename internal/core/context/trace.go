package context

import (
	"context"

	"github.com/google/uuid"
)

// TraceContext identifies one unit of work in logs: an HTTP request or one
// worker pass.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string

	// Operation names worker passes ("stock_scan", "cleanup"). Empty for requests.
	Operation string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, trace *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, trace)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// NewRequestTrace keeps the caller-supplied IDs and generates the missing ones.
func NewRequestTrace(traceID, requestID string) *TraceContext {
	if traceID == "" {
		traceID = uuid.NewString()
	}
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return &TraceContext{
		TraceID:   traceID,
		SpanID:    newSpanID(),
		RequestID: requestID,
	}
}

// NewTraceContext starts a trace for a background operation.
func NewTraceContext(operation string) *TraceContext {
	t := NewRequestTrace("", "")
	t.Operation = operation
	return t
}

func newSpanID() string {
	return uuid.NewString()[:16]
}
