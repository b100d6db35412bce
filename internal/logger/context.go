package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds session-scoped logging context for a transport connection
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Transport string    // "tcp", "vxi11", "serial"
	Endpoint  string    // dialed address or device path
	XID       uint32    // last ONC/RPC transaction id, 0 for non-RPC transports
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a connection to the given endpoint
func NewLogContext(endpoint string) *LogContext {
	return &LogContext{
		Endpoint:  endpoint,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	return &LogContext{
		TraceID:   lc.TraceID,
		SpanID:    lc.SpanID,
		Transport: lc.Transport,
		Endpoint:  lc.Endpoint,
		XID:       lc.XID,
		StartTime: lc.StartTime,
	}
}

// WithTransport returns a copy with the transport kind set
func (lc *LogContext) WithTransport(transport string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Transport = transport
	}
	return clone
}

// WithXID returns a copy with the RPC transaction id set
func (lc *LogContext) WithXID(xid uint32) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.XID = xid
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
