package trace

import (
	"context"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/obskit/resource"
)

// FlagSampled is bit 0 of TraceFlags and encodes the sampling decision
// so child spans can inherit it.
const FlagSampled byte = 0x01

// TraceContext is the only value that crosses component boundaries. It
// identifies a position in a trace and carries the sampling decision.
type TraceContext struct {
	TraceID      string `json:"trace_id"`
	SpanID       string `json:"span_id"`
	ParentSpanID string `json:"parent_span_id,omitempty"`
	TraceFlags   byte   `json:"trace_flags"`
}

// IsSampled reports whether the sampled flag is set.
func (tc TraceContext) IsSampled() bool {
	return tc.TraceFlags&FlagSampled != 0
}

// Valid reports whether the context carries usable identifiers.
func (tc TraceContext) Valid() bool {
	return tc.TraceID != "" && tc.SpanID != ""
}

// SpanKind categorizes the relationship of a span to its trace.
type SpanKind string

const (
	KindInternal SpanKind = "INTERNAL"
	KindServer   SpanKind = "SERVER"
	KindClient   SpanKind = "CLIENT"
	KindProducer SpanKind = "PRODUCER"
	KindConsumer SpanKind = "CONSUMER"
)

// StatusCode is the outcome classification of a span.
type StatusCode string

const (
	StatusUnset StatusCode = "UNSET"
	StatusOK    StatusCode = "OK"
	StatusError StatusCode = "ERROR"
)

// Status holds the outcome of a span.
type Status struct {
	Code    StatusCode `json:"code"`
	Message string     `json:"message,omitempty"`
}

// Event is a timestamped annotation on a span.
type Event struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Link references a span in another trace.
type Link struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Span is a single timed operation. It is mutated only by its owning
// builder until End, after which it is immutable and stored.
type Span struct {
	TraceID      string             `json:"trace_id"`
	SpanID       string             `json:"span_id"`
	ParentSpanID string             `json:"parent_span_id,omitempty"`
	Name         string             `json:"name"`
	Kind         SpanKind           `json:"kind"`
	StartTime    time.Time          `json:"start_time"`
	EndTime      time.Time          `json:"end_time,omitzero"`
	Duration     time.Duration      `json:"duration"`
	Status       Status             `json:"status"`
	Attributes   map[string]any     `json:"attributes,omitempty"`
	Events       []Event            `json:"events,omitempty"`
	Links        []Link             `json:"links,omitempty"`
	Resource     *resource.Resource `json:"resource,omitempty"`
}

// Ended reports whether the span has completed.
func (s *Span) Ended() bool {
	return !s.EndTime.IsZero()
}

// IsRoot reports whether the span has no parent.
func (s *Span) IsRoot() bool {
	return s.ParentSpanID == ""
}

// Context returns the propagatable trace context of the span.
func (s *Span) Context() TraceContext {
	return TraceContext{
		TraceID:      s.TraceID,
		SpanID:       s.SpanID,
		ParentSpanID: s.ParentSpanID,
		TraceFlags:   FlagSampled,
	}
}

// Trace is the tree of spans sharing a trace ID, rooted at the span
// without a parent.
type Trace struct {
	TraceID       string        `json:"trace_id"`
	RootSpan      *Span         `json:"root_span,omitempty"`
	Spans         []*Span       `json:"spans"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time,omitzero"`
	Duration      time.Duration `json:"duration"`
	SpanCount     int           `json:"span_count"`
	ErrorCount    int           `json:"error_count"`
	ServiceName   string        `json:"service_name,omitempty"`
	OperationName string        `json:"operation_name,omitempty"`
	Complete      bool          `json:"complete"`
}

// newTraceID returns a 32-hex-char trace identifier.
func newTraceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// newSpanID returns a 16-hex-char span identifier.
func newSpanID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:8])
}

// contextKey is an unexported type for context keys to avoid collisions.
type contextKey struct{}

// ContextWith stores a TraceContext in the context for propagation to
// child operations and log correlation.
func ContextWith(ctx context.Context, tc TraceContext) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext retrieves the TraceContext from the context, if any.
func FromContext(ctx context.Context) (TraceContext, bool) {
	tc, ok := ctx.Value(contextKey{}).(TraceContext)
	return tc, ok
}
