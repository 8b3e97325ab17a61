package trace

import (
	"fmt"
	"sync"
	"time"
)

// SpanBuilder mutates an in-flight span. The tracer returns one of two
// variants: a recording builder backed by a stored span, or a no-op
// builder when tracing is disabled or the sampler rejected the span.
// Callers never need to branch on which variant they hold.
type SpanBuilder interface {
	// SetAttribute sets a single attribute on the span.
	SetAttribute(key string, value any) SpanBuilder

	// SetAttributes sets multiple attributes on the span.
	SetAttributes(attrs map[string]any) SpanBuilder

	// AddEvent appends a timestamped annotation to the span.
	AddEvent(name string, attrs map[string]any) SpanBuilder

	// AddLink references a span in another trace.
	AddLink(traceID, spanID string, attrs map[string]any) SpanBuilder

	// SetStatus sets the span outcome.
	SetStatus(code StatusCode, message string) SpanBuilder

	// SetError sets status ERROR and appends a structured exception event.
	SetError(err error) SpanBuilder

	// Context returns the propagatable trace context for this span.
	Context() TraceContext

	// IsRecording reports whether mutations are retained.
	IsRecording() bool

	// End completes the span at time.Now. Safe to call more than once;
	// only the first call takes effect. Returns the stored span, or nil
	// for the no-op variant.
	End() *Span

	// EndAt completes the span at the given time.
	EndAt(endTime time.Time) *Span
}

// recordingBuilder owns an in-flight span until End.
type recordingBuilder struct {
	tracer *Tracer
	span   *Span
	mu     sync.Mutex
	ended  bool
}

func (b *recordingBuilder) SetAttribute(key string, value any) SpanBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return b
	}
	b.setAttributeLocked(key, value)
	return b
}

func (b *recordingBuilder) SetAttributes(attrs map[string]any) SpanBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return b
	}
	for k, v := range attrs {
		b.setAttributeLocked(k, v)
	}
	return b
}

// setAttributeLocked enforces the attribute cap: existing keys may be
// overwritten, new keys beyond the cap are dropped (oldest preserved).
func (b *recordingBuilder) setAttributeLocked(key string, value any) {
	if b.span.Attributes == nil {
		b.span.Attributes = make(map[string]any)
	}
	if _, exists := b.span.Attributes[key]; !exists &&
		len(b.span.Attributes) >= b.tracer.cfg.MaxSpanAttributes {
		return
	}
	b.span.Attributes[key] = value
}

func (b *recordingBuilder) AddEvent(name string, attrs map[string]any) SpanBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended || len(b.span.Events) >= b.tracer.cfg.MaxSpanEvents {
		return b
	}
	b.span.Events = append(b.span.Events, Event{
		Name:       name,
		Timestamp:  time.Now(),
		Attributes: attrs,
	})
	return b
}

func (b *recordingBuilder) AddLink(traceID, spanID string, attrs map[string]any) SpanBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended || len(b.span.Links) >= b.tracer.cfg.MaxSpanLinks {
		return b
	}
	b.span.Links = append(b.span.Links, Link{
		TraceID:    traceID,
		SpanID:     spanID,
		Attributes: attrs,
	})
	return b
}

func (b *recordingBuilder) SetStatus(code StatusCode, message string) SpanBuilder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return b
	}
	b.span.Status = Status{Code: code, Message: message}
	return b
}

func (b *recordingBuilder) SetError(err error) SpanBuilder {
	if err == nil {
		return b
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ended {
		return b
	}
	b.span.Status = Status{Code: StatusError, Message: err.Error()}
	if len(b.span.Events) < b.tracer.cfg.MaxSpanEvents {
		b.span.Events = append(b.span.Events, Event{
			Name:      "exception",
			Timestamp: time.Now(),
			Attributes: map[string]any{
				"exception.type":    fmt.Sprintf("%T", err),
				"exception.message": err.Error(),
			},
		})
	}
	return b
}

func (b *recordingBuilder) Context() TraceContext {
	return b.span.Context()
}

func (b *recordingBuilder) IsRecording() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.ended
}

func (b *recordingBuilder) End() *Span {
	return b.EndAt(time.Now())
}

func (b *recordingBuilder) EndAt(endTime time.Time) *Span {
	b.mu.Lock()
	if b.ended {
		b.mu.Unlock()
		return b.span
	}
	b.ended = true
	b.span.EndTime = endTime
	b.span.Duration = endTime.Sub(b.span.StartTime)
	b.mu.Unlock()

	b.tracer.endSpan(b.span)
	return b.span
}

// noopBuilder discards all mutations. It still carries a valid trace
// context (unsampled) so callers can propagate it downstream.
type noopBuilder struct {
	ctx TraceContext
}

func (b noopBuilder) SetAttribute(string, any) SpanBuilder            { return b }
func (b noopBuilder) SetAttributes(map[string]any) SpanBuilder        { return b }
func (b noopBuilder) AddEvent(string, map[string]any) SpanBuilder     { return b }
func (b noopBuilder) AddLink(string, string, map[string]any) SpanBuilder {
	return b
}
func (b noopBuilder) SetStatus(StatusCode, string) SpanBuilder { return b }
func (b noopBuilder) SetError(error) SpanBuilder               { return b }
func (b noopBuilder) Context() TraceContext                    { return b.ctx }
func (b noopBuilder) IsRecording() bool                        { return false }
func (b noopBuilder) End() *Span                               { return nil }
func (b noopBuilder) EndAt(time.Time) *Span                    { return nil }
