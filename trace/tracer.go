package trace

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/obskit/component"
	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/resource"
)

// Config contains tracer configuration.
type Config struct {
	Enabled           bool          `yaml:"enabled" mapstructure:"enabled"`
	Sampler           SamplerConfig `yaml:"sampler" mapstructure:"sampler"`
	MaxSpanAttributes int           `yaml:"max_span_attributes" mapstructure:"max_span_attributes" validate:"gte=0"`
	MaxSpanEvents     int           `yaml:"max_span_events" mapstructure:"max_span_events" validate:"gte=0"`
	MaxSpanLinks      int           `yaml:"max_span_links" mapstructure:"max_span_links" validate:"gte=0"`
	Retention         time.Duration `yaml:"retention" mapstructure:"retention"`
	SweepInterval     time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults applies default values to tracer configuration.
func (c *Config) ApplyDefaults() {
	c.Sampler.ApplyDefaults()
	if c.MaxSpanAttributes == 0 {
		c.MaxSpanAttributes = 128
	}
	if c.MaxSpanEvents == 0 {
		c.MaxSpanEvents = 128
	}
	if c.MaxSpanLinks == 0 {
		c.MaxSpanLinks = 32
	}
	if c.Retention == 0 {
		c.Retention = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Observer receives span and trace lifecycle notifications. Callbacks
// are invoked outside the tracer's locks and must not block for long.
type Observer interface {
	OnSpanStarted(span *Span)
	OnSpanEnded(span *Span)
	OnTraceCompleted(trace *Trace)
}

// Stats summarizes tracer activity. Duration figures cover completed
// traces only; ErrorRate is ERROR spans over all stored spans.
type Stats struct {
	TotalTraces int           `json:"total_traces"`
	TotalSpans  int           `json:"total_spans"`
	ActiveSpans int           `json:"active_spans"`
	AvgDuration time.Duration `json:"avg_duration"`
	ErrorRate   float64       `json:"error_rate"`
}

// Tracer creates spans, assembles traces and owns their retention.
// All methods are safe for concurrent use.
type Tracer struct {
	cfg     Config
	res     *resource.Resource
	sampler Sampler
	log     *logger.Logger

	mu      sync.RWMutex
	active  map[string]*Span   // span ID -> in-flight span
	byTrace map[string][]*Span // trace ID -> ended spans
	traces  map[string]*Trace  // trace ID -> assembled trace

	obsMu    sync.RWMutex
	observer Observer

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewTracer creates a tracer. Start must be called to launch the
// retention sweep.
func NewTracer(cfg Config, res *resource.Resource, log *logger.Logger) *Tracer {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Tracer{
		cfg:     cfg,
		res:     res,
		sampler: NewSampler(cfg.Sampler),
		log:     log.WithComponent("tracer"),
		active:  make(map[string]*Span),
		byTrace: make(map[string][]*Span),
		traces:  make(map[string]*Trace),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// SetObserver attaches the lifecycle observer. Passing nil detaches it.
func (t *Tracer) SetObserver(o Observer) {
	t.obsMu.Lock()
	t.observer = o
	t.obsMu.Unlock()
}

func (t *Tracer) getObserver() Observer {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	return t.observer
}

// startOptions collects the optional StartSpan parameters.
type startOptions struct {
	kind         SpanKind
	parent       *TraceContext
	parentSpanID string
	startTime    time.Time
	attributes   map[string]any
	links        []Link
}

// StartOption configures StartSpan.
type StartOption func(*startOptions)

// WithKind sets the span kind (default INTERNAL).
func WithKind(kind SpanKind) StartOption {
	return func(o *startOptions) { o.kind = kind }
}

// WithParent places the span under an existing trace context.
func WithParent(tc TraceContext) StartOption {
	return func(o *startOptions) { o.parent = &tc }
}

// WithParentSpanID sets an explicit parent span ID within the same trace.
func WithParentSpanID(spanID string) StartOption {
	return func(o *startOptions) { o.parentSpanID = spanID }
}

// WithStartTime overrides the span start time.
func WithStartTime(ts time.Time) StartOption {
	return func(o *startOptions) { o.startTime = ts }
}

// WithAttributes sets initial span attributes.
func WithAttributes(attrs map[string]any) StartOption {
	return func(o *startOptions) { o.attributes = attrs }
}

// WithLinks sets initial span links.
func WithLinks(links ...Link) StartOption {
	return func(o *startOptions) { o.links = links }
}

// StartSpan creates a new span. When tracing is disabled or the sampler
// rejects the span, the returned builder is a no-op whose mutators are
// safe but discard data.
func (t *Tracer) StartSpan(name string, opts ...StartOption) SpanBuilder {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.kind == "" {
		o.kind = KindInternal
	}
	if o.startTime.IsZero() {
		o.startTime = time.Now()
	}

	traceID := newTraceID()
	parentSpanID := o.parentSpanID
	if o.parent != nil && o.parent.Valid() {
		traceID = o.parent.TraceID
		if parentSpanID == "" {
			parentSpanID = o.parent.SpanID
		}
	}
	spanID := newSpanID()

	if !t.cfg.Enabled || !t.sampler.ShouldSample(traceID, o.parent) {
		return noopBuilder{ctx: TraceContext{
			TraceID:      traceID,
			SpanID:       spanID,
			ParentSpanID: parentSpanID,
		}}
	}

	span := &Span{
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parentSpanID,
		Name:         name,
		Kind:         o.kind,
		StartTime:    o.startTime,
		Status:       Status{Code: StatusUnset},
		Links:        o.links,
		Resource:     t.res,
	}
	if len(o.attributes) > 0 {
		span.Attributes = make(map[string]any, len(o.attributes))
		for k, v := range o.attributes {
			if len(span.Attributes) >= t.cfg.MaxSpanAttributes {
				break
			}
			span.Attributes[k] = v
		}
	}
	if len(span.Links) > t.cfg.MaxSpanLinks {
		span.Links = span.Links[:t.cfg.MaxSpanLinks]
	}

	t.mu.Lock()
	t.active[spanID] = span
	t.mu.Unlock()

	if obs := t.getObserver(); obs != nil {
		obs.OnSpanStarted(span)
	}

	return &recordingBuilder{tracer: t, span: span}
}

// Trace wraps a unit of work in a span. The span inherits any trace
// context stored in ctx, is passed down via the child context, and is
// always ended regardless of exit path. A returned error sets status
// ERROR; success sets status OK.
func (t *Tracer) Trace(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...StartOption) error {
	if parent, ok := FromContext(ctx); ok {
		opts = append([]StartOption{WithParent(parent)}, opts...)
	}
	sb := t.StartSpan(name, opts...)
	defer sb.End()

	if err := fn(ContextWith(ctx, sb.Context())); err != nil {
		sb.SetError(err)
		return err
	}
	sb.SetStatus(StatusOK, "")
	return nil
}

// endSpan moves an ended span into storage. Trace completeness is
// re-evaluated only when a root span ends; child ends merely refresh an
// already-assembled trace so late arrivals are not lost.
func (t *Tracer) endSpan(span *Span) {
	t.mu.Lock()
	delete(t.active, span.SpanID)
	t.byTrace[span.TraceID] = append(t.byTrace[span.TraceID], span)

	var completed *Trace
	if span.IsRoot() {
		completed = t.assembleLocked(span.TraceID)
		t.traces[span.TraceID] = completed
	} else if _, ok := t.traces[span.TraceID]; ok {
		t.traces[span.TraceID] = t.assembleLocked(span.TraceID)
	}
	t.mu.Unlock()

	if obs := t.getObserver(); obs != nil {
		obs.OnSpanEnded(span)
		if completed != nil {
			obs.OnTraceCompleted(completed)
		}
	}
}

// assembleLocked builds the Trace record for a trace ID from its stored
// spans. Caller must hold t.mu.
func (t *Tracer) assembleLocked(traceID string) *Trace {
	spans := t.byTrace[traceID]

	tr := &Trace{
		TraceID:   traceID,
		Spans:     append([]*Span(nil), spans...),
		SpanCount: len(spans),
	}
	for _, s := range spans {
		if s.IsRoot() {
			tr.RootSpan = s
		}
		if s.Status.Code == StatusError {
			tr.ErrorCount++
		}
		if tr.StartTime.IsZero() || s.StartTime.Before(tr.StartTime) {
			tr.StartTime = s.StartTime
		}
	}
	if tr.RootSpan != nil {
		tr.StartTime = tr.RootSpan.StartTime
		tr.OperationName = tr.RootSpan.Name
		if tr.RootSpan.Resource != nil {
			tr.ServiceName = tr.RootSpan.Resource.ServiceName
		}
		if tr.RootSpan.Ended() {
			tr.EndTime = tr.RootSpan.EndTime
			tr.Duration = tr.RootSpan.Duration
			tr.Complete = true
		}
	}
	return tr
}

// Completed returns all completed traces in unspecified order.
func (t *Tracer) Completed() []*Trace {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Trace, 0, len(t.traces))
	for _, tr := range t.traces {
		if tr.Complete {
			out = append(out, tr)
		}
	}
	return out
}

// GetTrace returns the assembled trace for an ID, or nil when unknown.
func (t *Tracer) GetTrace(traceID string) *Trace {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.traces[traceID]
}

// GetStats computes tracer statistics.
func (t *Tracer) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stats := Stats{ActiveSpans: len(t.active)}

	var errorSpans int
	for _, spans := range t.byTrace {
		stats.TotalSpans += len(spans)
		for _, s := range spans {
			if s.Status.Code == StatusError {
				errorSpans++
			}
		}
	}

	var totalDuration time.Duration
	var completed int
	for _, tr := range t.traces {
		if !tr.Complete {
			continue
		}
		completed++
		totalDuration += tr.Duration
	}
	stats.TotalTraces = completed
	if completed > 0 {
		stats.AvgDuration = totalDuration / time.Duration(completed)
	}
	if stats.TotalSpans > 0 {
		stats.ErrorRate = float64(errorSpans) / float64(stats.TotalSpans)
	}
	return stats
}

// Reset clears all stored spans and traces without touching config.
func (t *Tracer) Reset() {
	t.mu.Lock()
	t.active = make(map[string]*Span)
	t.byTrace = make(map[string][]*Span)
	t.traces = make(map[string]*Trace)
	t.mu.Unlock()
}

// sweep removes traces whose root span started before the cutoff, and
// orphaned span groups whose oldest span is older than the cutoff.
func (t *Tracer) sweep(now time.Time) int {
	cutoff := now.Add(-t.cfg.Retention)

	t.mu.Lock()
	removed := 0
	for id, tr := range t.traces {
		root := tr.RootSpan
		if root != nil && root.StartTime.Before(cutoff) {
			removed += len(t.byTrace[id])
			delete(t.traces, id)
			delete(t.byTrace, id)
		}
	}
	for id, spans := range t.byTrace {
		if _, ok := t.traces[id]; ok {
			continue
		}
		oldest := time.Time{}
		for _, s := range spans {
			if oldest.IsZero() || s.StartTime.Before(oldest) {
				oldest = s.StartTime
			}
		}
		if !oldest.IsZero() && oldest.Before(cutoff) {
			removed += len(spans)
			delete(t.byTrace, id)
		}
	}
	t.mu.Unlock()

	if removed > 0 {
		t.log.Debug("retention sweep removed spans", logger.Fields(logger.FieldCount, removed))
	}
	return removed
}

// --- component.Component ---

// Name implements component.Component.
func (t *Tracer) Name() string { return "tracer" }

// Start launches the retention sweep ticker.
func (t *Tracer) Start(ctx context.Context) error {
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				return
			case now := <-ticker.C:
				t.sweep(now)
			}
		}
	}()
	return nil
}

// Stop terminates the retention sweep.
func (t *Tracer) Stop(ctx context.Context) error {
	t.stopOnce.Do(func() { close(t.stop) })
	select {
	case <-t.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Health implements component.Component.
func (t *Tracer) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	if !t.cfg.Enabled {
		status = component.StatusDisabled
	}
	t.mu.RLock()
	active := len(t.active)
	traces := len(t.traces)
	t.mu.RUnlock()

	return component.Health{
		Name:   t.Name(),
		Status: status,
		Details: map[string]any{
			"active_spans": active,
			"traces":       traces,
			"sampler":      t.sampler.Description(),
		},
	}
}
