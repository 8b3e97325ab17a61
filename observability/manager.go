package observability

import (
	"context"
	"time"

	"github.com/kbukum/obskit/component"
	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/logging"
	"github.com/kbukum/obskit/metrics"
	"github.com/kbukum/obskit/resource"
	"github.com/kbukum/obskit/trace"
)

// MetricEvent is the payload of a metric:recorded event.
type MetricEvent struct {
	Name  string        `json:"name"`
	Point metrics.Point `json:"point"`
}

// Manager composes the tracer, metrics collector and structured log
// store behind one API surface and one event bus.
type Manager struct {
	cfg Config
	res *resource.Resource
	log *logger.Logger

	tracer    *trace.Tracer
	collector *metrics.Collector
	logs      *logging.Store

	bus      *Bus
	registry *component.Registry
}

// NewManager validates the configuration and wires the pipeline.
// Start must be called to launch background timers.
func NewManager(cfg Config) (*Manager, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.New(&cfg.Logger, cfg.ServiceName)
	res := resource.New(cfg.ServiceName, cfg.ServiceVersion, cfg.Environment, cfg.Resource)

	m := &Manager{
		cfg:       cfg,
		res:       res,
		log:       log,
		tracer:    trace.NewTracer(cfg.Tracing, res, log),
		collector: metrics.NewCollector(cfg.Metrics, res, log),
		logs:      logging.NewStore(cfg.Logging, res, log),
		bus:       NewBus(),
	}

	m.tracer.SetObserver(m)
	m.collector.SetObserver(m)
	m.logs.SetObserver(m)
	if cfg.Logging.Mirror {
		m.logs.SetMirror(log)
	}

	m.registry = component.NewRegistry(log)
	for _, c := range []component.Component{m.tracer, m.collector, m.logs} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Resource returns the service identity attached to emitted records.
func (m *Manager) Resource() *resource.Resource { return m.res }

// Events returns the unified event bus.
func (m *Manager) Events() *Bus { return m.bus }

// Start launches the subsystem timers (system sampler, retention sweeps).
func (m *Manager) Start(ctx context.Context) error {
	return m.registry.StartAll(ctx)
}

// Shutdown stops all periodic timers and detaches every listener.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.registry.StopAll(ctx)
	m.tracer.SetObserver(nil)
	m.collector.SetObserver(nil)
	m.logs.SetObserver(nil)
	m.bus.Clear()
	return err
}

// Reset clears all three stores without tearing down configuration.
// Useful for test isolation.
func (m *Manager) Reset() {
	m.tracer.Reset()
	m.collector.Reset()
	m.logs.Clear()
}

// --- producer API ---

// StartSpan starts a span through the tracer.
func (m *Manager) StartSpan(name string, opts ...trace.StartOption) trace.SpanBuilder {
	return m.tracer.StartSpan(name, opts...)
}

// Trace wraps a unit of work in a span.
func (m *Manager) Trace(ctx context.Context, name string, fn func(ctx context.Context) error, opts ...trace.StartOption) error {
	return m.tracer.Trace(ctx, name, fn, opts...)
}

// Counter returns the named counter, creating it if needed.
func (m *Manager) Counter(name string, opts ...metrics.InstrumentOption) *metrics.Counter {
	return m.collector.Counter(name, opts...)
}

// Gauge returns the named gauge, creating it if needed.
func (m *Manager) Gauge(name string, opts ...metrics.InstrumentOption) *metrics.Gauge {
	return m.collector.Gauge(name, opts...)
}

// Histogram returns the named histogram, creating it if needed.
func (m *Manager) Histogram(name string, opts ...metrics.InstrumentOption) *metrics.Histogram {
	return m.collector.Histogram(name, opts...)
}

// LogTrace stores a TRACE record.
func (m *Manager) LogTrace(ctx context.Context, body string, attrs map[string]any) {
	m.logs.Trace(ctx, body, attrs)
}

// LogDebug stores a DEBUG record.
func (m *Manager) LogDebug(ctx context.Context, body string, attrs map[string]any) {
	m.logs.Debug(ctx, body, attrs)
}

// LogInfo stores an INFO record.
func (m *Manager) LogInfo(ctx context.Context, body string, attrs map[string]any) {
	m.logs.Info(ctx, body, attrs)
}

// LogWarn stores a WARN record.
func (m *Manager) LogWarn(ctx context.Context, body string, attrs map[string]any) {
	m.logs.Warn(ctx, body, attrs)
}

// LogError stores an ERROR record with optional error details.
func (m *Manager) LogError(ctx context.Context, body string, err error, attrs map[string]any) {
	m.logs.Error(ctx, body, err, attrs)
}

// LogFatal stores a FATAL record with optional error details.
func (m *Manager) LogFatal(ctx context.Context, body string, err error, attrs map[string]any) {
	m.logs.Fatal(ctx, body, err, attrs)
}

// --- query API ---

// SearchTraces returns completed traces matching the query.
func (m *Manager) SearchTraces(q trace.Query) []*trace.Trace {
	return m.tracer.SearchTraces(q)
}

// GetTrace returns the assembled trace for an ID, or nil when unknown.
func (m *Manager) GetTrace(traceID string) *trace.Trace {
	return m.tracer.GetTrace(traceID)
}

// GetStats returns tracer statistics.
func (m *Manager) GetStats() trace.Stats {
	return m.tracer.GetStats()
}

// QueryMetrics evaluates a metric query.
func (m *Manager) QueryMetrics(q metrics.Query) ([]metrics.Point, error) {
	return m.collector.Query(q)
}

// QueryLogs returns stored records matching the query.
func (m *Manager) QueryLogs(q logging.Query) []logging.Record {
	return m.logs.Query(q)
}

// ToPrometheus renders all metrics in the exposition text format.
func (m *Manager) ToPrometheus() string {
	return m.collector.ToPrometheus()
}

// ToNDJSON exports stored log records as newline-delimited JSON.
func (m *Manager) ToNDJSON() string {
	return m.logs.ToNDJSON()
}

// Health reports per-subsystem status and liveness counts.
type Health struct {
	Status     component.HealthStatus `json:"status"`
	Components []component.Health     `json:"components"`
}

// GetHealth reports the health of all subsystems.
func (m *Manager) GetHealth(ctx context.Context) Health {
	components := m.registry.HealthAll(ctx)
	status := component.StatusHealthy
	for _, c := range components {
		if c.Status == component.StatusUnhealthy {
			status = component.StatusUnhealthy
			break
		}
	}
	return Health{Status: status, Components: components}
}

// --- subsystem observers: re-emit everything on the bus ---

// OnSpanStarted implements trace.Observer.
func (m *Manager) OnSpanStarted(span *trace.Span) {
	m.bus.Publish(Event{Type: EventSpanStarted, Timestamp: time.Now(), Data: span})
}

// OnSpanEnded implements trace.Observer.
func (m *Manager) OnSpanEnded(span *trace.Span) {
	m.bus.Publish(Event{Type: EventSpanEnded, Timestamp: time.Now(), Data: span})
}

// OnTraceCompleted implements trace.Observer.
func (m *Manager) OnTraceCompleted(tr *trace.Trace) {
	m.bus.Publish(Event{Type: EventTraceCompleted, Timestamp: time.Now(), Data: tr})
}

// OnMetricRecorded implements metrics.Observer.
func (m *Manager) OnMetricRecorded(name string, point metrics.Point) {
	m.bus.Publish(Event{Type: EventMetricRecorded, Timestamp: time.Now(), Data: MetricEvent{Name: name, Point: point}})
}

// OnLogRecorded implements logging.Observer.
func (m *Manager) OnLogRecorded(record logging.Record) {
	m.bus.Publish(Event{Type: EventLogRecorded, Timestamp: time.Now(), Data: record})
}
