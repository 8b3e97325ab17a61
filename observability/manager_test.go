package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/obskit/component"
	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/logging"
	"github.com/kbukum/obskit/metrics"
	"github.com/kbukum/obskit/trace"
)

func newTestManager(t *testing.T, mutate ...func(*Config)) *Manager {
	t.Helper()
	cfg := DefaultConfig("checkout")
	cfg.Logger.Output = "stderr"
	cfg.Logging.MinSeverity = "TRACE"
	for _, fn := range mutate {
		fn(&cfg)
	}
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	return m
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(Config{})
	if err == nil {
		t.Fatal("expected error for missing service name")
	}
}

func TestManagerResource(t *testing.T) {
	m := newTestManager(t)
	res := m.Resource()
	if res.ServiceName != "checkout" {
		t.Errorf("expected service name 'checkout', got %q", res.ServiceName)
	}
	if res.ServiceVersion == "" {
		t.Error("expected a default service version")
	}
	if res.InstanceID == "" {
		t.Error("expected a generated instance ID")
	}
}

func TestManagerEndToEnd(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.Trace(ctx, "checkout", func(ctx context.Context) error {
		m.LogInfo(ctx, "order received", map[string]any{"order_id": "o-1"})
		m.Counter("orders_total").Inc(map[string]string{"status": "accepted"})
		return m.Trace(ctx, "charge-card", func(ctx context.Context) error {
			m.Histogram("charge_duration_ms").Observe(42, nil)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	traces := m.SearchTraces(trace.Query{OperationName: "checkout"})
	if len(traces) != 1 {
		t.Fatalf("expected 1 completed trace, got %d", len(traces))
	}
	tr := traces[0]
	if tr.SpanCount != 2 {
		t.Errorf("expected 2 spans, got %d", tr.SpanCount)
	}
	if tr.ErrorCount != 0 {
		t.Errorf("expected no errors, got %d", tr.ErrorCount)
	}

	logs := m.QueryLogs(logging.Query{TraceID: tr.TraceID})
	if len(logs) != 1 {
		t.Fatalf("expected 1 correlated log record, got %d", len(logs))
	}
	if logs[0].SpanID != tr.RootSpan.SpanID {
		t.Errorf("expected log correlated to the root span, got %q", logs[0].SpanID)
	}

	points, err := m.QueryMetrics(metrics.Query{Name: "orders_total"})
	if err != nil {
		t.Fatalf("unexpected metric query error: %v", err)
	}
	if len(points) != 1 || points[0].Value != 1 {
		t.Errorf("expected a single counter point of 1, got %v", points)
	}
}

func TestManagerBusReceivesAllEventTypes(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	seen := make(map[EventType]int)
	m.Events().Subscribe(func(e Event) { seen[e.Type]++ })

	err := m.Trace(ctx, "op", func(ctx context.Context) error {
		m.Counter("ops_total").Inc(nil)
		m.LogInfo(ctx, "working", nil)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := map[EventType]int{
		EventSpanStarted:    1,
		EventSpanEnded:      1,
		EventTraceCompleted: 1,
		EventMetricRecorded: 1,
		EventLogRecorded:    1,
	}
	for typ, count := range want {
		if seen[typ] != count {
			t.Errorf("expected %d %s events, got %d", count, typ, seen[typ])
		}
	}
}

func TestManagerEventPayloads(t *testing.T) {
	m := newTestManager(t)

	var spanData, traceData, metricData, logData any
	m.Events().Subscribe(func(e Event) { spanData = e.Data }, EventSpanEnded)
	m.Events().Subscribe(func(e Event) { traceData = e.Data }, EventTraceCompleted)
	m.Events().Subscribe(func(e Event) { metricData = e.Data }, EventMetricRecorded)
	m.Events().Subscribe(func(e Event) { logData = e.Data }, EventLogRecorded)

	sb := m.StartSpan("op")
	sb.End()
	m.Counter("c_total").Inc(nil)
	m.LogWarn(context.Background(), "warned", nil)

	if _, ok := spanData.(*trace.Span); !ok {
		t.Errorf("expected *trace.Span payload, got %T", spanData)
	}
	if _, ok := traceData.(*trace.Trace); !ok {
		t.Errorf("expected *trace.Trace payload, got %T", traceData)
	}
	me, ok := metricData.(MetricEvent)
	if !ok {
		t.Fatalf("expected MetricEvent payload, got %T", metricData)
	}
	if me.Name != "c_total" {
		t.Errorf("expected metric name 'c_total', got %q", me.Name)
	}
	if _, ok := logData.(logging.Record); !ok {
		t.Errorf("expected logging.Record payload, got %T", logData)
	}
}

func TestManagerLifecycle(t *testing.T) {
	m := newTestManager(t, func(c *Config) {
		c.Retention.SweepInterval = 10 * time.Millisecond
	})
	ctx := context.Background()

	if err := m.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	m.Events().Subscribe(func(Event) {})
	if m.Events().SubscriberCount() != 1 {
		t.Fatal("expected 1 subscriber before shutdown")
	}

	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("unexpected shutdown error: %v", err)
	}
	if m.Events().SubscriberCount() != 0 {
		t.Error("expected shutdown to detach bus subscribers")
	}

	// Post-shutdown activity must not reach the bus.
	fired := false
	m.Events().Subscribe(func(Event) { fired = true })
	m.StartSpan("after-shutdown").End()
	if fired {
		t.Error("expected subsystem observers to be detached after shutdown")
	}
}

func TestManagerReset(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.StartSpan("op").End()
	m.Counter("c_total").Inc(nil)
	m.LogInfo(ctx, "kept?", nil)

	m.Reset()

	if got := m.GetStats().TotalSpans; got != 0 {
		t.Errorf("expected no spans after reset, got %d", got)
	}
	points, _ := m.QueryMetrics(metrics.Query{Name: "c_total"})
	if len(points) != 0 {
		t.Errorf("expected no metric points after reset, got %d", len(points))
	}
	if got := m.QueryLogs(logging.Query{}); len(got) != 0 {
		t.Errorf("expected no logs after reset, got %d", len(got))
	}
}

func TestManagerGetHealth(t *testing.T) {
	m := newTestManager(t)
	health := m.GetHealth(context.Background())

	if health.Status != component.StatusHealthy {
		t.Errorf("expected healthy pipeline, got %q", health.Status)
	}
	if len(health.Components) != 3 {
		t.Fatalf("expected 3 components, got %d", len(health.Components))
	}

	names := make(map[string]bool)
	for _, c := range health.Components {
		names[c.Name] = true
	}
	for _, want := range []string{"tracer", "metrics", "logging"} {
		if !names[want] {
			t.Errorf("expected component %q in health report", want)
		}
	}
}

func TestManagerHealthDisabledSubsystem(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Tracing.Enabled = false })
	health := m.GetHealth(context.Background())

	if health.Status != component.StatusHealthy {
		t.Errorf("expected disabled subsystem to keep the pipeline healthy, got %q", health.Status)
	}
	for _, c := range health.Components {
		if c.Name == "tracer" && c.Status != component.StatusDisabled {
			t.Errorf("expected tracer disabled, got %q", c.Status)
		}
	}
}

func TestManagerDisabledTracing(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Tracing.Enabled = false })

	err := m.Trace(context.Background(), "op", func(ctx context.Context) error {
		return errors.New("still propagates")
	})
	if err == nil {
		t.Fatal("expected the function error to propagate with tracing off")
	}
	if got := m.SearchTraces(trace.Query{}); len(got) != 0 {
		t.Errorf("expected no traces recorded, got %d", len(got))
	}
}

func TestManagerExports(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Counter("requests_total").Inc(map[string]string{"method": "GET"})
	m.LogInfo(ctx, "hello", nil)

	if prom := m.ToPrometheus(); prom == "" {
		t.Error("expected non-empty Prometheus exposition")
	}
	if nd := m.ToNDJSON(); nd == "" {
		t.Error("expected non-empty NDJSON export")
	}
}

func TestManagerWiresLogMirror(t *testing.T) {
	m := newTestManager(t, func(c *Config) { c.Logging.Mirror = true })

	var buf bytes.Buffer
	m.logs.SetMirror(logger.NewWithWriter(&buf, "checkout"))
	m.LogInfo(context.Background(), "mirrored", nil)

	if !strings.Contains(buf.String(), `"message":"mirrored"`) {
		t.Errorf("expected the record echoed to the mirror, got %q", buf.String())
	}
	if got := len(m.QueryLogs(logging.Query{})); got != 1 {
		t.Errorf("expected the record stored as well, got %d", got)
	}
}
