package trace

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kbukum/obskit/resource"
)

func newTestTracer(t *testing.T, mutate ...func(*Config)) *Tracer {
	t.Helper()
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	for _, fn := range mutate {
		fn(&cfg)
	}
	res := resource.New("checkout", "1.0.0", "test", resource.Config{HostName: "test-host", InstanceID: "test-instance"})
	return NewTracer(cfg, res, nil)
}

func TestStartSpanRecording(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("http.request", WithKind(KindServer))
	if !sb.IsRecording() {
		t.Fatal("expected a recording span")
	}

	tc := sb.Context()
	if len(tc.TraceID) != 32 {
		t.Errorf("expected 32-char trace ID, got %q", tc.TraceID)
	}
	if len(tc.SpanID) != 16 {
		t.Errorf("expected 16-char span ID, got %q", tc.SpanID)
	}

	span := sb.End()
	if span == nil {
		t.Fatal("expected stored span from End")
	}
	if span.Kind != KindServer {
		t.Errorf("expected kind SERVER, got %q", span.Kind)
	}
	if !span.Ended() {
		t.Error("expected span to be ended")
	}
	if span.Duration < 0 {
		t.Errorf("expected non-negative duration, got %v", span.Duration)
	}
}

func TestStartSpanDisabledIsNoop(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) { c.Enabled = false })
	sb := tr.StartSpan("ignored")
	if sb.IsRecording() {
		t.Fatal("expected a no-op span when tracing is disabled")
	}
	if span := sb.SetAttribute("k", "v").End(); span != nil {
		t.Errorf("expected nil span from no-op End, got %+v", span)
	}
	if !sb.Context().Valid() {
		t.Error("expected no-op builder to carry a valid trace context")
	}
	if sb.Context().IsSampled() {
		t.Error("expected no-op context to be unsampled")
	}
}

func TestEndIsIdempotent(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("op")
	first := sb.EndAt(time.Now())
	end := first.EndTime
	second := sb.EndAt(time.Now().Add(time.Hour))
	if second != first {
		t.Fatal("expected the same span from repeated End")
	}
	if !second.EndTime.Equal(end) {
		t.Errorf("expected end time %v to be preserved, got %v", end, second.EndTime)
	}

	stats := tr.GetStats()
	if stats.TotalSpans != 1 {
		t.Errorf("expected 1 stored span after double End, got %d", stats.TotalSpans)
	}
}

func TestMutationsAfterEndAreDropped(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("op")
	span := sb.End()

	sb.SetAttribute("late", true)
	sb.AddEvent("late", nil)
	sb.SetStatus(StatusError, "late")

	if _, ok := span.Attributes["late"]; ok {
		t.Error("expected attribute set after End to be dropped")
	}
	if len(span.Events) != 0 {
		t.Errorf("expected no events after End, got %d", len(span.Events))
	}
	if span.Status.Code == StatusError {
		t.Error("expected status set after End to be dropped")
	}
}

func TestTraceCompletionOnRootEnd(t *testing.T) {
	tr := newTestTracer(t)

	t0 := time.Now()
	root := tr.StartSpan("checkout", WithKind(KindServer), WithStartTime(t0))
	child := tr.StartSpan("charge-card", WithParent(root.Context()), WithStartTime(t0.Add(10*time.Millisecond)))

	child.EndAt(t0.Add(60 * time.Millisecond))
	if got := tr.GetTrace(root.Context().TraceID); got != nil {
		t.Fatal("expected no assembled trace before the root span ends")
	}

	root.EndAt(t0.Add(130 * time.Millisecond))
	got := tr.GetTrace(root.Context().TraceID)
	if got == nil {
		t.Fatal("expected assembled trace after root end")
	}
	if !got.Complete {
		t.Error("expected trace to be complete")
	}
	if got.SpanCount != 2 {
		t.Errorf("expected span count 2, got %d", got.SpanCount)
	}
	if got.ErrorCount != 0 {
		t.Errorf("expected error count 0, got %d", got.ErrorCount)
	}
	if got.Duration != 130*time.Millisecond {
		t.Errorf("expected duration 130ms, got %v", got.Duration)
	}
	if got.OperationName != "checkout" {
		t.Errorf("expected operation 'checkout', got %q", got.OperationName)
	}
	if got.ServiceName != "checkout" {
		t.Errorf("expected service 'checkout', got %q", got.ServiceName)
	}
}

func TestLateChildRefreshesTrace(t *testing.T) {
	tr := newTestTracer(t)

	root := tr.StartSpan("root")
	child := tr.StartSpan("slow-child", WithParent(root.Context()))

	root.End()
	before := tr.GetTrace(root.Context().TraceID)
	if before.SpanCount != 1 {
		t.Fatalf("expected 1 span before late child, got %d", before.SpanCount)
	}

	child.End()
	after := tr.GetTrace(root.Context().TraceID)
	if after.SpanCount != 2 {
		t.Errorf("expected 2 spans after late child end, got %d", after.SpanCount)
	}
	if !after.Complete {
		t.Error("expected trace to remain complete")
	}
}

func TestTraceErrorCounting(t *testing.T) {
	tr := newTestTracer(t)

	root := tr.StartSpan("root")
	child := tr.StartSpan("child", WithParent(root.Context()))
	child.SetError(errors.New("boom"))
	child.End()
	root.End()

	got := tr.GetTrace(root.Context().TraceID)
	if got.ErrorCount != 1 {
		t.Errorf("expected error count 1, got %d", got.ErrorCount)
	}
}

func TestSetErrorRecordsExceptionEvent(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("op")
	sb.SetError(fmt.Errorf("connection refused"))
	span := sb.End()

	if span.Status.Code != StatusError {
		t.Fatalf("expected status ERROR, got %q", span.Status.Code)
	}
	if span.Status.Message != "connection refused" {
		t.Errorf("expected status message 'connection refused', got %q", span.Status.Message)
	}
	if len(span.Events) != 1 {
		t.Fatalf("expected one exception event, got %d", len(span.Events))
	}
	ev := span.Events[0]
	if ev.Name != "exception" {
		t.Errorf("expected event name 'exception', got %q", ev.Name)
	}
	if ev.Attributes["exception.message"] != "connection refused" {
		t.Errorf("unexpected exception.message: %v", ev.Attributes["exception.message"])
	}
}

func TestSetErrorNilIsIgnored(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("op")
	span := sb.SetError(nil).End()
	if span.Status.Code != StatusUnset {
		t.Errorf("expected status UNSET for nil error, got %q", span.Status.Code)
	}
}

func TestAttributeLimit(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) { c.MaxSpanAttributes = 3 })
	sb := tr.StartSpan("op")
	for i := 0; i < 10; i++ {
		sb.SetAttribute(fmt.Sprintf("key%d", i), i)
	}
	sb.SetAttribute("key0", "updated")
	span := sb.End()

	if len(span.Attributes) != 3 {
		t.Fatalf("expected 3 attributes after truncation, got %d", len(span.Attributes))
	}
	if span.Attributes["key0"] != "updated" {
		t.Errorf("expected existing key to be overwritable at the cap, got %v", span.Attributes["key0"])
	}
}

func TestEventAndLinkLimits(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) {
		c.MaxSpanEvents = 2
		c.MaxSpanLinks = 1
	})
	sb := tr.StartSpan("op")
	for i := 0; i < 5; i++ {
		sb.AddEvent(fmt.Sprintf("event%d", i), nil)
		sb.AddLink(newTraceID(), newSpanID(), nil)
	}
	span := sb.End()

	if len(span.Events) != 2 {
		t.Errorf("expected 2 events, got %d", len(span.Events))
	}
	if len(span.Links) != 1 {
		t.Errorf("expected 1 link, got %d", len(span.Links))
	}
	if span.Events[0].Name != "event0" {
		t.Errorf("expected oldest events preserved, got %q first", span.Events[0].Name)
	}
}

func TestTraceHelperPropagatesContext(t *testing.T) {
	tr := newTestTracer(t)

	var rootCtx, childCtx TraceContext
	err := tr.Trace(context.Background(), "parent", func(ctx context.Context) error {
		var ok bool
		rootCtx, ok = FromContext(ctx)
		if !ok {
			t.Fatal("expected trace context inside traced function")
		}
		return tr.Trace(ctx, "child", func(ctx context.Context) error {
			childCtx, _ = FromContext(ctx)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if childCtx.TraceID != rootCtx.TraceID {
		t.Errorf("expected child to share trace ID %q, got %q", rootCtx.TraceID, childCtx.TraceID)
	}
	if childCtx.ParentSpanID != rootCtx.SpanID {
		t.Errorf("expected child parent span %q, got %q", rootCtx.SpanID, childCtx.ParentSpanID)
	}

	got := tr.GetTrace(rootCtx.TraceID)
	if got == nil || !got.Complete {
		t.Fatal("expected completed trace from nested Trace calls")
	}
	if got.SpanCount != 2 {
		t.Errorf("expected 2 spans, got %d", got.SpanCount)
	}
}

func TestTraceHelperSetsStatus(t *testing.T) {
	tr := newTestTracer(t)

	boom := errors.New("boom")
	var failedCtx TraceContext
	err := tr.Trace(context.Background(), "failing", func(ctx context.Context) error {
		failedCtx, _ = FromContext(ctx)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the function error to propagate, got %v", err)
	}
	failed := tr.GetTrace(failedCtx.TraceID)
	if failed.RootSpan.Status.Code != StatusError {
		t.Errorf("expected status ERROR, got %q", failed.RootSpan.Status.Code)
	}

	var okCtx TraceContext
	if err := tr.Trace(context.Background(), "succeeding", func(ctx context.Context) error {
		okCtx, _ = FromContext(ctx)
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ok := tr.GetTrace(okCtx.TraceID)
	if ok.RootSpan.Status.Code != StatusOK {
		t.Errorf("expected status OK, got %q", ok.RootSpan.Status.Code)
	}
}

func TestGetStats(t *testing.T) {
	tr := newTestTracer(t)

	t0 := time.Now()
	a := tr.StartSpan("a", WithStartTime(t0))
	a.EndAt(t0.Add(100 * time.Millisecond))

	b := tr.StartSpan("b", WithStartTime(t0))
	b.SetError(errors.New("bad"))
	b.EndAt(t0.Add(300 * time.Millisecond))

	tr.StartSpan("in-flight")

	stats := tr.GetStats()
	if stats.TotalTraces != 2 {
		t.Errorf("expected 2 completed traces, got %d", stats.TotalTraces)
	}
	if stats.TotalSpans != 2 {
		t.Errorf("expected 2 stored spans, got %d", stats.TotalSpans)
	}
	if stats.ActiveSpans != 1 {
		t.Errorf("expected 1 active span, got %d", stats.ActiveSpans)
	}
	if stats.AvgDuration != 200*time.Millisecond {
		t.Errorf("expected avg duration 200ms, got %v", stats.AvgDuration)
	}
	if stats.ErrorRate != 0.5 {
		t.Errorf("expected error rate 0.5, got %v", stats.ErrorRate)
	}
}

func TestReset(t *testing.T) {
	tr := newTestTracer(t)
	sb := tr.StartSpan("op")
	id := sb.Context().TraceID
	sb.End()

	tr.Reset()
	if got := tr.GetTrace(id); got != nil {
		t.Error("expected no traces after Reset")
	}
	stats := tr.GetStats()
	if stats.TotalSpans != 0 || stats.ActiveSpans != 0 {
		t.Errorf("expected empty stats after Reset, got %+v", stats)
	}
}

func TestRetentionSweep(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) { c.Retention = time.Minute })

	old := tr.StartSpan("old", WithStartTime(time.Now().Add(-2*time.Minute)))
	oldID := old.Context().TraceID
	old.End()

	fresh := tr.StartSpan("fresh")
	freshID := fresh.Context().TraceID
	fresh.End()

	removed := tr.sweep(time.Now())
	if removed != 1 {
		t.Errorf("expected 1 span removed, got %d", removed)
	}
	if tr.GetTrace(oldID) != nil {
		t.Error("expected expired trace to be removed")
	}
	if tr.GetTrace(freshID) == nil {
		t.Error("expected fresh trace to survive the sweep")
	}
}

func TestSweepRemovesOrphanedSpanGroups(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) { c.Retention = time.Minute })

	// A child ends but its root never does: the group stays unassembled.
	parent := TraceContext{TraceID: newTraceID(), SpanID: newSpanID(), TraceFlags: FlagSampled}
	orphan := tr.StartSpan("orphan", WithParent(parent), WithStartTime(time.Now().Add(-2*time.Minute)))
	orphan.End()

	removed := tr.sweep(time.Now())
	if removed != 1 {
		t.Errorf("expected 1 orphaned span removed, got %d", removed)
	}
	if stats := tr.GetStats(); stats.TotalSpans != 0 {
		t.Errorf("expected no stored spans after sweep, got %d", stats.TotalSpans)
	}
}

func TestObserverCallbacks(t *testing.T) {
	tr := newTestTracer(t)

	var started, ended, completed int
	obs := &captureObserver{
		onStarted:   func(*Span) { started++ },
		onEnded:     func(*Span) { ended++ },
		onCompleted: func(*Trace) { completed++ },
	}
	tr.SetObserver(obs)

	root := tr.StartSpan("root")
	child := tr.StartSpan("child", WithParent(root.Context()))
	child.End()
	root.End()

	if started != 2 {
		t.Errorf("expected 2 start callbacks, got %d", started)
	}
	if ended != 2 {
		t.Errorf("expected 2 end callbacks, got %d", ended)
	}
	if completed != 1 {
		t.Errorf("expected 1 completion callback, got %d", completed)
	}

	tr.SetObserver(nil)
	tr.StartSpan("after-detach").End()
	if started != 2 {
		t.Errorf("expected no callbacks after detach, got %d starts", started)
	}
}

type captureObserver struct {
	onStarted   func(*Span)
	onEnded     func(*Span)
	onCompleted func(*Trace)
}

func (o *captureObserver) OnSpanStarted(s *Span)      { o.onStarted(s) }
func (o *captureObserver) OnSpanEnded(s *Span)        { o.onEnded(s) }
func (o *captureObserver) OnTraceCompleted(tr *Trace) { o.onCompleted(tr) }

func TestComponentLifecycle(t *testing.T) {
	tr := newTestTracer(t, func(c *Config) { c.SweepInterval = 10 * time.Millisecond })
	if tr.Name() != "tracer" {
		t.Errorf("expected component name 'tracer', got %q", tr.Name())
	}

	ctx := context.Background()
	if err := tr.Start(ctx); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}
	if err := tr.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	health := tr.Health(ctx)
	if health.Status != "healthy" {
		t.Errorf("expected healthy status, got %q", health.Status)
	}
}
