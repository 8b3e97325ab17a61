package metrics

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/kbukum/obskit/component"
	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/resource"
)

// Config contains metrics collector configuration.
type Config struct {
	Enabled         bool          `yaml:"enabled" mapstructure:"enabled"`
	CollectInterval time.Duration `yaml:"collect_interval" mapstructure:"collect_interval"`
	DefaultBuckets  []float64     `yaml:"default_buckets" mapstructure:"default_buckets"`
	Retention       time.Duration `yaml:"retention" mapstructure:"retention"`
	SweepInterval   time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults applies default values to metrics configuration.
func (c *Config) ApplyDefaults() {
	if c.CollectInterval == 0 {
		c.CollectInterval = 15 * time.Second
	}
	if len(c.DefaultBuckets) == 0 {
		c.DefaultBuckets = DefaultBuckets
	}
	if c.Retention == 0 {
		c.Retention = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Observer receives a notification for every recorded point. Callbacks
// run outside the collector's locks and must not block for long.
type Observer interface {
	OnMetricRecorded(name string, point Point)
}

// instrumentOptions collects optional instrument parameters.
type instrumentOptions struct {
	unit        string
	description string
	buckets     []float64
}

// InstrumentOption configures a new instrument. Options are applied
// only on first creation; later lookups return the existing instrument.
type InstrumentOption func(*instrumentOptions)

// WithUnit sets the unit of measure.
func WithUnit(unit string) InstrumentOption {
	return func(o *instrumentOptions) { o.unit = unit }
}

// WithDescription sets the help text emitted in the exposition format.
func WithDescription(description string) InstrumentOption {
	return func(o *instrumentOptions) { o.description = description }
}

// WithBuckets sets histogram boundaries (ascending).
func WithBuckets(boundaries ...float64) InstrumentOption {
	return func(o *instrumentOptions) { o.buckets = boundaries }
}

// Collector owns named metric instruments with get-or-create semantics:
// the same name always returns the same instrument. All methods are
// safe for concurrent use.
type Collector struct {
	cfg Config
	res *resource.Resource
	log *logger.Logger

	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram

	obsMu    sync.RWMutex
	observer Observer

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewCollector creates a collector and registers the built-in metric
// definitions. Start must be called to launch the system sampler and
// retention sweep.
func NewCollector(cfg Config, res *resource.Resource, log *logger.Logger) *Collector {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	c := &Collector{
		cfg:        cfg,
		res:        res,
		log:        log.WithComponent("metrics"),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	c.registerBuiltins()
	return c
}

// Built-in metric names.
const (
	MetricHTTPRequestsTotal     = "http_requests_total"
	MetricHTTPRequestDurationMs = "http_request_duration_ms"
	MetricPipelineOpsTotal      = "pipeline_operations_total"
	MetricPipelineOpDurationMs  = "pipeline_operation_duration_ms"
	MetricQueueDepth            = "queue_depth"
	MetricQueueProcessedTotal   = "queue_processed_total"
	MetricSystemMemoryBytes     = "system_memory_bytes"
	MetricSystemGoroutines      = "system_goroutines"
)

// registerBuiltins pre-creates the documented built-in instruments so
// their names, labels and units are stable from process start.
func (c *Collector) registerBuiltins() {
	c.Counter(MetricHTTPRequestsTotal,
		WithDescription("Total HTTP requests by method, path and status"))
	c.Histogram(MetricHTTPRequestDurationMs, WithUnit("ms"),
		WithDescription("HTTP request duration in milliseconds"))
	c.Counter(MetricPipelineOpsTotal,
		WithDescription("Total pipeline operations by name and status"))
	c.Histogram(MetricPipelineOpDurationMs, WithUnit("ms"),
		WithDescription("Pipeline operation duration in milliseconds"))
	c.Gauge(MetricQueueDepth,
		WithDescription("Current queue depth by queue name"))
	c.Counter(MetricQueueProcessedTotal,
		WithDescription("Total queue items processed by queue name"))
	c.Gauge(MetricSystemMemoryBytes, WithUnit("bytes"),
		WithDescription("Heap memory in use"))
	c.Gauge(MetricSystemGoroutines,
		WithDescription("Number of live goroutines"))
}

// SetObserver attaches the metric observer. Passing nil detaches it.
func (c *Collector) SetObserver(o Observer) {
	c.obsMu.Lock()
	c.observer = o
	c.obsMu.Unlock()
}

func (c *Collector) enabled() bool { return c.cfg.Enabled }

func (c *Collector) recorded(name string, point Point) {
	c.obsMu.RLock()
	obs := c.observer
	c.obsMu.RUnlock()
	if obs != nil {
		obs.OnMetricRecorded(name, point)
	}
}

// Counter returns the counter with the given name, creating it if
// needed.
func (c *Collector) Counter(name string, opts ...InstrumentOption) *Counter {
	c.mu.RLock()
	counter, ok := c.counters[name]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok = c.counters[name]; ok {
		return counter
	}
	counter = newCounter(name, applyOptions(opts), c)
	c.counters[name] = counter
	return counter
}

// Gauge returns the gauge with the given name, creating it if needed.
func (c *Collector) Gauge(name string, opts ...InstrumentOption) *Gauge {
	c.mu.RLock()
	gauge, ok := c.gauges[name]
	c.mu.RUnlock()
	if ok {
		return gauge
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gauge, ok = c.gauges[name]; ok {
		return gauge
	}
	gauge = newGauge(name, applyOptions(opts), c)
	c.gauges[name] = gauge
	return gauge
}

// Histogram returns the histogram with the given name, creating it if
// needed.
func (c *Collector) Histogram(name string, opts ...InstrumentOption) *Histogram {
	c.mu.RLock()
	histogram, ok := c.histograms[name]
	c.mu.RUnlock()
	if ok {
		return histogram
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if histogram, ok = c.histograms[name]; ok {
		return histogram
	}
	histogram = newHistogram(name, applyOptions(opts), c)
	c.histograms[name] = histogram
	return histogram
}

func applyOptions(opts []InstrumentOption) instrumentOptions {
	var o instrumentOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Snapshot returns the current data for every instrument, sorted by
// name.
func (c *Collector) Snapshot() []Data {
	c.mu.RLock()
	out := make([]Data, 0, len(c.counters)+len(c.gauges)+len(c.histograms))
	for _, counter := range c.counters {
		out = append(out, counter.snapshot())
	}
	for _, gauge := range c.gauges {
		out = append(out, gauge.snapshot())
	}
	for _, histogram := range c.histograms {
		out = append(out, histogram.snapshot())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset clears all recorded values and points without dropping the
// registered instruments.
func (c *Collector) Reset() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, counter := range c.counters {
		counter.reset()
	}
	for _, gauge := range c.gauges {
		gauge.reset()
	}
	for _, histogram := range c.histograms {
		histogram.reset()
	}
}

// collectSystem samples runtime memory and goroutine gauges.
func (c *Collector) collectSystem() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.Gauge(MetricSystemMemoryBytes).Set(float64(m.HeapAlloc), nil)
	c.Gauge(MetricSystemGoroutines).Set(float64(runtime.NumGoroutine()), nil)
}

// sweep prunes points older than the retention window on every
// instrument.
func (c *Collector) sweep(now time.Time) int {
	cutoff := now.Add(-c.cfg.Retention)

	c.mu.RLock()
	defer c.mu.RUnlock()
	removed := 0
	for _, counter := range c.counters {
		removed += counter.prune(cutoff)
	}
	for _, gauge := range c.gauges {
		removed += gauge.prune(cutoff)
	}
	for _, histogram := range c.histograms {
		removed += histogram.prune(cutoff)
	}
	if removed > 0 {
		c.log.Debug("retention sweep removed points", logger.Fields(logger.FieldCount, removed))
	}
	return removed
}

// --- component.Component ---

// Name implements component.Component.
func (c *Collector) Name() string { return "metrics" }

// Start launches the system sampler and retention sweep tickers.
func (c *Collector) Start(ctx context.Context) error {
	go func() {
		defer close(c.done)
		collect := time.NewTicker(c.cfg.CollectInterval)
		sweep := time.NewTicker(c.cfg.SweepInterval)
		defer collect.Stop()
		defer sweep.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-collect.C:
				if c.cfg.Enabled {
					c.collectSystem()
				}
			case now := <-sweep.C:
				c.sweep(now)
			}
		}
	}()
	return nil
}

// Stop terminates the background tickers.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stop) })
	select {
	case <-c.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Health implements component.Component.
func (c *Collector) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	if !c.cfg.Enabled {
		status = component.StatusDisabled
	}
	c.mu.RLock()
	instruments := len(c.counters) + len(c.gauges) + len(c.histograms)
	c.mu.RUnlock()

	return component.Health{
		Name:   c.Name(),
		Status: status,
		Details: map[string]any{
			"instruments": instruments,
		},
	}
}
