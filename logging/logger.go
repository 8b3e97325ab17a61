package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/obskit/component"
	"github.com/kbukum/obskit/logger"
	"github.com/kbukum/obskit/resource"
	"github.com/kbukum/obskit/trace"
)

// Config contains structured-log store configuration.
type Config struct {
	Enabled             bool          `yaml:"enabled" mapstructure:"enabled"`
	MinSeverity         string        `yaml:"min_severity" mapstructure:"min_severity"`
	IncludeTraceContext bool          `yaml:"include_trace_context" mapstructure:"include_trace_context"`
	Mirror              bool          `yaml:"mirror" mapstructure:"mirror"`
	MaxLogs             int           `yaml:"max_logs" mapstructure:"max_logs" validate:"gte=0"`
	Retention           time.Duration `yaml:"retention" mapstructure:"retention"`
	SweepInterval       time.Duration `yaml:"sweep_interval" mapstructure:"sweep_interval"`
}

// ApplyDefaults applies default values to logging configuration.
func (c *Config) ApplyDefaults() {
	if c.MinSeverity == "" {
		c.MinSeverity = "INFO"
	}
	if c.MaxLogs == 0 {
		c.MaxLogs = 10000
	}
	if c.Retention == 0 {
		c.Retention = time.Hour
	}
	if c.SweepInterval == 0 {
		c.SweepInterval = 30 * time.Second
	}
}

// Observer receives a notification for every stored record. Callbacks
// run outside the store's lock and must not block for long.
type Observer interface {
	OnLogRecorded(record Record)
}

// DefaultQueryLimit caps query results when no limit is given.
const DefaultQueryLimit = 100

// Query filters stored records. All set filters are conjunctive; the
// Severity filter is a minimum level, not an exact match, and
// BodyContains is a case-insensitive substring match. The result is the
// last Limit matches in storage order (newest-biased).
type Query struct {
	TraceID      string    `json:"trace_id,omitempty"`
	SpanID       string    `json:"span_id,omitempty"`
	ServiceName  string    `json:"service_name,omitempty"`
	Severity     *Severity `json:"severity,omitempty"`
	BodyContains string    `json:"body_contains,omitempty"`
	StartTime    time.Time `json:"start_time,omitzero"`
	EndTime      time.Time `json:"end_time,omitzero"`
	Limit        int       `json:"limit,omitempty"`
}

// Store is the bounded, trace-correlated structured log buffer. All
// methods are safe for concurrent use.
type Store struct {
	cfg         Config
	minSeverity Severity
	res         *resource.Resource
	log         *logger.Logger

	mirrorMu sync.RWMutex
	mirror   *logger.Logger

	mu      sync.RWMutex
	records []Record

	obsMu    sync.RWMutex
	observer Observer

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewStore creates a structured log store. Start must be called to
// launch the retention sweep.
func NewStore(cfg Config, res *resource.Resource, log *logger.Logger) *Store {
	cfg.ApplyDefaults()
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		cfg:         cfg,
		minSeverity: ParseSeverity(cfg.MinSeverity),
		res:         res,
		log:         log.WithComponent("logging"),
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// SetMirror attaches an operational logger that every accepted record
// is echoed to, in addition to being stored. Passing nil detaches it.
func (s *Store) SetMirror(mirror *logger.Logger) {
	s.mirrorMu.Lock()
	s.mirror = mirror
	s.mirrorMu.Unlock()
}

// SetObserver attaches the record observer. Passing nil detaches it.
func (s *Store) SetObserver(o Observer) {
	s.obsMu.Lock()
	s.observer = o
	s.obsMu.Unlock()
}

// Log stores a record if the subsystem is enabled and the severity
// clears the configured floor. Trace correlation is copied from ctx
// when present and enabled.
func (s *Store) Log(ctx context.Context, severity Severity, body string, attrs map[string]any) {
	if !s.cfg.Enabled || severity < s.minSeverity {
		return
	}

	record := Record{
		Timestamp:  time.Now(),
		Severity:   severity,
		Body:       body,
		Attributes: attrs,
		Resource:   s.res,
	}
	if s.cfg.IncludeTraceContext {
		if tc, ok := trace.FromContext(ctx); ok {
			record.TraceID = tc.TraceID
			record.SpanID = tc.SpanID
		}
	}

	s.mu.Lock()
	s.records = append(s.records, record)
	// Hard cap: keep only the most recent MaxLogs entries.
	if len(s.records) > s.cfg.MaxLogs {
		s.records = append([]Record(nil), s.records[len(s.records)-s.cfg.MaxLogs:]...)
	}
	s.mu.Unlock()

	s.echo(record)

	s.obsMu.RLock()
	obs := s.observer
	s.obsMu.RUnlock()
	if obs != nil {
		obs.OnLogRecorded(record)
	}
}

// echo mirrors an accepted record to the operational logger.
func (s *Store) echo(record Record) {
	s.mirrorMu.RLock()
	mirror := s.mirror
	s.mirrorMu.RUnlock()
	if mirror == nil {
		return
	}
	fields := make(map[string]any, len(record.Attributes)+2)
	for k, v := range record.Attributes {
		fields[k] = v
	}
	if record.TraceID != "" {
		fields[logger.FieldTraceID] = record.TraceID
		fields[logger.FieldSpanID] = record.SpanID
	}
	switch {
	case record.Severity <= SeverityDebug:
		mirror.Debug(record.Body, fields)
	case record.Severity == SeverityInfo:
		mirror.Info(record.Body, fields)
	case record.Severity == SeverityWarn:
		mirror.Warn(record.Body, fields)
	default:
		mirror.Error(record.Body, fields)
	}
}

// Trace stores a TRACE record.
func (s *Store) Trace(ctx context.Context, body string, attrs map[string]any) {
	s.Log(ctx, SeverityTrace, body, attrs)
}

// Debug stores a DEBUG record.
func (s *Store) Debug(ctx context.Context, body string, attrs map[string]any) {
	s.Log(ctx, SeverityDebug, body, attrs)
}

// Info stores an INFO record.
func (s *Store) Info(ctx context.Context, body string, attrs map[string]any) {
	s.Log(ctx, SeverityInfo, body, attrs)
}

// Warn stores a WARN record.
func (s *Store) Warn(ctx context.Context, body string, attrs map[string]any) {
	s.Log(ctx, SeverityWarn, body, attrs)
}

// Error stores an ERROR record; err details are merged into attributes
// when non-nil.
func (s *Store) Error(ctx context.Context, body string, err error, attrs map[string]any) {
	s.Log(ctx, SeverityError, body, mergeError(attrs, err))
}

// Fatal stores a FATAL record; err details are merged into attributes
// when non-nil. The process is not terminated.
func (s *Store) Fatal(ctx context.Context, body string, err error, attrs map[string]any) {
	s.Log(ctx, SeverityFatal, body, mergeError(attrs, err))
}

func mergeError(attrs map[string]any, err error) map[string]any {
	if err == nil {
		return attrs
	}
	merged := make(map[string]any, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	merged["error.type"] = fmt.Sprintf("%T", err)
	merged["error.message"] = err.Error()
	return merged
}

// Query returns the last Limit records matching all set filters, in
// storage order.
func (s *Store) Query(q Query) []Record {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	s.mu.RLock()
	matches := make([]Record, 0, limit)
	for _, r := range s.records {
		if matchRecord(r, q) {
			matches = append(matches, r)
		}
	}
	s.mu.RUnlock()

	if len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

func matchRecord(r Record, q Query) bool {
	if q.TraceID != "" && r.TraceID != q.TraceID {
		return false
	}
	if q.SpanID != "" && r.SpanID != q.SpanID {
		return false
	}
	if q.ServiceName != "" && (r.Resource == nil || r.Resource.ServiceName != q.ServiceName) {
		return false
	}
	if q.Severity != nil && r.Severity < *q.Severity {
		return false
	}
	if q.BodyContains != "" &&
		!strings.Contains(strings.ToLower(r.Body), strings.ToLower(q.BodyContains)) {
		return false
	}
	if !q.StartTime.IsZero() && r.Timestamp.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && r.Timestamp.After(q.EndTime) {
		return false
	}
	return true
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Clear drops all stored records.
func (s *Store) Clear() {
	s.mu.Lock()
	s.records = nil
	s.mu.Unlock()
}

// ToNDJSON exports one JSON object per line, in storage order.
func (s *Store) ToNDJSON() string {
	s.mu.RLock()
	records := append([]Record(nil), s.records...)
	s.mu.RUnlock()

	var b strings.Builder
	enc := json.NewEncoder(&b)
	for _, r := range records {
		// Encode appends the trailing newline itself.
		if err := enc.Encode(r); err != nil {
			s.log.Error("ndjson encode failed", logger.ErrorFields("export", err))
		}
	}
	return b.String()
}

// sweep drops records older than the retention window.
func (s *Store) sweep(now time.Time) int {
	cutoff := now.Add(-s.cfg.Retention)

	s.mu.Lock()
	idx := 0
	for idx < len(s.records) && s.records[idx].Timestamp.Before(cutoff) {
		idx++
	}
	removed := idx
	if idx > 0 {
		s.records = append([]Record(nil), s.records[idx:]...)
	}
	s.mu.Unlock()

	if removed > 0 {
		s.log.Debug("retention sweep removed records", logger.Fields(logger.FieldCount, removed))
	}
	return removed
}

// --- component.Component ---

// Name implements component.Component.
func (s *Store) Name() string { return "logging" }

// Start launches the retention sweep ticker.
func (s *Store) Start(ctx context.Context) error {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
	return nil
}

// Stop terminates the retention sweep.
func (s *Store) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() { close(s.stop) })
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Health implements component.Component.
func (s *Store) Health(ctx context.Context) component.Health {
	status := component.StatusHealthy
	if !s.cfg.Enabled {
		status = component.StatusDisabled
	}
	return component.Health{
		Name:   s.Name(),
		Status: status,
		Details: map[string]any{
			"records":  s.Count(),
			"max_logs": s.cfg.MaxLogs,
		},
	}
}
