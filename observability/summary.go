package observability

import (
	"math"
	"sort"
	"time"

	"github.com/kbukum/obskit/metrics"
	"github.com/kbukum/obskit/trace"
)

const topGroupLimit = 10

// ServiceSummary aggregates completed traces for one service.
type ServiceSummary struct {
	Name        string        `json:"name"`
	TraceCount  int           `json:"trace_count"`
	AvgDuration time.Duration `json:"avg_duration"`
}

// OperationSummary aggregates completed traces for one root operation.
type OperationSummary struct {
	Name        string        `json:"name"`
	TraceCount  int           `json:"trace_count"`
	AvgDuration time.Duration `json:"avg_duration"`
	ErrorRate   float64       `json:"error_rate"`
}

// TraceSummary is the cross-cutting view over completed traces.
type TraceSummary struct {
	TotalTraces   int                `json:"total_traces"`
	TotalSpans    int                `json:"total_spans"`
	ActiveSpans   int                `json:"active_spans"`
	ErrorRate     float64            `json:"error_rate"`
	P50           time.Duration      `json:"p50"`
	P95           time.Duration      `json:"p95"`
	P99           time.Duration      `json:"p99"`
	TopServices   []ServiceSummary   `json:"top_services"`
	TopOperations []OperationSummary `json:"top_operations"`
}

// MetricInfo ranks one metric by recorded point count.
type MetricInfo struct {
	Name       string       `json:"name"`
	Type       metrics.Type `json:"type"`
	PointCount int          `json:"point_count"`
}

// MetricsSummary is the cross-cutting view over the metrics registry.
type MetricsSummary struct {
	TotalMetrics int                  `json:"total_metrics"`
	TotalPoints  int                  `json:"total_points"`
	CountsByType map[metrics.Type]int `json:"counts_by_type"`
	TopMetrics   []MetricInfo         `json:"top_metrics"`
}

// Summary is the manager-level aggregate over all subsystems.
type Summary struct {
	Traces  TraceSummary   `json:"traces"`
	Metrics MetricsSummary `json:"metrics"`
	Logs    int            `json:"log_count"`
}

// GetSummary computes trace percentiles, top services and operations by
// trace count, and the metrics registry summary.
func (m *Manager) GetSummary() Summary {
	return Summary{
		Traces:  m.traceSummary(),
		Metrics: m.metricsSummary(),
		Logs:    m.logs.Count(),
	}
}

func (m *Manager) traceSummary() TraceSummary {
	stats := m.tracer.GetStats()
	completed := m.tracer.Completed()

	durations := make([]time.Duration, 0, len(completed))
	for _, tr := range completed {
		durations = append(durations, tr.Duration)
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	summary := TraceSummary{
		TotalTraces: stats.TotalTraces,
		TotalSpans:  stats.TotalSpans,
		ActiveSpans: stats.ActiveSpans,
		ErrorRate:   stats.ErrorRate,
		P50:         percentileDuration(durations, 50),
		P95:         percentileDuration(durations, 95),
		P99:         percentileDuration(durations, 99),
	}
	summary.TopServices = topServices(completed)
	summary.TopOperations = topOperations(completed)
	return summary
}

// percentileDuration picks index ceil(p/100*n)-1, clamped at zero, from
// an ascending-sorted slice. Returns 0 for an empty set.
func percentileDuration(sorted []time.Duration, p float64) time.Duration {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(n))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func topServices(completed []*trace.Trace) []ServiceSummary {
	type acc struct {
		count int
		total time.Duration
	}
	groups := make(map[string]*acc)
	for _, tr := range completed {
		g, ok := groups[tr.ServiceName]
		if !ok {
			g = &acc{}
			groups[tr.ServiceName] = g
		}
		g.count++
		g.total += tr.Duration
	}

	out := make([]ServiceSummary, 0, len(groups))
	for name, g := range groups {
		out = append(out, ServiceSummary{
			Name:        name,
			TraceCount:  g.count,
			AvgDuration: g.total / time.Duration(g.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TraceCount != out[j].TraceCount {
			return out[i].TraceCount > out[j].TraceCount
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topGroupLimit {
		out = out[:topGroupLimit]
	}
	return out
}

func topOperations(completed []*trace.Trace) []OperationSummary {
	type acc struct {
		count   int
		errored int
		total   time.Duration
	}
	groups := make(map[string]*acc)
	for _, tr := range completed {
		g, ok := groups[tr.OperationName]
		if !ok {
			g = &acc{}
			groups[tr.OperationName] = g
		}
		g.count++
		g.total += tr.Duration
		if tr.ErrorCount > 0 {
			g.errored++
		}
	}

	out := make([]OperationSummary, 0, len(groups))
	for name, g := range groups {
		out = append(out, OperationSummary{
			Name:        name,
			TraceCount:  g.count,
			AvgDuration: g.total / time.Duration(g.count),
			ErrorRate:   float64(g.errored) / float64(g.count),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TraceCount != out[j].TraceCount {
			return out[i].TraceCount > out[j].TraceCount
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > topGroupLimit {
		out = out[:topGroupLimit]
	}
	return out
}

func (m *Manager) metricsSummary() MetricsSummary {
	snapshot := m.collector.Snapshot()

	summary := MetricsSummary{
		TotalMetrics: len(snapshot),
		CountsByType: make(map[metrics.Type]int),
	}
	infos := make([]MetricInfo, 0, len(snapshot))
	for _, data := range snapshot {
		summary.TotalPoints += len(data.Points)
		summary.CountsByType[data.Type]++
		infos = append(infos, MetricInfo{
			Name:       data.Name,
			Type:       data.Type,
			PointCount: len(data.Points),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].PointCount != infos[j].PointCount {
			return infos[i].PointCount > infos[j].PointCount
		}
		return infos[i].Name < infos[j].Name
	})
	if len(infos) > topGroupLimit {
		infos = infos[:topGroupLimit]
	}
	summary.TopMetrics = infos
	return summary
}
