package trace

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// DefaultQueryLimit caps search results when no limit is given.
const DefaultQueryLimit = 100

// Query filters completed traces. All set filters are conjunctive.
type Query struct {
	ServiceName   string         `json:"service_name,omitempty"`
	OperationName string         `json:"operation_name,omitempty"`
	MinDuration   time.Duration  `json:"min_duration,omitempty"`
	MaxDuration   time.Duration  `json:"max_duration,omitempty"`
	Tags          map[string]any `json:"tags,omitempty"`
	StartTime     time.Time      `json:"start_time,omitzero"`
	EndTime       time.Time      `json:"end_time,omitzero"`
	Limit         int            `json:"limit,omitempty"`
}

// SearchTraces returns completed traces matching the query, sorted by
// start time descending.
func (t *Tracer) SearchTraces(q Query) []*Trace {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultQueryLimit
	}

	t.mu.RLock()
	candidates := make([]*Trace, 0, len(t.traces))
	for _, tr := range t.traces {
		if tr.Complete && matchTrace(tr, q) {
			candidates = append(candidates, tr)
		}
	}
	t.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].StartTime.After(candidates[j].StartTime)
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates
}

func matchTrace(tr *Trace, q Query) bool {
	if q.ServiceName != "" && !strings.EqualFold(tr.ServiceName, q.ServiceName) {
		return false
	}
	if q.OperationName != "" && tr.OperationName != q.OperationName {
		return false
	}
	if q.MinDuration > 0 && tr.Duration < q.MinDuration {
		return false
	}
	if q.MaxDuration > 0 && tr.Duration > q.MaxDuration {
		return false
	}
	if !q.StartTime.IsZero() && tr.StartTime.Before(q.StartTime) {
		return false
	}
	if !q.EndTime.IsZero() && tr.StartTime.After(q.EndTime) {
		return false
	}
	for k, want := range q.Tags {
		if !traceHasTag(tr, k, want) {
			return false
		}
	}
	return true
}

// traceHasTag reports whether any span of the trace carries the
// attribute with an equal value. DeepEqual keeps the match safe for
// uncomparable attribute values such as maps and slices.
func traceHasTag(tr *Trace, key string, want any) bool {
	for _, s := range tr.Spans {
		if got, ok := s.Attributes[key]; ok && reflect.DeepEqual(got, want) {
			return true
		}
	}
	return false
}
