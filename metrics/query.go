package metrics

import (
	"sort"
	"time"

	"github.com/kbukum/obskit/errors"
)

// Aggregation names a reduction applied per step bucket.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
	AggCount Aggregation = "count"
	AggRate  Aggregation = "rate"
)

// Query filters raw points of one metric by label subset and time
// range. When both Step and Aggregation are set, points are grouped
// into step-aligned buckets and reduced.
type Query struct {
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	StartTime   time.Time         `json:"start_time,omitzero"`
	EndTime     time.Time         `json:"end_time,omitzero"`
	Step        time.Duration     `json:"step,omitempty"`
	Aggregation Aggregation       `json:"aggregation,omitempty"`
}

// Query evaluates a metric query. An unknown metric name returns an
// empty result, never an error; a negative step or unknown aggregation
// is a contract violation and is rejected.
func (c *Collector) Query(q Query) ([]Point, error) {
	if q.Step < 0 {
		return nil, errors.InvalidStep(q.Step.String())
	}
	if q.Aggregation != "" {
		switch q.Aggregation {
		case AggSum, AggAvg, AggMin, AggMax, AggCount, AggRate:
		default:
			return nil, errors.InvalidQuery("aggregation", "unknown aggregation "+string(q.Aggregation))
		}
	}

	points := c.rawPoints(q.Name)
	filtered := make([]Point, 0, len(points))
	for _, p := range points {
		if !labelsSubset(q.Labels, p.Labels) {
			continue
		}
		if !q.StartTime.IsZero() && p.Timestamp.Before(q.StartTime) {
			continue
		}
		if !q.EndTime.IsZero() && p.Timestamp.After(q.EndTime) {
			continue
		}
		filtered = append(filtered, p)
	}

	if q.Step == 0 || q.Aggregation == "" {
		return filtered, nil
	}
	return aggregate(filtered, q.Step, q.Aggregation), nil
}

// rawPoints returns a copy of the stored points for a metric name of
// any type, or nil when the name is unknown.
func (c *Collector) rawPoints(name string) []Point {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if counter, ok := c.counters[name]; ok {
		return counter.snapshot().Points
	}
	if gauge, ok := c.gauges[name]; ok {
		return gauge.snapshot().Points
	}
	if histogram, ok := c.histograms[name]; ok {
		return histogram.snapshot().Points
	}
	return nil
}

// aggregate groups points into floor(timestamp/step)*step buckets and
// reduces each bucket. Results are sorted by bucket start ascending.
func aggregate(points []Point, step time.Duration, agg Aggregation) []Point {
	if len(points) == 0 {
		return nil
	}

	buckets := make(map[int64][]float64)
	for _, p := range points {
		start := p.Timestamp.UnixNano() / int64(step) * int64(step)
		buckets[start] = append(buckets[start], p.Value)
	}

	starts := make([]int64, 0, len(buckets))
	for start := range buckets {
		starts = append(starts, start)
	}
	sort.Slice(starts, func(i, j int) bool { return starts[i] < starts[j] })

	out := make([]Point, 0, len(starts))
	for _, start := range starts {
		out = append(out, Point{
			Timestamp: time.Unix(0, start),
			Value:     reduce(buckets[start], step, agg),
		})
	}
	return out
}

func reduce(values []float64, step time.Duration, agg Aggregation) float64 {
	switch agg {
	case AggSum:
		return sum(values)
	case AggAvg:
		return sum(values) / float64(len(values))
	case AggMin:
		min := values[0]
		for _, v := range values[1:] {
			if v < min {
				min = v
			}
		}
		return min
	case AggMax:
		max := values[0]
		for _, v := range values[1:] {
			if v > max {
				max = v
			}
		}
		return max
	case AggCount:
		return float64(len(values))
	case AggRate:
		return sum(values) / step.Seconds()
	}
	return 0
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
