package metrics

import (
	"math"
	"sync"
	"time"
)

// Histogram tracks the distribution of observed values in fixed
// cumulative buckets per label set.
type Histogram struct {
	name        string
	unit        string
	description string
	boundaries  []float64
	collector   *Collector

	mu     sync.Mutex
	series map[string]*Buckets
	labels map[string]map[string]string
	points []Point
}

func newHistogram(name string, opts instrumentOptions, c *Collector) *Histogram {
	boundaries := opts.buckets
	if len(boundaries) == 0 {
		boundaries = c.cfg.DefaultBuckets
	}
	return &Histogram{
		name:        name,
		unit:        opts.unit,
		description: opts.description,
		boundaries:  boundaries,
		collector:   c,
		series:      make(map[string]*Buckets),
		labels:      make(map[string]map[string]string),
	}
}

// Observe records a value: it updates sum, count, min and max, and
// increments exactly one bucket: the first boundary the value does not
// exceed, or the +Inf overflow bucket.
func (h *Histogram) Observe(value float64, labels map[string]string) {
	if !h.collector.enabled() {
		return
	}
	key := labelKey(labels)
	now := time.Now()

	h.mu.Lock()
	b, ok := h.series[key]
	if !ok {
		b = &Buckets{
			Boundaries: h.boundaries,
			Counts:     make([]uint64, len(h.boundaries)+1),
		}
		h.series[key] = b
		h.labels[key] = copyLabels(labels)
	}

	b.Counts[bucketIndex(h.boundaries, value)]++
	b.Sum += value
	if b.Count == 0 || value < b.Min {
		b.Min = value
	}
	if b.Count == 0 || value > b.Max {
		b.Max = value
	}
	b.Count++

	point := Point{Timestamp: now, Value: value, Labels: h.labels[key]}
	h.points = append(h.points, point)
	h.mu.Unlock()

	h.collector.recorded(h.name, point)
}

// bucketIndex returns the index of the first boundary >= value, or the
// overflow slot when the value exceeds every boundary.
func bucketIndex(boundaries []float64, value float64) int {
	for i, bound := range boundaries {
		if value <= bound {
			return i
		}
	}
	return len(boundaries)
}

// Percentile estimates the p-th percentile for a label set by walking
// buckets until the cumulative count reaches ceil(p/100*total) and
// returning that bucket's upper boundary. The result is boundary-snapped
// by design, not an exact order statistic. ok is false for an empty
// observation set or p outside (0, 100].
func (h *Histogram) Percentile(p float64, labels map[string]string) (value float64, ok bool) {
	if p <= 0 || p > 100 {
		return 0, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	b, exists := h.series[labelKey(labels)]
	if !exists || b.Count == 0 {
		return 0, false
	}

	target := uint64(math.Ceil(p / 100 * float64(b.Count)))
	var cumulative uint64
	for i, count := range b.Counts {
		cumulative += count
		if cumulative >= target {
			if i < len(b.Boundaries) {
				return b.Boundaries[i], true
			}
			// Overflow bucket has no upper boundary; the observed
			// maximum is the tightest bound available.
			return b.Max, true
		}
	}
	return b.Max, true
}

// Time measures fn and observes its duration in milliseconds.
func (h *Histogram) Time(fn func(), labels map[string]string) {
	stop := h.StartTimer(labels)
	fn()
	stop()
}

// StartTimer returns a stop function that observes the elapsed time in
// milliseconds when called.
func (h *Histogram) StartTimer(labels map[string]string) func() {
	start := time.Now()
	return func() {
		h.Observe(float64(time.Since(start).Milliseconds()), labels)
	}
}

// Buckets returns a copy of the bucket state for a label set, or nil
// when nothing has been observed.
func (h *Histogram) Buckets(labels map[string]string) *Buckets {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, ok := h.series[labelKey(labels)]
	if !ok {
		return nil
	}
	return cloneBuckets(b)
}

// Cardinality returns the number of distinct label sets observed.
func (h *Histogram) Cardinality() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.series)
}

func (h *Histogram) snapshot() Data {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Data{
		Name:        h.name,
		Type:        TypeHistogram,
		Unit:        h.unit,
		Description: h.description,
		Points:      append([]Point(nil), h.points...),
		Histogram:   h.aggregateLocked(),
		Resource:    h.collector.res,
	}
}

// aggregateLocked merges all label sets into a single bucket view for
// exposition. Caller must hold h.mu.
func (h *Histogram) aggregateLocked() *Buckets {
	agg := &Buckets{
		Boundaries: h.boundaries,
		Counts:     make([]uint64, len(h.boundaries)+1),
	}
	for _, b := range h.series {
		for i, count := range b.Counts {
			agg.Counts[i] += count
		}
		agg.Sum += b.Sum
		if agg.Count == 0 || b.Min < agg.Min {
			agg.Min = b.Min
		}
		if b.Max > agg.Max {
			agg.Max = b.Max
		}
		agg.Count += b.Count
	}
	return agg
}

func (h *Histogram) prune(cutoff time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	kept, removed := prunePoints(h.points, cutoff)
	h.points = kept
	return removed
}

func (h *Histogram) reset() {
	h.mu.Lock()
	h.series = make(map[string]*Buckets)
	h.labels = make(map[string]map[string]string)
	h.points = nil
	h.mu.Unlock()
}

func cloneBuckets(b *Buckets) *Buckets {
	return &Buckets{
		Boundaries: b.Boundaries,
		Counts:     append([]uint64(nil), b.Counts...),
		Sum:        b.Sum,
		Count:      b.Count,
		Min:        b.Min,
		Max:        b.Max,
	}
}
