package metrics

import (
	"sync"
	"time"
)

// Counter is a monotonically increasing value per label set.
type Counter struct {
	name        string
	unit        string
	description string
	collector   *Collector

	mu     sync.Mutex
	values map[string]float64
	labels map[string]map[string]string
	points []Point
}

func newCounter(name string, opts instrumentOptions, c *Collector) *Counter {
	return &Counter{
		name:        name,
		unit:        opts.unit,
		description: opts.description,
		collector:   c,
		values:      make(map[string]float64),
		labels:      make(map[string]map[string]string),
	}
}

// Inc increments the counter by 1 for the given label set.
func (c *Counter) Inc(labels map[string]string) {
	c.Add(1, labels)
}

// Add increments the counter by value. Negative values are dropped to
// preserve monotonicity.
func (c *Counter) Add(value float64, labels map[string]string) {
	if value < 0 || !c.collector.enabled() {
		return
	}
	key := labelKey(labels)
	now := time.Now()

	c.mu.Lock()
	if _, ok := c.labels[key]; !ok {
		c.labels[key] = copyLabels(labels)
	}
	c.values[key] += value
	point := Point{Timestamp: now, Value: c.values[key], Labels: c.labels[key]}
	c.points = append(c.points, point)
	c.mu.Unlock()

	c.collector.recorded(c.name, point)
}

// Value returns the current value for a label set.
func (c *Counter) Value(labels map[string]string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[labelKey(labels)]
}

// Cardinality returns the number of distinct label sets observed.
func (c *Counter) Cardinality() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.values)
}

// snapshot returns the metric data for export.
func (c *Counter) snapshot() Data {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Data{
		Name:        c.name,
		Type:        TypeCounter,
		Unit:        c.unit,
		Description: c.description,
		Points:      append([]Point(nil), c.points...),
		Resource:    c.collector.res,
	}
}

// current returns the latest value per label set, for exposition.
func (c *Counter) current() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Point, 0, len(c.values))
	for key, v := range c.values {
		out = append(out, Point{Value: v, Labels: c.labels[key]})
	}
	return out
}

// prune drops points older than the cutoff. Current values survive.
func (c *Counter) prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept, removed := prunePoints(c.points, cutoff)
	c.points = kept
	return removed
}

// reset clears all state.
func (c *Counter) reset() {
	c.mu.Lock()
	c.values = make(map[string]float64)
	c.labels = make(map[string]map[string]string)
	c.points = nil
	c.mu.Unlock()
}

// prunePoints retains points at or after the cutoff, preserving order.
func prunePoints(points []Point, cutoff time.Time) ([]Point, int) {
	idx := 0
	for idx < len(points) && points[idx].Timestamp.Before(cutoff) {
		idx++
	}
	if idx == 0 {
		return points, 0
	}
	return append([]Point(nil), points[idx:]...), idx
}
