package metrics

import (
	"sync"
	"time"
)

// Gauge is a value that can go up and down per label set.
type Gauge struct {
	name        string
	unit        string
	description string
	collector   *Collector

	mu     sync.Mutex
	values map[string]float64
	labels map[string]map[string]string
	points []Point
}

func newGauge(name string, opts instrumentOptions, c *Collector) *Gauge {
	return &Gauge{
		name:        name,
		unit:        opts.unit,
		description: opts.description,
		collector:   c,
		values:      make(map[string]float64),
		labels:      make(map[string]map[string]string),
	}
}

// Set records the current value for a label set.
func (g *Gauge) Set(value float64, labels map[string]string) {
	if !g.collector.enabled() {
		return
	}
	key := labelKey(labels)
	now := time.Now()

	g.mu.Lock()
	if _, ok := g.labels[key]; !ok {
		g.labels[key] = copyLabels(labels)
	}
	g.values[key] = value
	point := Point{Timestamp: now, Value: value, Labels: g.labels[key]}
	g.points = append(g.points, point)
	g.mu.Unlock()

	g.collector.recorded(g.name, point)
}

// Inc adds delta to the current value.
func (g *Gauge) Inc(delta float64, labels map[string]string) {
	g.add(delta, labels)
}

// Dec subtracts delta from the current value.
func (g *Gauge) Dec(delta float64, labels map[string]string) {
	g.add(-delta, labels)
}

// add applies a delta to the current value under a single lock so
// concurrent Inc/Dec calls never lose updates.
func (g *Gauge) add(delta float64, labels map[string]string) {
	if !g.collector.enabled() {
		return
	}
	key := labelKey(labels)
	now := time.Now()

	g.mu.Lock()
	if _, ok := g.labels[key]; !ok {
		g.labels[key] = copyLabels(labels)
	}
	g.values[key] += delta
	point := Point{Timestamp: now, Value: g.values[key], Labels: g.labels[key]}
	g.points = append(g.points, point)
	g.mu.Unlock()

	g.collector.recorded(g.name, point)
}

// Value returns the current value for a label set.
func (g *Gauge) Value(labels map[string]string) float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.values[labelKey(labels)]
}

// Cardinality returns the number of distinct label sets observed.
func (g *Gauge) Cardinality() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.values)
}

func (g *Gauge) snapshot() Data {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Data{
		Name:        g.name,
		Type:        TypeGauge,
		Unit:        g.unit,
		Description: g.description,
		Points:      append([]Point(nil), g.points...),
		Resource:    g.collector.res,
	}
}

func (g *Gauge) current() []Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Point, 0, len(g.values))
	for key, v := range g.values {
		out = append(out, Point{Value: v, Labels: g.labels[key]})
	}
	return out
}

func (g *Gauge) prune(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	kept, removed := prunePoints(g.points, cutoff)
	g.points = kept
	return removed
}

func (g *Gauge) reset() {
	g.mu.Lock()
	g.values = make(map[string]float64)
	g.labels = make(map[string]map[string]string)
	g.points = nil
	g.mu.Unlock()
}
