package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/kbukum/obskit/resource"
)

// Type classifies a metric instrument.
type Type string

const (
	TypeCounter   Type = "counter"
	TypeGauge     Type = "gauge"
	TypeHistogram Type = "histogram"
	TypeSummary   Type = "summary"
)

// Point is a single recorded sample.
type Point struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
}

// Buckets holds the cumulative histogram state for one label set.
// The counts slice is always one longer than boundaries; the final
// element is the +Inf overflow bucket.
type Buckets struct {
	Boundaries []float64 `json:"boundaries"`
	Counts     []uint64  `json:"counts"`
	Sum        float64   `json:"sum"`
	Count      uint64    `json:"count"`
	Min        float64   `json:"min,omitempty"`
	Max        float64   `json:"max,omitempty"`
}

// Data is a point-in-time snapshot of one metric.
type Data struct {
	Name        string             `json:"name"`
	Type        Type               `json:"type"`
	Unit        string             `json:"unit,omitempty"`
	Description string             `json:"description,omitempty"`
	Points      []Point            `json:"points"`
	Histogram   *Buckets           `json:"histogram,omitempty"`
	Resource    *resource.Resource `json:"resource,omitempty"`
}

// DefaultBuckets are the default histogram boundaries in milliseconds.
var DefaultBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// labelKey produces a canonical, order-independent encoding of a label
// set so identical sets always compare equal regardless of insertion
// order.
func labelKey(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
	}
	return b.String()
}

// labelsSubset reports whether every pair in want is present in got.
func labelsSubset(want, got map[string]string) bool {
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func copyLabels(labels map[string]string) map[string]string {
	if len(labels) == 0 {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
