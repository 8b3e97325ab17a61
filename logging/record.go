package logging

import (
	"time"

	"github.com/kbukum/obskit/resource"
)

// Record is a single stored log entry. Records are append-only until
// evicted by the retention sweep or Clear.
type Record struct {
	Timestamp  time.Time          `json:"timestamp"`
	Severity   Severity           `json:"severity"`
	Body       string             `json:"body"`
	Attributes map[string]any     `json:"attributes,omitempty"`
	TraceID    string             `json:"trace_id,omitempty"`
	SpanID     string             `json:"span_id,omitempty"`
	Resource   *resource.Resource `json:"resource,omitempty"`
}
