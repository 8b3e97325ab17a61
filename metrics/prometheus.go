package metrics

import (
	"sort"
	"strconv"
	"strings"
)

// ToPrometheus renders every metric in the Prometheus text exposition
// format. Metrics are emitted in name order; counters and gauges emit
// one line per label set with the current value, histograms emit
// cumulative le buckets plus _sum and _count.
func (c *Collector) ToPrometheus() string {
	var b strings.Builder

	for _, name := range c.instrumentNames() {
		c.mu.RLock()
		counter := c.counters[name]
		gauge := c.gauges[name]
		histogram := c.histograms[name]
		c.mu.RUnlock()

		switch {
		case counter != nil:
			writeHeader(&b, name, TypeCounter, counter.description)
			writeSamples(&b, name, counter.current())
		case gauge != nil:
			writeHeader(&b, name, TypeGauge, gauge.description)
			writeSamples(&b, name, gauge.current())
		case histogram != nil:
			writeHeader(&b, name, TypeHistogram, histogram.description)
			writeHistogram(&b, name, histogram)
		}
	}
	return b.String()
}

func (c *Collector) instrumentNames() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.counters)+len(c.gauges)+len(c.histograms))
	for name := range c.counters {
		names = append(names, name)
	}
	for name := range c.gauges {
		names = append(names, name)
	}
	for name := range c.histograms {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}

func writeHeader(b *strings.Builder, name string, typ Type, description string) {
	if description != "" {
		b.WriteString("# HELP ")
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(escapeHelp(description))
		b.WriteByte('\n')
	}
	b.WriteString("# TYPE ")
	b.WriteString(name)
	b.WriteByte(' ')
	b.WriteString(string(typ))
	b.WriteByte('\n')
}

func writeSamples(b *strings.Builder, name string, points []Point) {
	// Stable output: order samples by their canonical label key.
	sort.Slice(points, func(i, j int) bool {
		return labelKey(points[i].Labels) < labelKey(points[j].Labels)
	})
	for _, p := range points {
		b.WriteString(name)
		writeLabels(b, p.Labels)
		b.WriteByte(' ')
		b.WriteString(formatValue(p.Value))
		b.WriteByte('\n')
	}
}

func writeHistogram(b *strings.Builder, name string, h *Histogram) {
	h.mu.Lock()
	agg := h.aggregateLocked()
	h.mu.Unlock()

	var cumulative uint64
	for i, bound := range agg.Boundaries {
		cumulative += agg.Counts[i]
		b.WriteString(name)
		b.WriteString(`_bucket{le="`)
		b.WriteString(formatValue(bound))
		b.WriteString(`"} `)
		b.WriteString(strconv.FormatUint(cumulative, 10))
		b.WriteByte('\n')
	}
	cumulative += agg.Counts[len(agg.Boundaries)]
	b.WriteString(name)
	b.WriteString(`_bucket{le="+Inf"} `)
	b.WriteString(strconv.FormatUint(cumulative, 10))
	b.WriteByte('\n')

	b.WriteString(name)
	b.WriteString("_sum ")
	b.WriteString(formatValue(agg.Sum))
	b.WriteByte('\n')

	b.WriteString(name)
	b.WriteString("_count ")
	b.WriteString(strconv.FormatUint(agg.Count, 10))
	b.WriteByte('\n')
}

// writeLabels renders {k="v",...}; braces are omitted entirely when the
// label set is empty.
func writeLabels(b *strings.Builder, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(escapeLabelValue(labels[k]))
		b.WriteByte('"')
	}
	b.WriteByte('}')
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// escapeLabelValue escapes backslash, double quote and newline per the
// exposition format grammar.
func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}

// escapeHelp escapes backslash and newline in HELP text.
func escapeHelp(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, "\n", `\n`)
	return v
}
