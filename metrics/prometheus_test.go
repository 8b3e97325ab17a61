package metrics

import (
	"strings"
	"testing"
)

func TestPrometheusCounterLine(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("requests_total").Inc(map[string]string{"method": "GET"})

	out := c.ToPrometheus()
	if !strings.Contains(out, "# TYPE requests_total counter\n") {
		t.Error("expected TYPE line for requests_total")
	}
	if !strings.Contains(out, `requests_total{method="GET"} 1`+"\n") {
		t.Errorf("expected exact sample line, got:\n%s", out)
	}
}

func TestPrometheusHelpLine(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("orders_total", WithDescription("Total orders placed")).Inc(nil)

	out := c.ToPrometheus()
	if !strings.Contains(out, "# HELP orders_total Total orders placed\n") {
		t.Errorf("expected HELP line, got:\n%s", out)
	}
}

func TestPrometheusNoLabelsOmitsBraces(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("plain_total").Inc(nil)

	out := c.ToPrometheus()
	if !strings.Contains(out, "plain_total 1\n") {
		t.Errorf("expected bare sample line without braces, got:\n%s", out)
	}
}

func TestPrometheusGauge(t *testing.T) {
	c := newTestCollector(t)
	c.Gauge("queue_size").Set(42, map[string]string{"queue": "ingest"})

	out := c.ToPrometheus()
	if !strings.Contains(out, "# TYPE queue_size gauge\n") {
		t.Error("expected TYPE line for queue_size")
	}
	if !strings.Contains(out, `queue_size{queue="ingest"} 42`+"\n") {
		t.Errorf("expected gauge sample line, got:\n%s", out)
	}
}

func TestPrometheusGaugeShowsCurrentValue(t *testing.T) {
	c := newTestCollector(t)
	g := c.Gauge("temperature")
	g.Set(20, nil)
	g.Set(25, nil)

	out := c.ToPrometheus()
	if !strings.Contains(out, "temperature 25\n") {
		t.Errorf("expected only the current value, got:\n%s", out)
	}
	if strings.Contains(out, "temperature 20\n") {
		t.Error("expected the stale value to be absent")
	}
}

func TestPrometheusHistogram(t *testing.T) {
	c := newTestCollector(t)
	h := c.Histogram("latency_ms", WithBuckets(10, 50, 100))
	for _, v := range []float64{5, 15, 30, 120} {
		h.Observe(v, nil)
	}

	out := c.ToPrometheus()
	want := []string{
		"# TYPE latency_ms histogram\n",
		`latency_ms_bucket{le="10"} 1` + "\n",
		`latency_ms_bucket{le="50"} 3` + "\n",
		`latency_ms_bucket{le="100"} 3` + "\n",
		`latency_ms_bucket{le="+Inf"} 4` + "\n",
		"latency_ms_sum 170\n",
		"latency_ms_count 4\n",
	}
	for _, line := range want {
		if !strings.Contains(out, line) {
			t.Errorf("expected line %q, got:\n%s", strings.TrimRight(line, "\n"), out)
		}
	}
}

func TestPrometheusSortedLabels(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("requests_total").Inc(map[string]string{"path": "/users", "method": "GET"})

	out := c.ToPrometheus()
	if !strings.Contains(out, `requests_total{method="GET",path="/users"} 1`+"\n") {
		t.Errorf("expected labels sorted by key, got:\n%s", out)
	}
}

func TestPrometheusEscaping(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("weird_total").Inc(map[string]string{"q": `a"b\c` + "\n"})

	out := c.ToPrometheus()
	if !strings.Contains(out, `weird_total{q="a\"b\\c\n"} 1`+"\n") {
		t.Errorf("expected escaped label value, got:\n%s", out)
	}
}

func TestPrometheusMetricsOrderedByName(t *testing.T) {
	c := newTestCollector(t)
	c.Counter("zzz_total").Inc(nil)
	c.Counter("aaa_total").Inc(nil)

	out := c.ToPrometheus()
	first := strings.Index(out, "# TYPE aaa_total")
	second := strings.Index(out, "# TYPE zzz_total")
	if first == -1 || second == -1 || first > second {
		t.Errorf("expected metric families ordered by name, got:\n%s", out)
	}
}

func TestPrometheusMultipleLabelSetsOrdered(t *testing.T) {
	c := newTestCollector(t)
	counter := c.Counter("requests_total")
	counter.Inc(map[string]string{"method": "POST"})
	counter.Inc(map[string]string{"method": "GET"})

	out := c.ToPrometheus()
	get := strings.Index(out, `requests_total{method="GET"}`)
	post := strings.Index(out, `requests_total{method="POST"}`)
	if get == -1 || post == -1 || get > post {
		t.Errorf("expected samples ordered by canonical label key, got:\n%s", out)
	}
}
