// Package metrics implements a typed metrics registry: monotonic
// counters, gauges and bucketed histograms keyed by canonical label
// sets, with time-windowed querying, percentile estimation, bounded
// retention and Prometheus text exposition.
//
//	collector := metrics.NewCollector(cfg, res, log)
//	requests := collector.Counter("requests_total", metrics.WithDescription("Total requests"))
//	requests.Inc(map[string]string{"method": "GET"})
//
//	latency := collector.Histogram("request_duration_ms", metrics.WithUnit("ms"))
//	stop := latency.StartTimer(nil)
//	defer stop()
package metrics
