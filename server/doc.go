// Package server exposes the pipeline's read side over HTTP: the
// Prometheus scrape endpoint, health, and the trace/metric/log query
// APIs. It is a pull-based surface only; no exporter transport lives
// here.
package server
