// Package component defines the lifecycle contract shared by the
// pipeline subsystems (tracer, metrics collector, structured logger)
// and a registry that starts them in order and stops them in reverse.
package component
