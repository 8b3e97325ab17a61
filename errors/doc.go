// Package errors provides structured error types with machine-readable
// codes for the observability pipeline's query boundary.
package errors
