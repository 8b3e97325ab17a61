// Package logger provides the operational zerolog-based logger used by
// the observability pipeline itself (lifecycle, sweeps, scrape server).
//
// It is distinct from the logging package: logger writes the pipeline's
// own diagnostics to the console, while logging stores the instrumented
// application's structured records for querying and export.
package logger
