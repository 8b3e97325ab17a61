// Package logging implements the trace-correlated structured log store:
// leveled records with a bounded buffer, conjunctive querying, retention
// sweeps and NDJSON export. Records below the configured severity floor
// are dropped at the door.
package logging
