package logging

import "strings"

// Severity is the ordinal log level: TRACE < DEBUG < INFO < WARN <
// ERROR < FATAL.
type Severity int8

const (
	SeverityTrace Severity = iota
	SeverityDebug
	SeverityInfo
	SeverityWarn
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

// String returns the canonical upper-case name.
func (s Severity) String() string {
	if s < SeverityTrace || s > SeverityFatal {
		return "INFO"
	}
	return severityNames[s]
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	*s = ParseSeverity(string(text))
	return nil
}

// ParseSeverity maps a case-insensitive name to a Severity. Unknown
// names default to INFO.
func ParseSeverity(name string) Severity {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "TRACE":
		return SeverityTrace
	case "DEBUG":
		return SeverityDebug
	case "WARN", "WARNING":
		return SeverityWarn
	case "ERROR":
		return SeverityError
	case "FATAL":
		return SeverityFatal
	default:
		return SeverityInfo
	}
}
