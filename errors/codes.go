package errors

// ErrorCode is a machine-readable error code.
type ErrorCode string

const (
	// ErrCodeInvalidQuery indicates a malformed query parameter.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
	// ErrCodeInvalidPercentile indicates a percentile outside (0, 100].
	ErrCodeInvalidPercentile ErrorCode = "INVALID_PERCENTILE"
	// ErrCodeInvalidStep indicates a non-positive aggregation step.
	ErrCodeInvalidStep ErrorCode = "INVALID_STEP"
	// ErrCodeNotFound indicates a missing trace, metric or log resource.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeInvalidConfig indicates configuration that failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
	// ErrCodeInternal indicates an unexpected internal failure.
	ErrCodeInternal ErrorCode = "INTERNAL"
)
