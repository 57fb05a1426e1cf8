package compliance

import "errors"

// Rejection causes. A Verdict's Err wraps exactly one of these when the run
// is not accepted.
var (
	ErrRecordNotFound        = errors.New("execution record not found")
	ErrInsufficientToolUsage = errors.New("insufficient tool usage")
	ErrMissingRequiredTool   = errors.New("missing required tool")
	ErrInsufficientOutput    = errors.New("insufficient output")
	ErrStoreUnavailable      = errors.New("execution store unavailable")
)
