package retry

import "errors"

var (
	// ErrAlreadyInProgress is returned immediately when an operation
	// sharing the caller-supplied idempotency key is still in flight.
	ErrAlreadyInProgress = errors.New("operation already in progress")

	// ErrCancelled marks a terminal cancellation. It is never counted as a
	// retryable failure and excludes the run from both success and failure
	// accounting.
	ErrCancelled = errors.New("operation cancelled")

	// ErrTimeout marks an attempt that exceeded the per-attempt deadline.
	// Timeouts are transient and retried.
	ErrTimeout = errors.New("operation timed out")
)

// StatusCoder is implemented by errors that carry an HTTP status code
// (e.g. the adapter's ServerError). The executor uses it for
// classification-driven retry decisions.
type StatusCoder interface {
	StatusCode() int
}
