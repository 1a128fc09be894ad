package adapter

import (
	"errors"
	"fmt"
)

var (
	// ErrVersionConflict signals that the server holds a different version
	// of the entity. Not a failure; routed to the conflict resolver.
	ErrVersionConflict = errors.New("version conflict")

	// ErrValidation marks a permanently rejected payload (HTTP 400/422).
	ErrValidation = errors.New("entity validation failed")

	// ErrNetwork marks a transport-level failure before any HTTP status
	// was received. Always retryable.
	ErrNetwork = errors.New("network error")
)

// ServerError carries the HTTP status of a failed sync call. It implements
// the retry package's StatusCoder so the executor can classify it.
type ServerError struct {
	Code int
	Body string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server error: http %d", e.Code)
	}
	return fmt.Sprintf("server error: http %d: %s", e.Code, e.Body)
}

// StatusCode returns the HTTP status associated with the error.
func (e *ServerError) StatusCode() int { return e.Code }
