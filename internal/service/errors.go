package service

import "errors"

var (
	// ErrUnknownStrategy is returned when Resolve receives an override that
	// is not one of the supported resolution strategies.
	ErrUnknownStrategy = errors.New("unknown resolution strategy")

	// ErrNoPayload is returned when an entity without an id is enqueued.
	ErrNoPayload = errors.New("entity id is required")
)
