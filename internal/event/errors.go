package event

import "errors"

// Sentinel errors for event construction.
var (
	// ErrInvalidEvent is returned when an event is missing a name.
	ErrInvalidEvent = errors.New("invalid event")

	// ErrInvalidType is returned when an event type is empty or malformed.
	ErrInvalidType = errors.New("invalid event type")

	// ErrInvalidSource is returned when an event source is empty or malformed.
	ErrInvalidSource = errors.New("invalid event source")
)
