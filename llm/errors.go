package llm

import "errors"

var (
	// ErrUnknownProvider is returned when a Provider.Kind has no matching
	// dialect.
	ErrUnknownProvider = errors.New("llm: unknown provider kind")
	// ErrRequestInFlight is returned by SendMessage when the client is not
	// Idle or terminal (Success/Error).
	ErrRequestInFlight = errors.New("llm: request already in flight")
)
