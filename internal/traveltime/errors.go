package traveltime

import "errors"

// Domain-specific errors for travel-time refreshes.
var (
	// ErrEntityNotFound is returned when an endpoint names a tracked entity
	// that the state source does not know about.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrCircularReference is returned when entity states point at each
	// other and no location can be derived.
	ErrCircularReference = errors.New("circular entity reference")

	// ErrRoutingFailed marks errors reported by the routing engine itself
	// (transport, quota, no route between the endpoints).
	ErrRoutingFailed = errors.New("routing engine error")

	// ErrMalformedResponse marks responses that lack the keys a route
	// summary is built from.
	ErrMalformedResponse = errors.New("malformed routing response")

	// ErrInvalidOptions is returned by Options.Validate.
	ErrInvalidOptions = errors.New("invalid travel time options")
)
