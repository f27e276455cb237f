package waze

import "errors"

var (
	// ErrRouting is returned when the routing service fails or reports an
	// error for the request.
	ErrRouting = errors.New("waze routing error")

	// ErrMalformedResponse is returned when a response cannot be decoded or
	// lacks the keys a route summary is built from.
	ErrMalformedResponse = errors.New("waze malformed response")

	// ErrUnsupportedRegion is returned for regions the service has no
	// servers for.
	ErrUnsupportedRegion = errors.New("waze region not supported")
)
