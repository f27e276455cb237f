package waze

import "errors"

// Errors returned by the bridge.
var (
	// ErrSensorNotFound is returned for an unknown sensor id.
	ErrSensorNotFound = errors.New("waze: sensor not found")

	// ErrUnknownAction is returned for a request action other than
	// refresh or get_state.
	ErrUnknownAction = errors.New("waze: unknown request action")

	// ErrInvalidRequestID is returned for a request id that contains MQTT
	// topic separators or wildcards.
	ErrInvalidRequestID = errors.New("waze: invalid request id")

	// ErrBridgeStopped is returned when a refresh is requested after Stop.
	ErrBridgeStopped = errors.New("waze: bridge stopped")
)
