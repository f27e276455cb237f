package entity

import "errors"

var (
	// ErrEntityNotFound is returned when an entity is not tracked.
	ErrEntityNotFound = errors.New("entity not found")

	// ErrInvalidEntityID is returned for identifiers that are not of the
	// form domain.object_id.
	ErrInvalidEntityID = errors.New("invalid entity id")
)
