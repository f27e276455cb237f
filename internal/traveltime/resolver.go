package traveltime

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// entityReferencePattern matches "domain.object_id" identifiers of tracked
// entities. It must match the whole endpoint string.
var entityReferencePattern = regexp.MustCompile(`^[a-z_]+\.[a-zA-Z0-9_]+$`)

// Attribute keys an entity uses to expose its position.
const (
	AttrLatitude     = "latitude"
	AttrLongitude    = "longitude"
	AttrFriendlyName = "friendly_name"
)

// States that carry no location.
const (
	stateUnknown     = "unknown"
	stateUnavailable = "unavailable"
)

// EntityState is a tracked entity as seen by the resolver.
type EntityState struct {
	EntityID   string
	State      string
	Attributes map[string]any
}

// StateSource gives the resolver read access to tracked entities.
type StateSource interface {
	// EntityState returns the entity or an error wrapping ErrEntityNotFound.
	EntityState(ctx context.Context, entityID string) (EntityState, error)

	// ZoneByName returns the zone whose friendly name equals name, or an
	// error wrapping ErrEntityNotFound.
	ZoneByName(ctx context.Context, name string) (EntityState, error)
}

// IsEntityReference reports whether the endpoint names a tracked entity
// rather than a literal location.
func IsEntityReference(endpoint string) bool {
	return entityReferencePattern.MatchString(endpoint)
}

// Resolver turns configured endpoints into location strings.
type Resolver struct {
	source StateSource
}

// NewResolver creates a Resolver reading entities from source.
func NewResolver(source StateSource) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the location string for a configured endpoint.
//
// Literal endpoints are returned unchanged. Entity references resolve to
// "lat,long" when the entity carries coordinates, to the coordinates of the
// zone the entity is in, to whatever another referenced entity resolves to,
// and otherwise to the entity's raw state. An entity without a usable
// state resolves to "".
func (r *Resolver) Resolve(ctx context.Context, endpoint string) (string, error) {
	if !IsEntityReference(endpoint) {
		return endpoint, nil
	}
	if r.source == nil {
		return "", fmt.Errorf("%w: %s", ErrEntityNotFound, endpoint)
	}
	return r.resolveEntity(ctx, endpoint, nil)
}

func (r *Resolver) resolveEntity(ctx context.Context, entityID string, visited []string) (string, error) {
	entity, err := r.source.EntityState(ctx, entityID)
	if err != nil {
		return "", err
	}

	if loc, ok := coordinatesOf(entity.Attributes); ok {
		return loc, nil
	}

	state := strings.TrimSpace(entity.State)
	if state == "" || state == stateUnknown || state == stateUnavailable {
		return "", nil
	}

	// A person or tracker in a zone reports the zone as its state.
	if zone, err := r.source.EntityState(ctx, "zone."+state); err == nil {
		if loc, ok := coordinatesOf(zone.Attributes); ok {
			return loc, nil
		}
	}
	if zone, err := r.source.ZoneByName(ctx, state); err == nil {
		if loc, ok := coordinatesOf(zone.Attributes); ok {
			return loc, nil
		}
	}

	visited = append(visited, entityID)
	if slices.Contains(visited, state) {
		return "", fmt.Errorf("%w: %s already checked", ErrCircularReference, state)
	}

	if IsEntityReference(state) {
		_, err := r.source.EntityState(ctx, state)
		switch {
		case err == nil:
			return r.resolveEntity(ctx, state, visited)
		case !errors.Is(err, ErrEntityNotFound):
			return "", err
		}
	}

	// Address, coordinates or anything else: the routing engine decides.
	return state, nil
}

// coordinatesOf formats the latitude/longitude attributes as "lat,long".
func coordinatesOf(attrs map[string]any) (string, bool) {
	lat, ok := floatAttr(attrs, AttrLatitude)
	if !ok {
		return "", false
	}
	lon, ok := floatAttr(attrs, AttrLongitude)
	if !ok {
		return "", false
	}
	return FormatCoordinates(lat, lon), true
}

// FormatCoordinates renders a coordinate pair the way endpoints are
// published: "lat,long" with the shortest exact decimal form. Whole degrees
// keep a ".0" so the routing engine reads the pair as coordinates.
func FormatCoordinates(lat, lon float64) string {
	return formatDegrees(lat) + "," + formatDegrees(lon)
}

func formatDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func floatAttr(attrs map[string]any, key string) (float64, bool) {
	switch v := attrs[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
