package traveltime

import (
	"fmt"
	"strings"
	"time"
)

// Units selects the distance unit a sensor publishes.
type Units string

// Supported unit systems.
const (
	UnitsMetric   Units = "metric"
	UnitsImperial Units = "imperial"
)

// Supported vehicle types. The routing engine expects an empty vehicle type
// for cars.
const (
	VehicleCar        = "car"
	VehicleTaxi       = "taxi"
	VehicleMotorcycle = "motorcycle"
)

// Supported routing regions. NA is an alias the engine maps onto US.
var Regions = []string{"US", "NA", "EU", "IL", "AU"}

// VehicleTypes lists the vehicle types accepted in configuration.
var VehicleTypes = []string{VehicleCar, VehicleTaxi, VehicleMotorcycle}

const (
	// kmPerMile is the divisor applied to kilometres for imperial output.
	kmPerMile = 1.609

	// DefaultRequestTimeout bounds a single routing call.
	DefaultRequestTimeout = 30 * time.Second
)

// Options is the immutable configuration of one sensor. A copy is passed
// into every refresh so an update arriving mid-cycle only affects the next
// cycle.
type Options struct {
	// Origin and Destination are either literal locations ("lat,long" or
	// free text) or entity references such as "person.alice".
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	Region                 string `json:"region"`
	Realtime               bool   `json:"realtime"`
	VehicleType            string `json:"vehicle_type"`
	AvoidTollRoads         bool   `json:"avoid_toll_roads"`
	AvoidSubscriptionRoads bool   `json:"avoid_subscription_roads"`
	AvoidFerries           bool   `json:"avoid_ferries"`
	Units                  Units  `json:"units"`

	// IncludeFilter and ExcludeFilter are case-insensitive substrings
	// matched against route names. Empty means unset.
	IncludeFilter string `json:"incl_filter,omitempty"`
	ExcludeFilter string `json:"excl_filter,omitempty"`

	// Timeout bounds the routing call. Zero means DefaultRequestTimeout.
	Timeout time.Duration `json:"-"`
}

// DefaultOptions returns the options a sensor gets when only the endpoints
// and region are configured.
func DefaultOptions() Options {
	return Options{
		Realtime:    true,
		VehicleType: VehicleCar,
		Units:       UnitsMetric,
		Timeout:     DefaultRequestTimeout,
	}
}

// Validate checks the fields a refresh depends on.
func (o Options) Validate() error {
	var errs []string

	if strings.TrimSpace(o.Origin) == "" {
		errs = append(errs, "origin is required")
	}
	if strings.TrimSpace(o.Destination) == "" {
		errs = append(errs, "destination is required")
	}
	if !containsFold(Regions, o.Region) {
		errs = append(errs, fmt.Sprintf("region %q is not one of %s", o.Region, strings.Join(Regions, ", ")))
	}
	if o.VehicleType != "" && !containsFold(VehicleTypes, o.VehicleType) {
		errs = append(errs, fmt.Sprintf("vehicle type %q is not one of %s", o.VehicleType, strings.Join(VehicleTypes, ", ")))
	}
	switch o.Units {
	case "", UnitsMetric, UnitsImperial:
	default:
		errs = append(errs, fmt.Sprintf("units %q must be metric or imperial", o.Units))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(errs, "; "))
	}
	return nil
}

// RequestTimeout returns the routing call deadline for these options.
func (o Options) RequestTimeout() time.Duration {
	if o.Timeout <= 0 {
		return DefaultRequestTimeout
	}
	return o.Timeout
}

// RouteRequest builds the routing call for already-resolved endpoints.
func (o Options) RouteRequest(origin, destination string) RouteRequest {
	return RouteRequest{
		Origin:                 origin,
		Destination:            destination,
		Region:                 strings.ToUpper(o.Region),
		VehicleType:            NormalizeVehicleType(o.VehicleType),
		Realtime:               o.Realtime,
		AvoidTollRoads:         o.AvoidTollRoads,
		AvoidSubscriptionRoads: o.AvoidSubscriptionRoads,
		AvoidFerries:           o.AvoidFerries,
	}
}

// RouteRequest is one call to the routing engine.
type RouteRequest struct {
	Origin                 string
	Destination            string
	Region                 string
	VehicleType            string
	Realtime               bool
	AvoidTollRoads         bool
	AvoidSubscriptionRoads bool
	AvoidFerries           bool
}

// RouteCandidate is one named path returned by the routing engine.
// Candidates are kept in the order the engine returned them; the first one
// is the engine's preferred route.
type RouteCandidate struct {
	Name            string  `json:"name"`
	DurationMinutes float64 `json:"duration_minutes"`
	DistanceKM      float64 `json:"distance_km"`
}

// Result is the last committed reading of a sensor.
type Result struct {
	DurationMinutes float64   `json:"duration"`
	Distance        float64   `json:"distance"`
	Units           Units     `json:"units"`
	Route           string    `json:"route"`
	Origin          string    `json:"origin"`
	Destination     string    `json:"destination"`
	CycleID         string    `json:"cycle_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Outcome classifies how a refresh cycle ended.
type Outcome string

// Refresh outcomes.
const (
	OutcomeUpdated  Outcome = "updated"
	OutcomeSkipped  Outcome = "skipped"
	OutcomeNoRoutes Outcome = "no_routes"
	OutcomeFailed   Outcome = "failed"
)

// Report describes one refresh cycle.
type Report struct {
	CycleID     string
	Outcome     Outcome
	Err         error
	Origin      string
	Destination string
	Candidates  []RouteCandidate
	Result      Result
	StartedAt   time.Time
	CallTime    time.Duration
}

// NormalizeVehicleType maps a configured vehicle type onto the value the
// routing engine expects: "" for cars, upper case for everything else.
func NormalizeVehicleType(vehicleType string) string {
	upper := strings.ToUpper(strings.TrimSpace(vehicleType))
	if upper == "CAR" {
		return ""
	}
	return upper
}

// ConvertDistance converts a distance in kilometres into the given unit
// system.
func ConvertDistance(km float64, units Units) float64 {
	if units == UnitsImperial {
		return km / kmPerMile
	}
	return km
}

// DistanceUnit returns the short unit label for the unit system.
func DistanceUnit(units Units) string {
	if units == UnitsImperial {
		return "mi"
	}
	return "km"
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}
