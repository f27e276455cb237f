package traveltime

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Presentation constants of a travel-time sensor.
const (
	DefaultName       = "Waze Travel Time"
	Attribution       = "Powered by Waze"
	UnitOfMeasurement = "min"
	Icon              = "mdi:car"
)

// Attribute keys of the published state.
const (
	AttrAttribution = "attribution"
	AttrDuration    = "duration"
	AttrDistance    = "distance"
	AttrRoute       = "route"
	AttrOrigin      = "origin"
	AttrDestination = "destination"
)

// State is what a sensor publishes to the host. Value and Attributes are
// nil until the first successful refresh.
type State struct {
	SensorID    string         `json:"sensor_id"`
	Name        string         `json:"name"`
	Value       *int64         `json:"value"`
	Unit        string         `json:"unit_of_measurement"`
	Icon        string         `json:"icon"`
	Attributes  map[string]any `json:"attributes"`
	Phase       string         `json:"phase"`
	LastUpdated *time.Time     `json:"last_updated,omitempty"`
}

// Sensor is one travel-time entity. The bridge scheduler calls OnStart
// once and Refresh periodically; CurrentState may be read at any time.
type Sensor struct {
	id        string
	name      string
	refresher *Refresher
	opts      atomic.Pointer[Options]

	startOnce sync.Once
	started   atomic.Bool
}

// NewSensor creates a sensor. An empty name falls back to DefaultName.
func NewSensor(id, name string, opts Options, refresher *Refresher) *Sensor {
	if name == "" {
		name = DefaultName
	}
	s := &Sensor{
		id:        id,
		name:      name,
		refresher: refresher,
	}
	s.opts.Store(&opts)
	return s
}

// ID returns the sensor identifier.
func (s *Sensor) ID() string { return s.id }

// Name returns the display name.
func (s *Sensor) Name() string { return s.name }

// Started reports whether OnStart has run.
func (s *Sensor) Started() bool { return s.started.Load() }

// Options returns the options the next refresh will use.
func (s *Sensor) Options() Options {
	return *s.opts.Load()
}

// UpdateOptions replaces the options. A cycle already in flight keeps the
// options it started with.
func (s *Sensor) UpdateOptions(opts Options) {
	s.opts.Store(&opts)
}

// OnStart runs the eager first refresh. Later calls do nothing and return
// an empty report.
func (s *Sensor) OnStart(ctx context.Context) Report {
	var report Report
	s.startOnce.Do(func() {
		s.started.Store(true)
		report = s.Refresh(ctx)
	})
	return report
}

// Refresh runs one refresh cycle with the current options.
func (s *Sensor) Refresh(ctx context.Context) Report {
	return s.refresher.Refresh(ctx, s.Options())
}

// Snapshot returns the last committed reading.
func (s *Sensor) Snapshot() (Result, bool) {
	return s.refresher.Snapshot()
}

// CurrentState renders the last reading for publication. The value is the
// duration rounded half-to-even to whole minutes. The origin and
// destination attributes show the locations of the latest routing call,
// which may be newer than the reading after a failed cycle.
func (s *Sensor) CurrentState() State {
	state := State{
		SensorID: s.id,
		Name:     s.name,
		Unit:     UnitOfMeasurement,
		Icon:     Icon,
		Phase:    s.refresher.Phase(),
	}

	result, ok := s.refresher.Snapshot()
	if !ok {
		return state
	}

	origin, destination := s.refresher.Endpoints()
	value := int64(math.RoundToEven(result.DurationMinutes))
	updated := result.UpdatedAt
	state.Value = &value
	state.LastUpdated = &updated
	state.Attributes = map[string]any{
		AttrAttribution: Attribution,
		AttrDuration:    result.DurationMinutes,
		AttrDistance:    result.Distance,
		AttrRoute:       result.Route,
		AttrOrigin:      origin,
		AttrDestination: destination,
	}
	return state
}
