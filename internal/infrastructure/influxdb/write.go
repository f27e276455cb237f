package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementTravelTime is the measurement travel-time points are written to.
const MeasurementTravelTime = "travel_time"

// TravelTimePoint is one committed sensor reading.
type TravelTimePoint struct {
	SensorID string
	Route    string
	Units    string
	Region   string

	// OriginCell and DestinationCell are geohash cells of the resolved
	// endpoints. Empty when an endpoint was a free-text address.
	OriginCell      string
	DestinationCell string

	DurationMinutes float64
	Distance        float64
	Time            time.Time
}

// WriteTravelTime queues a travel-time point. The write is non-blocking;
// failures surface through SetOnError.
//
// Parameters:
//   - p: The reading; a zero Time is stamped with the current time
func (c *Client) WriteTravelTime(p TravelTimePoint) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newTravelTimePoint(p))
}

func newTravelTimePoint(p TravelTimePoint) *write.Point {
	tags := map[string]string{
		"sensor_id": p.SensorID,
		"units":     p.Units,
	}
	optionalTag(tags, "route", p.Route)
	optionalTag(tags, "region", p.Region)
	optionalTag(tags, "origin_cell", p.OriginCell)
	optionalTag(tags, "destination_cell", p.DestinationCell)

	ts := p.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	return write.NewPoint(
		MeasurementTravelTime,
		tags,
		map[string]any{
			"duration_minutes": p.DurationMinutes,
			"distance":         p.Distance,
		},
		ts,
	)
}

func optionalTag(tags map[string]string, key, value string) {
	if value != "" {
		tags[key] = value
	}
}

