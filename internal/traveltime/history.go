package traveltime

import (
	"context"
	"time"
)

// Reading is one committed travel-time result as stored in history.
type Reading struct {
	// ID is the auto-incremented primary key for the history row.
	ID int64 `json:"id"`

	// SensorID identifies the sensor that produced the reading.
	SensorID string `json:"sensor_id"`

	// CycleID is the refresh cycle that committed the reading.
	CycleID string `json:"cycle_id"`

	DurationMinutes float64 `json:"duration"`
	Distance        float64 `json:"distance"`
	Units           Units   `json:"units"`
	Route           string  `json:"route"`
	Origin          string  `json:"origin"`
	Destination     string  `json:"destination"`

	// CreatedAt is the time the reading was recorded (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// ReadingFromResult converts a committed result into a history reading.
func ReadingFromResult(sensorID string, result Result) Reading {
	return Reading{
		SensorID:        sensorID,
		CycleID:         result.CycleID,
		DurationMinutes: result.DurationMinutes,
		Distance:        result.Distance,
		Units:           result.Units,
		Route:           result.Route,
		Origin:          result.Origin,
		Destination:     result.Destination,
		CreatedAt:       result.UpdatedAt,
	}
}

// HistoryRepository stores and retrieves committed readings.
//
// Implementations must be thread-safe and use UTC timestamps.
type HistoryRepository interface {
	// RecordReading persists a reading.
	RecordReading(ctx context.Context, reading Reading) error

	// GetHistory returns the most recent readings of a sensor, newest first.
	// The limit is clamped by the implementation.
	GetHistory(ctx context.Context, sensorID string, limit int) ([]Reading, error)

	// PruneHistory deletes readings older than the given age and returns the
	// number of rows removed.
	PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error)
}
