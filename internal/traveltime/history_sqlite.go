package traveltime

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// SQLiteHistoryRepository implements HistoryRepository on the
// traveltime_readings table.
type SQLiteHistoryRepository struct {
	db *sql.DB
}

// NewSQLiteHistoryRepository creates a history repository on an open
// database.
//
// Parameters:
//   - db: Open SQLite connection used for queries
//
// Returns:
//   - *SQLiteHistoryRepository: Repository instance ready for use
func NewSQLiteHistoryRepository(db *sql.DB) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{db: db}
}

// RecordReading inserts a reading. A zero CreatedAt is stamped with the
// current time.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - reading: Reading to persist; SensorID is required
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteHistoryRepository) RecordReading(ctx context.Context, reading Reading) error {
	if reading.SensorID == "" {
		return fmt.Errorf("sensor id is required")
	}
	if reading.Units == "" {
		reading.Units = UnitsMetric
	}
	createdAt := reading.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO traveltime_readings
		 (sensor_id, cycle_id, duration_minutes, distance, units, route, origin, destination, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reading.SensorID,
		reading.CycleID,
		reading.DurationMinutes,
		reading.Distance,
		string(reading.Units),
		reading.Route,
		reading.Origin,
		reading.Destination,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting reading: %w", err)
	}

	return nil
}

// GetHistory returns recent readings for a sensor, newest first.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - sensorID: Sensor identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Reading: Readings ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteHistoryRepository) GetHistory(ctx context.Context, sensorID string, limit int) ([]Reading, error) {
	if sensorID == "" {
		return nil, fmt.Errorf("sensor id is required")
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sensor_id, cycle_id, duration_minutes, distance, units, route, origin, destination, created_at
		 FROM traveltime_readings
		 WHERE sensor_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		sensorID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying readings: %w", err)
	}
	defer rows.Close()

	readings := make([]Reading, 0, limit)
	for rows.Next() {
		var reading Reading
		var units, createdAt string

		if err := rows.Scan(
			&reading.ID,
			&reading.SensorID,
			&reading.CycleID,
			&reading.DurationMinutes,
			&reading.Distance,
			&units,
			&reading.Route,
			&reading.Origin,
			&reading.Destination,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning reading: %w", err)
		}

		reading.Units = Units(units)
		timestamp, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		reading.CreatedAt = timestamp

		readings = append(readings, reading)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating readings: %w", err)
	}

	return readings, nil
}

// PruneHistory deletes readings older than olderThan.
func (r *SQLiteHistoryRepository) PruneHistory(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format(time.RFC3339)
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM traveltime_readings WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting readings: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}
