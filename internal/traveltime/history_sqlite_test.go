package traveltime

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// setupHistoryTestDB creates an in-memory SQLite database with the
// traveltime_readings table.
func setupHistoryTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE traveltime_readings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sensor_id TEXT NOT NULL,
			cycle_id TEXT NOT NULL DEFAULT '',
			duration_minutes REAL NOT NULL,
			distance REAL NOT NULL,
			units TEXT NOT NULL DEFAULT 'metric',
			route TEXT NOT NULL DEFAULT '',
			origin TEXT NOT NULL DEFAULT '',
			destination TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now'))
		) STRICT;
		CREATE INDEX idx_traveltime_readings_sensor ON traveltime_readings(sensor_id, created_at DESC);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		t.Fatalf("failed to create test schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestRecordReading(t *testing.T) {
	db := setupHistoryTestDB(t)
	repo := NewSQLiteHistoryRepository(db)
	ctx := context.Background()

	reading := Reading{
		SensorID:        "commute",
		CycleID:         "cycle-1",
		DurationMinutes: 23.4,
		Distance:        18.2,
		Units:           UnitsImperial,
		Route:           "A14",
		Origin:          "52.2,0.12",
		Destination:     "Cambridge",
		CreatedAt:       time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	if err := repo.RecordReading(ctx, reading); err != nil {
		t.Fatalf("RecordReading() error = %v", err)
	}

	readings, err := repo.GetHistory(ctx, "commute", 10)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(readings) != 1 {
		t.Fatalf("readings length = %d, want 1", len(readings))
	}

	got := readings[0]
	if got.ID == 0 {
		t.Error("ID = 0, want assigned id")
	}
	got.ID = 0
	if got != reading {
		t.Errorf("reading = %+v, want %+v", got, reading)
	}
}

func TestRecordReading_RequiresSensorID(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupHistoryTestDB(t))

	if err := repo.RecordReading(context.Background(), Reading{}); err == nil {
		t.Error("RecordReading() expected error for empty sensor id")
	}
}

func TestGetHistory_OrderAndLimit(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupHistoryTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		if err := repo.RecordReading(ctx, Reading{
			SensorID:        "commute",
			DurationMinutes: float64(i),
			CreatedAt:       base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("RecordReading() error = %v", err)
		}
	}
	if err := repo.RecordReading(ctx, Reading{SensorID: "other", CreatedAt: base}); err != nil {
		t.Fatalf("RecordReading() error = %v", err)
	}

	readings, err := repo.GetHistory(ctx, "commute", 3)
	if err != nil {
		t.Fatalf("GetHistory() error = %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("readings length = %d, want 3", len(readings))
	}
	for i, want := range []float64{4, 3, 2} {
		if readings[i].DurationMinutes != want {
			t.Errorf("readings[%d].DurationMinutes = %v, want %v", i, readings[i].DurationMinutes, want)
		}
	}

	if _, err := repo.GetHistory(ctx, "", 10); err == nil {
		t.Error("GetHistory() expected error for empty sensor id")
	}
}

func TestPruneHistory(t *testing.T) {
	repo := NewSQLiteHistoryRepository(setupHistoryTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	_ = repo.RecordReading(ctx, Reading{SensorID: "s", CreatedAt: now.Add(-48 * time.Hour)})
	_ = repo.RecordReading(ctx, Reading{SensorID: "s", CreatedAt: now.Add(-time.Minute)})

	deleted, err := repo.PruneHistory(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneHistory() error = %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if _, err := repo.PruneHistory(ctx, 0); err == nil {
		t.Error("PruneHistory(0) expected error")
	}
}
