package waze

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func setupGeocacheTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	schema := `
		CREATE TABLE geocode_cache (
			region TEXT NOT NULL,
			address TEXT NOT NULL,
			lat REAL NOT NULL,
			lon REAL NOT NULL,
			geohash TEXT NOT NULL,
			created_at TEXT NOT NULL,
			expires_at TEXT NOT NULL,
			PRIMARY KEY (region, address)
		) STRICT;
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

func TestSQLiteGeocodeCache_PutGet(t *testing.T) {
	db := setupGeocacheTestDB(t)
	cache := NewSQLiteGeocodeCache(db, time.Hour)
	ctx := context.Background()
	coords := Coordinates{Lat: 52.2053, Lon: 0.1218}

	if err := cache.Put(ctx, "EU", "Cambridge,  UK", coords); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, ok, err := cache.Get(ctx, "EU", "cambridge, uk")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok || got != coords {
		t.Errorf("Get() = %+v, %v, want %+v, true", got, ok, coords)
	}

	if _, ok, _ := cache.Get(ctx, "US", "Cambridge, UK"); ok {
		t.Error("Get() hit for a different region")
	}

	var hash string
	if err := db.QueryRow("SELECT geohash FROM geocode_cache").Scan(&hash); err != nil {
		t.Fatalf("reading geohash: %v", err)
	}
	if len(hash) != geohashPrecision || hash[:3] != "u12" {
		t.Errorf("geohash = %q, want 7 chars in cell u12", hash)
	}
}

func TestSQLiteGeocodeCache_Expiry(t *testing.T) {
	db := setupGeocacheTestDB(t)
	cache := NewSQLiteGeocodeCache(db, time.Hour)
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	if err := cache.Put(ctx, "EU", "Paris", Coordinates{Lat: 48.85, Lon: 2.35}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	now = now.Add(2 * time.Hour)
	if _, ok, _ := cache.Get(ctx, "EU", "Paris"); ok {
		t.Error("Get() returned an expired entry")
	}

	removed, err := cache.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("Purge() removed %d, want 1", removed)
	}
}
