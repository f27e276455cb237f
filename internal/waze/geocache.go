package waze

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcloughlin/geohash"
)

const (
	// DefaultGeocodeTTL is how long an address lookup stays cached.
	DefaultGeocodeTTL = 24 * time.Hour

	// geohashPrecision 7 is a cell of roughly 150m, enough to tell apart
	// lookups that landed on different streets.
	geohashPrecision = 7
)

// GeocodeCache stores address lookups per region.
type GeocodeCache interface {
	// Get returns the cached coordinates, or ok=false when there is no
	// unexpired entry.
	Get(ctx context.Context, region, address string) (coords Coordinates, ok bool, err error)

	// Put stores coordinates for an address.
	Put(ctx context.Context, region, address string, coords Coordinates) error
}

// SQLiteGeocodeCache implements GeocodeCache on the geocode_cache table.
type SQLiteGeocodeCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteGeocodeCache creates a cache whose entries expire after ttl.
// A non-positive ttl means DefaultGeocodeTTL.
func NewSQLiteGeocodeCache(db *sql.DB, ttl time.Duration) *SQLiteGeocodeCache {
	if ttl <= 0 {
		ttl = DefaultGeocodeTTL
	}
	return &SQLiteGeocodeCache{db: db, ttl: ttl, now: time.Now}
}

// Get implements GeocodeCache.
func (c *SQLiteGeocodeCache) Get(ctx context.Context, region, address string) (Coordinates, bool, error) {
	var coords Coordinates
	err := c.db.QueryRowContext(ctx,
		`SELECT lat, lon FROM geocode_cache
		 WHERE region = ? AND address = ? AND expires_at > ?`,
		region,
		cacheKey(address),
		c.now().UTC().Format(time.RFC3339),
	).Scan(&coords.Lat, &coords.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return Coordinates{}, false, nil
	}
	if err != nil {
		return Coordinates{}, false, fmt.Errorf("querying geocode cache: %w", err)
	}
	return coords, true, nil
}

// Put implements GeocodeCache.
func (c *SQLiteGeocodeCache) Put(ctx context.Context, region, address string, coords Coordinates) error {
	now := c.now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO geocode_cache (region, address, lat, lon, geohash, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(region, address) DO UPDATE SET
		   lat = excluded.lat,
		   lon = excluded.lon,
		   geohash = excluded.geohash,
		   created_at = excluded.created_at,
		   expires_at = excluded.expires_at`,
		region,
		cacheKey(address),
		coords.Lat,
		coords.Lon,
		geohash.EncodeWithPrecision(coords.Lat, coords.Lon, geohashPrecision),
		now.Format(time.RFC3339),
		now.Add(c.ttl).Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("storing geocode cache entry: %w", err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (c *SQLiteGeocodeCache) Purge(ctx context.Context) (int64, error) {
	result, err := c.db.ExecContext(ctx,
		"DELETE FROM geocode_cache WHERE expires_at <= ?",
		c.now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("purging geocode cache: %w", err)
	}
	return result.RowsAffected()
}

func cacheKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}
