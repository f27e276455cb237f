package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/config"
)

// fakeInflux answers pings and records write bodies.
func fakeInflux(t *testing.T, healthy bool) (*httptest.Server, <-chan string) {
	t.Helper()
	writes := make(chan string, 10)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			if !healthy {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			body, _ := io.ReadAll(r.Body)
			writes <- string(body)
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, writes
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "traveltime",
		BatchSize:     10,
		FlushInterval: 1,
	}
}

func TestConnect_Disabled(t *testing.T) {
	client, err := Connect(context.Background(), config.InfluxDBConfig{})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
	if client != nil {
		t.Error("Connect() returned a client while disabled")
	}
}

func TestConnect_Unhealthy(t *testing.T) {
	srv, _ := fakeInflux(t, false)

	_, err := Connect(context.Background(), testConfig(srv.URL))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteTravelTime(t *testing.T) {
	srv, writes := fakeInflux(t, true)

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteTravelTime(TravelTimePoint{
		SensorID:        "commute",
		Route:           "A406",
		Units:           "metric",
		Region:          "EU",
		OriginCell:      "gcpvj0d",
		DurationMinutes: 24.5,
		Distance:        13.2,
		Time:            time.Unix(1700000000, 0),
	})
	client.Flush()

	select {
	case body := <-writes:
		for _, want := range []string{
			"travel_time,",
			"sensor_id=commute",
			"origin_cell=gcpvj0d",
			"duration_minutes=24.5",
			"distance=13.2",
		} {
			if !strings.Contains(body, want) {
				t.Errorf("line protocol %q missing %q", body, want)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for write")
	}
}

func TestClose_StopsWrites(t *testing.T) {
	srv, _ := fakeInflux(t, true)

	client, err := Connect(context.Background(), testConfig(srv.URL))
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after Close")
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}

	// No-ops after Close.
	client.WriteTravelTime(TravelTimePoint{SensorID: "commute"})
	client.Flush()
	if err := client.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestNewTravelTimePoint_OmitsEmptyTags(t *testing.T) {
	p := newTravelTimePoint(TravelTimePoint{
		SensorID:        "school",
		Units:           "imperial",
		DurationMinutes: 12,
		Distance:        4.1,
		Time:            time.Unix(1700000000, 0),
	})

	line := write.PointToLineProtocol(p, time.Second)
	if strings.Contains(line, "route=") || strings.Contains(line, "origin_cell=") {
		t.Errorf("empty tags written: %q", line)
	}
	if !strings.HasPrefix(line, "travel_time,sensor_id=school,units=imperial ") {
		t.Errorf("line = %q", line)
	}
	if !strings.HasSuffix(strings.TrimSpace(line), " 1700000000") {
		t.Errorf("timestamp missing from %q", line)
	}
}
