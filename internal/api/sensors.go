package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-traveltime/internal/bridges/waze"
	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200

	// maxQueryParamLen limits path and query parameter length.
	maxQueryParamLen = 100
)

// sensorResponse is the API view of a sensor.
type sensorResponse struct {
	ID      string             `json:"id"`
	Name    string             `json:"name"`
	Started bool               `json:"started"`
	Options traveltime.Options `json:"options"`
	State   traveltime.State   `json:"state"`
}

func newSensorResponse(s *traveltime.Sensor) sensorResponse {
	return sensorResponse{
		ID:      s.ID(),
		Name:    s.Name(),
		Started: s.Started(),
		Options: s.Options(),
		State:   s.CurrentState(),
	}
}

// handleListSensors returns every sensor with its current state.
func (s *Server) handleListSensors(w http.ResponseWriter, _ *http.Request) {
	sensors := s.bridge.Sensors()
	out := make([]sensorResponse, 0, len(sensors))
	for _, sensor := range sensors {
		out = append(out, newSensorResponse(sensor))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensors": out,
		"count":   len(out),
	})
}

// handleGetSensor returns one sensor.
func (s *Server) handleGetSensor(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSensorResponse(sensor))
}

// handleGetSensorHistory returns committed readings of a sensor, newest
// first, optionally only those after ?since=.
func (s *Server) handleGetSensorHistory(w http.ResponseWriter, r *http.Request) {
	sensor, ok := s.lookupSensor(w, r)
	if !ok {
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		badRequest(w, r, err.Error())
		return
	}
	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		badRequest(w, r, "invalid since timestamp")
		return
	}

	if s.history == nil {
		writeError(w, r, http.StatusServiceUnavailable, codeUnavailable, "reading history unavailable")
		return
	}

	readings, err := s.history.GetHistory(r.Context(), sensor.ID(), limit)
	if err != nil {
		s.logger.Error("failed to load reading history", "sensor", sensor.ID(), "error", err)
		internalError(w, r, "failed to load reading history")
		return
	}

	if !since.IsZero() {
		filtered := readings[:0]
		for _, reading := range readings {
			if reading.CreatedAt.After(since) {
				filtered = append(filtered, reading)
			}
		}
		readings = filtered
	}
	if readings == nil {
		readings = []traveltime.Reading{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sensor_id": sensor.ID(),
		"history":   readings,
		"count":     len(readings),
	})
}

// handleRefreshSensor queues a refresh. The cycle runs asynchronously; its
// result shows up on the sensor's state.
func (s *Server) handleRefreshSensor(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		badRequest(w, r, "invalid sensor ID")
		return
	}

	if err := s.bridge.TriggerRefresh(id); err != nil {
		switch {
		case errors.Is(err, waze.ErrSensorNotFound):
			writeError(w, r, http.StatusNotFound, codeSensorNotFound, "sensor not found")
		case errors.Is(err, waze.ErrBridgeStopped):
			writeError(w, r, http.StatusServiceUnavailable, codeBridgeStopping, "bridge is stopping")
		default:
			internalError(w, r, "failed to queue refresh")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":    "queued",
		"sensor_id": id,
	})
}

func (s *Server) lookupSensor(w http.ResponseWriter, r *http.Request) (*traveltime.Sensor, bool) {
	id := chi.URLParam(r, "id")
	if id == "" || len(id) > maxQueryParamLen {
		badRequest(w, r, "invalid sensor ID")
		return nil, false
	}

	sensor, err := s.bridge.Sensor(id)
	if err != nil {
		if errors.Is(err, waze.ErrSensorNotFound) {
			writeError(w, r, http.StatusNotFound, codeSensorNotFound, "sensor not found")
			return nil, false
		}
		internalError(w, r, "failed to get sensor")
		return nil, false
	}
	return sensor, true
}

func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}
	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, raw)
}
