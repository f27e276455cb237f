package waze

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// Metrics holds the bridge's Prometheus collectors.
type Metrics struct {
	refreshTotal *prometheus.CounterVec
	travelTime   *prometheus.GaugeVec
	distance     *prometheus.GaugeVec
	callSeconds  *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "graylogic_waze_refresh_total",
				Help: "Refresh cycles by sensor and outcome (updated, skipped, no_routes, failed).",
			},
			[]string{"sensor", "outcome"},
		),
		travelTime: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graylogic_waze_travel_time_minutes",
				Help: "Travel time of the selected route in minutes.",
			},
			[]string{"sensor"},
		),
		distance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "graylogic_waze_distance",
				Help: "Distance of the selected route in the sensor's unit (km or mi).",
			},
			[]string{"sensor", "unit"},
		),
		callSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "graylogic_waze_routing_call_seconds",
				Help:    "Latency of routing engine calls.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"sensor"},
		),
	}

	for _, c := range []prometheus.Collector{m.refreshTotal, m.travelTime, m.distance, m.callSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one refresh cycle.
func (m *Metrics) Observe(sensorID string, report traveltime.Report) {
	if m == nil || report.Outcome == "" {
		return
	}

	m.refreshTotal.WithLabelValues(sensorID, string(report.Outcome)).Inc()

	if report.CallTime > 0 {
		m.callSeconds.WithLabelValues(sensorID).Observe(report.CallTime.Seconds())
	}

	if report.Outcome == traveltime.OutcomeUpdated {
		m.travelTime.WithLabelValues(sensorID).Set(report.Result.DurationMinutes)
		m.distance.WithLabelValues(sensorID, traveltime.DistanceUnit(report.Result.Units)).Set(report.Result.Distance)
	}
}
