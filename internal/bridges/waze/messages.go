package waze

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// Protocol is the protocol identifier carried by every bridge message.
const Protocol = "waze"

// Request actions.
const (
	ActionRefresh  = "refresh"
	ActionGetState = "get_state"
)

// StateMessage is published after every refresh cycle.
// Topic: graylogic/state/waze/{sensor_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	traveltime.State

	Protocol  string    `json:"protocol"`
	Timestamp time.Time `json:"timestamp"`

	// Outcome and CycleID describe the cycle that triggered the publish.
	// Both are empty for states published outside a cycle.
	Outcome traveltime.Outcome `json:"outcome,omitempty"`
	CycleID string             `json:"cycle_id,omitempty"`
}

// NewStateMessage wraps a sensor state for publication.
func NewStateMessage(state traveltime.State, report *traveltime.Report) StateMessage {
	msg := StateMessage{
		State:     state,
		Protocol:  Protocol,
		Timestamp: time.Now().UTC(),
	}
	if report != nil {
		msg.Outcome = report.Outcome
		msg.CycleID = report.CycleID
	}
	return msg
}

// RequestMessage asks the bridge to act on a sensor.
// Topic: graylogic/request/waze/{sensor_id}
type RequestMessage struct {
	RequestID string `json:"request_id"`
	Action    string `json:"action"`
}

// ResponseMessage answers a RequestMessage.
// Topic: graylogic/response/waze/{request_id}
// QoS: 1, Retained: No
type ResponseMessage struct {
	RequestID string            `json:"request_id"`
	SensorID  string            `json:"sensor_id"`
	Action    string            `json:"action"`
	Success   bool              `json:"success"`
	Timestamp time.Time         `json:"timestamp"`
	State     *traveltime.State `json:"state,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// OptionsMessage updates a sensor's options. Absent fields keep their
// current value; an empty filter string clears the filter.
// Topic: graylogic/config/waze/{sensor_id}
type OptionsMessage struct {
	Origin                 *string `json:"origin,omitempty"`
	Destination            *string `json:"destination,omitempty"`
	Region                 *string `json:"region,omitempty"`
	Realtime               *bool   `json:"realtime,omitempty"`
	VehicleType            *string `json:"vehicle_type,omitempty"`
	AvoidTollRoads         *bool   `json:"avoid_toll_roads,omitempty"`
	AvoidSubscriptionRoads *bool   `json:"avoid_subscription_roads,omitempty"`
	AvoidFerries           *bool   `json:"avoid_ferries,omitempty"`
	Units                  *string `json:"units,omitempty"`
	IncludeFilter          *string `json:"incl_filter,omitempty"`
	ExcludeFilter          *string `json:"excl_filter,omitempty"`
}

// Apply returns current with the message's fields applied, validated.
func (m OptionsMessage) Apply(current traveltime.Options) (traveltime.Options, error) {
	next := current

	setString(&next.Origin, m.Origin)
	setString(&next.Destination, m.Destination)
	if m.Region != nil {
		next.Region = strings.ToUpper(strings.TrimSpace(*m.Region))
	}
	setBool(&next.Realtime, m.Realtime)
	if m.VehicleType != nil {
		next.VehicleType = strings.ToLower(strings.TrimSpace(*m.VehicleType))
	}
	setBool(&next.AvoidTollRoads, m.AvoidTollRoads)
	setBool(&next.AvoidSubscriptionRoads, m.AvoidSubscriptionRoads)
	setBool(&next.AvoidFerries, m.AvoidFerries)
	if m.Units != nil {
		next.Units = traveltime.Units(strings.ToLower(strings.TrimSpace(*m.Units)))
	}
	setString(&next.IncludeFilter, m.IncludeFilter)
	setString(&next.ExcludeFilter, m.ExcludeFilter)

	if err := next.Validate(); err != nil {
		return current, fmt.Errorf("applying options: %w", err)
	}
	return next, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

// HealthStatus is the operational status of the bridge.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStarting HealthStatus = "starting"
	HealthStopping HealthStatus = "stopping"
	HealthOffline  HealthStatus = "offline"
)

// HealthMessage reports the bridge status.
// Topic: graylogic/health/waze
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge         string            `json:"bridge"`
	Protocol       string            `json:"protocol"`
	Timestamp      time.Time         `json:"timestamp"`
	Status         HealthStatus      `json:"status"`
	Version        string            `json:"version"`
	UptimeSeconds  int64             `json:"uptime_seconds"`
	SensorsManaged int               `json:"sensors_managed"`
	Subscriptions  int               `json:"subscriptions"`
	Statistics     RefreshStatistics `json:"statistics"`
	Reason         string            `json:"reason,omitempty"`
}

// RefreshStatistics counts refresh outcomes since the bridge started.
type RefreshStatistics struct {
	Refreshes   uint64     `json:"refreshes"`
	Updated     uint64     `json:"updated"`
	Skipped     uint64     `json:"skipped"`
	NoRoutes    uint64     `json:"no_routes"`
	Failed      uint64     `json:"failed"`
	LastRefresh *time.Time `json:"last_refresh,omitempty"`

	// ConsecutiveFailures resets on any cycle that is not a failure.
	ConsecutiveFailures uint64 `json:"consecutive_failures"`
}
