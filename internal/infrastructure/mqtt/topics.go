package mqtt

import (
	"fmt"
	"strings"
)

// Topic roots. Bridge topics use the flat scheme
// graylogic/{category}/{protocol}/{id}.
const (
	TopicPrefixBridge = "graylogic"
	TopicPrefixCore   = "graylogic/core"
	TopicPrefixSystem = "graylogic/system"

	// Protocol is the bridge segment used by every travel-time topic.
	Protocol = "waze"
)

// Topics provides builders for the topics the travel-time bridge uses.
//
//	topics := mqtt.Topics{}
//	topics.SensorState("commute")
//	// Returns: "graylogic/state/waze/commute"
type Topics struct{}

// SensorState returns the retained state topic of a sensor.
//
// Example: graylogic/state/waze/commute
func (Topics) SensorState(sensorID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, Protocol, sensorID)
}

// SensorOptions returns the topic option updates for a sensor arrive on.
//
// Example: graylogic/config/waze/commute
func (Topics) SensorOptions(sensorID string) string {
	return fmt.Sprintf("%s/config/%s/%s", TopicPrefixBridge, Protocol, sensorID)
}

// SensorRequest returns the topic refresh and get_state requests for a
// sensor arrive on.
//
// Example: graylogic/request/waze/commute
func (Topics) SensorRequest(sensorID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixBridge, Protocol, sensorID)
}

// Response returns the topic a request's response is published on.
//
// Example: graylogic/response/waze/req-abc123
func (Topics) Response(requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixBridge, Protocol, requestID)
}

// BridgeHealth returns the retained bridge health topic.
//
// Example: graylogic/health/waze
func (Topics) BridgeHealth() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefixBridge, Protocol)
}

// EntityState returns the topic the core publishes an entity's state on.
//
// Example: graylogic/core/entity/person.alice/state
func (Topics) EntityState(entityID string) string {
	return fmt.Sprintf("%s/entity/%s/state", TopicPrefixCore, entityID)
}

// ServiceStatus returns the online/offline status topic of a client. It
// carries the Last Will message.
//
// Example: graylogic/system/graylogic-waze/status
func (Topics) ServiceStatus(clientID string) string {
	return fmt.Sprintf("%s/%s/status", TopicPrefixSystem, clientID)
}

// AllSensorOptions matches option updates for every sensor.
//
// Pattern: graylogic/config/waze/+
func (Topics) AllSensorOptions() string {
	return fmt.Sprintf("%s/config/%s/+", TopicPrefixBridge, Protocol)
}

// AllSensorRequests matches requests for every sensor.
//
// Pattern: graylogic/request/waze/+
func (Topics) AllSensorRequests() string {
	return fmt.Sprintf("%s/request/%s/+", TopicPrefixBridge, Protocol)
}

// AllEntityStates matches every entity state published by the core.
//
// Pattern: graylogic/core/entity/+/state
func (Topics) AllEntityStates() string {
	return fmt.Sprintf("%s/entity/+/state", TopicPrefixCore)
}

// ValidTopicLevel reports whether s can be used as a single level of a
// publish topic: non-empty, and free of separators, wildcards and NUL.
func ValidTopicLevel(s string) bool {
	return s != "" && !strings.ContainsAny(s, "/+#\x00")
}

// LastSegment returns the final level of a topic, which is the sensor id
// for the sensor option and request topics.
func LastSegment(topic string) string {
	if i := strings.LastIndexByte(topic, '/'); i >= 0 {
		return topic[i+1:]
	}
	return topic
}
