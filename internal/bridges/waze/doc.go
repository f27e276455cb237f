// Package waze implements the Waze travel-time bridge for Gray Logic.
//
// The bridge owns a set of travel-time sensors, refreshes each one on a
// schedule against the Waze routing engine and publishes the results on
// MQTT.
//
//	┌─────────────────┐          ┌─────────────────┐
//	│   Gray Logic    │   MQTT   │   Waze Bridge   │   HTTPS
//	│      Core       │◄────────►│   (this pkg)    │◄────────► Waze
//	└─────────────────┘          └─────────────────┘
//
// # Topics
//
//	graylogic/state/waze/{sensor_id}      sensor state, retained
//	graylogic/config/waze/{sensor_id}     options updates (OptionsMessage)
//	graylogic/request/waze/{sensor_id}    refresh / get_state requests
//	graylogic/response/waze/{request_id}  request responses
//	graylogic/health/waze                 bridge health, retained
//	graylogic/core/entity/+/state         entity states used to resolve
//	                                      origins and destinations
//
// # Scheduling
//
// Each sensor runs in its own goroutine. After the startup grace it runs
// its first refresh, then refreshes every scan interval. Manual refreshes
// are queued to the same goroutine, at most one at a time, so cycles of a
// sensor never overlap.
//
// Committed readings are stored in the reading history and written to
// InfluxDB when those are configured.
package waze
