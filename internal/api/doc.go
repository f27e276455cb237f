// Package api implements the HTTP REST API of the Waze bridge.
//
// This package provides:
//   - Read access to sensors, their current state and reading history
//   - Manual refresh of a sensor
//   - A snapshot of the tracked entities used to resolve endpoints
//   - Prometheus metrics on /metrics
//   - Middleware for request IDs, access logs, panic recovery, CORS and body limits
//
// The API is read-mostly. Sensor options are changed over MQTT on
// graylogic/config/waze/{sensor_id}, not here.
package api
