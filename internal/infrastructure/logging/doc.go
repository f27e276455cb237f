// Package logging provides structured logging for the Waze bridge.
//
// It wraps log/slog so every entry carries the service name and version,
// and is filtered by the configured level:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	refresher.SetLogger(logger.Component("traveltime"))
//
// Never log MQTT passwords or InfluxDB tokens.
package logging
