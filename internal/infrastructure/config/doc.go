// Package config handles loading and validating the Waze bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading an optional .env file
//   - Overriding with GRAYLOGIC_* environment variables
//   - Validation of required fields and sensor definitions
//
// Sensitive values (MQTT password, InfluxDB token) should be set via
// environment variables rather than committed to the config file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range cfg.Waze.Sensors {
//	    opts := s.Options(cfg.Site.Units)
//	    ...
//	}
package config
