package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// Config is the root configuration structure for the Waze travel-time bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Waze     WazeConfig     `yaml:"waze"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// Units is the unit system sensors fall back to when they do not set
	// their own: "metric" or "imperial".
	Units string `yaml:"units"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// WazeConfig configures the travel-time bridge and its sensors.
type WazeConfig struct {
	BridgeID string `yaml:"bridge_id"`

	// BaseURL is the Waze live-map host. It ends with a slash.
	BaseURL string `yaml:"base_url"`

	// Intervals in seconds.
	ScanInterval    int `yaml:"scan_interval"`
	RequestTimeout  int `yaml:"request_timeout"`
	HealthInterval  int `yaml:"health_interval"`
	StartupGrace    int `yaml:"startup_grace"`
	GeocodeCacheTTL int `yaml:"geocode_cache_ttl"`

	// HistoryRetentionDays is how long readings are kept. 0 keeps them forever.
	HistoryRetentionDays int `yaml:"history_retention_days"`

	Sensors []SensorConfig `yaml:"sensors"`
}

// SensorConfig is one configured travel-time sensor.
type SensorConfig struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Origin      string `yaml:"origin"`
	Destination string `yaml:"destination"`
	Region      string `yaml:"region"`

	// Realtime defaults to true when omitted.
	Realtime *bool `yaml:"realtime"`

	VehicleType            string `yaml:"vehicle_type"`
	AvoidTollRoads         bool   `yaml:"avoid_toll_roads"`
	AvoidSubscriptionRoads bool   `yaml:"avoid_subscription_roads"`
	AvoidFerries           bool   `yaml:"avoid_ferries"`
	Units                  string `yaml:"units"`
	IncludeFilter          string `yaml:"incl_filter"`
	ExcludeFilter          string `yaml:"excl_filter"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file or in the working directory, if present
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
// For example: GRAYLOGIC_DATABASE_PATH, GRAYLOGIC_WAZE_SCAN_INTERVAL
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads the first .env file that exists. Variables already set in
// the environment win over the file.
func loadDotEnv(candidates ...string) error {
	for _, p := range candidates {
		err := godotenv.Load(p)
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:    "site-001",
			Name:  "Gray Logic",
			Units: string(traveltime.UnitsMetric),
		},
		Database: DatabaseConfig{
			Path:        "./data/waze.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-waze",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8091,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Org:           "graylogic",
			Bucket:        "traveltime",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Waze: WazeConfig{
			BridgeID:             "waze-bridge-01",
			BaseURL:              "https://www.waze.com/",
			ScanInterval:         300,
			RequestTimeout:       30,
			HealthInterval:       30,
			StartupGrace:         2,
			GeocodeCacheTTL:      86400,
			HistoryRetentionDays: 30,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	envInt := func(key string, dst *int) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s must be an integer, got %q", key, v))
			return
		}
		*dst = n
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	envInt("GRAYLOGIC_MQTT_PORT", &cfg.MQTT.Broker.Port)
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	envInt("GRAYLOGIC_API_PORT", &cfg.API.Port)

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Waze
	if v := os.Getenv("GRAYLOGIC_WAZE_BASE_URL"); v != "" {
		cfg.Waze.BaseURL = v
	}
	envInt("GRAYLOGIC_WAZE_SCAN_INTERVAL", &cfg.Waze.ScanInterval)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}
	if !validUnits(c.Site.Units) {
		errs = append(errs, "site.units must be metric or imperial")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("logging.level %q must be debug, info, warn, or error", c.Logging.Level))
	}

	errs = append(errs, c.Waze.validate(c.Site.Units)...)

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

func (w *WazeConfig) validate(defaultUnits string) []string {
	var errs []string

	if w.BridgeID == "" {
		errs = append(errs, "waze.bridge_id is required")
	}
	if w.BaseURL == "" {
		errs = append(errs, "waze.base_url is required")
	}
	if w.ScanInterval < 1 {
		errs = append(errs, "waze.scan_interval must be at least 1 second")
	}
	if w.RequestTimeout < 1 {
		errs = append(errs, "waze.request_timeout must be at least 1 second")
	}
	if w.HealthInterval < 1 {
		errs = append(errs, "waze.health_interval must be at least 1 second")
	}
	if w.StartupGrace < 0 {
		errs = append(errs, "waze.startup_grace must not be negative")
	}
	if w.HistoryRetentionDays < 0 {
		errs = append(errs, "waze.history_retention_days must not be negative")
	}

	seen := make(map[string]bool, len(w.Sensors))
	for i, s := range w.Sensors {
		prefix := fmt.Sprintf("waze.sensors[%d]", i)
		if s.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else {
			if seen[s.ID] {
				errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, s.ID))
			}
			seen[s.ID] = true
			prefix = fmt.Sprintf("waze.sensors[%s]", s.ID)
		}
		if s.Units != "" && !validUnits(s.Units) {
			errs = append(errs, prefix+".units must be metric or imperial")
			continue
		}
		if err := s.Options(defaultUnits).Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", prefix, err))
		}
	}

	return errs
}

// Options converts the sensor entry into refresh options, filling unset
// fields with their defaults.
func (s SensorConfig) Options(defaultUnits string) traveltime.Options {
	opts := traveltime.DefaultOptions()
	opts.Origin = strings.TrimSpace(s.Origin)
	opts.Destination = strings.TrimSpace(s.Destination)
	opts.Region = strings.ToUpper(strings.TrimSpace(s.Region))
	if s.Realtime != nil {
		opts.Realtime = *s.Realtime
	}
	if v := strings.ToLower(strings.TrimSpace(s.VehicleType)); v != "" {
		opts.VehicleType = v
	}
	opts.AvoidTollRoads = s.AvoidTollRoads
	opts.AvoidSubscriptionRoads = s.AvoidSubscriptionRoads
	opts.AvoidFerries = s.AvoidFerries

	switch {
	case s.Units != "":
		opts.Units = traveltime.Units(strings.ToLower(s.Units))
	case defaultUnits != "":
		opts.Units = traveltime.Units(strings.ToLower(defaultUnits))
	}

	opts.IncludeFilter = strings.TrimSpace(s.IncludeFilter)
	opts.ExcludeFilter = strings.TrimSpace(s.ExcludeFilter)
	return opts
}

// DisplayName returns the sensor name, falling back to the default.
func (s SensorConfig) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return traveltime.DefaultName
}

func validUnits(u string) bool {
	switch traveltime.Units(strings.ToLower(u)) {
	case traveltime.UnitsMetric, traveltime.UnitsImperial:
		return true
	}
	return false
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// ScanIntervalDuration returns the sensor refresh period.
func (w WazeConfig) ScanIntervalDuration() time.Duration {
	return time.Duration(w.ScanInterval) * time.Second
}

// RequestTimeoutDuration returns the routing call deadline.
func (w WazeConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(w.RequestTimeout) * time.Second
}

// HealthIntervalDuration returns the health publish period.
func (w WazeConfig) HealthIntervalDuration() time.Duration {
	return time.Duration(w.HealthInterval) * time.Second
}

// StartupGraceDuration returns the delay before the first refresh.
func (w WazeConfig) StartupGraceDuration() time.Duration {
	return time.Duration(w.StartupGrace) * time.Second
}

// GeocodeCacheTTLDuration returns how long address lookups are cached.
func (w WazeConfig) GeocodeCacheTTLDuration() time.Duration {
	return time.Duration(w.GeocodeCacheTTL) * time.Second
}

// HistoryRetention returns how long readings are kept, or 0 for forever.
func (w WazeConfig) HistoryRetention() time.Duration {
	return time.Duration(w.HistoryRetentionDays) * 24 * time.Hour
}
