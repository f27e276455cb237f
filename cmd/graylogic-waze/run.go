package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	_ "github.com/nerrad567/gray-logic-traveltime/migrations"

	"github.com/nerrad567/gray-logic-traveltime/internal/api"
	"github.com/nerrad567/gray-logic-traveltime/internal/bridges/waze"
	"github.com/nerrad567/gray-logic-traveltime/internal/entity"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
	wazeapi "github.com/nerrad567/gray-logic-traveltime/internal/waze"
)

// run starts the bridge and blocks until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - configPath: Path of the YAML configuration file
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, configPath string) error {
	log := logging.Default()
	log.Info("starting Gray Logic Waze bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", db.Path())

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Entity states persisted by the last run let sensors resolve their
	// endpoints before the retained MQTT states arrive.
	entities := entity.NewRegistry(entity.NewSQLiteRepository(db.DB))
	entities.SetLogger(log.Component("entity"))
	if refreshErr := entities.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading entity states: %w", refreshErr)
	}
	log.Info("entity registry initialised", "entities", entities.Count())

	influxClient, err := connectInfluxDB(ctx, cfg.InfluxDB, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	history := traveltime.NewSQLiteHistoryRepository(db.DB)

	bridge, err := startBridge(ctx, cfg, bridgeDeps{
		mqtt:     mqttClient,
		entities: entities,
		history:  history,
		influx:   influxClient,
		geocache: wazeapi.NewSQLiteGeocodeCache(db.DB, cfg.Waze.GeocodeCacheTTLDuration()),
		log:      log,
	})
	if err != nil {
		return fmt.Errorf("starting Waze bridge: %w", err)
	}
	defer func() {
		log.Info("stopping Waze bridge")
		bridge.Stop()
	}()

	if cfg.API.Enabled {
		apiServer, err := api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.Component("api"),
			Bridge:   bridge,
			Entities: entities,
			History:  history,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse: API, bridge, MQTT, InfluxDB, database.
	return nil
}

// connectInfluxDB connects when InfluxDB is enabled. A disabled InfluxDB
// returns a nil client and no error.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, log *logging.Logger) (*influxdb.Client, error) {
	client, err := influxdb.Connect(ctx, cfg)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client, nil
}

type bridgeDeps struct {
	mqtt     *mqtt.Client
	entities *entity.Registry
	history  traveltime.HistoryRepository
	influx   *influxdb.Client
	geocache *wazeapi.SQLiteGeocodeCache
	log      *logging.Logger
}

// startBridge wires the Waze client into the bridge and starts it.
func startBridge(ctx context.Context, cfg *config.Config, deps bridgeDeps) (*waze.Bridge, error) {
	client := wazeapi.New(wazeapi.Options{
		BaseURL:    cfg.Waze.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Waze.RequestTimeoutDuration()},
		Cache:      deps.geocache,
		Logger:     deps.log.Component("waze-client"),
	})

	metrics, err := waze.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	opts := waze.BridgeOptions{
		Config:       cfg.Waze,
		DefaultUnits: cfg.Site.Units,
		Version:      version,
		MQTTClient:   &mqttBridgeAdapter{client: deps.mqtt},
		Router:       waze.NewRouter(client),
		StateSource:  deps.entities,
		Entities:     deps.entities,
		History:      deps.history,
		GeocodeCache: deps.geocache,
		Metrics:      metrics,
		Logger:       deps.log.Component("bridge"),
	}
	// A nil *influxdb.Client must not become a non-nil interface.
	if deps.influx != nil {
		opts.TimeSeries = deps.influx
	}

	bridge, err := waze.NewBridge(opts)
	if err != nil {
		return nil, fmt.Errorf("creating bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		bridge.Stop()
		return nil, err
	}

	deps.log.Info("Waze bridge started",
		"bridge_id", cfg.Waze.BridgeID,
		"sensors", len(cfg.Waze.Sensors),
	)
	return bridge, nil
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. Infrastructure handlers return an error; bridge
// handlers do not.
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// PublishJSON implements waze.MQTTClient.
func (a *mqttBridgeAdapter) PublishJSON(topic string, v any, retained bool) error {
	return a.client.PublishJSON(topic, v, retained)
}

// Subscribe implements waze.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// Unsubscribe implements waze.MQTTClient.
func (a *mqttBridgeAdapter) Unsubscribe(topic string) error {
	return a.client.Unsubscribe(topic)
}

// SubscriptionCount implements waze.MQTTClient.
func (a *mqttBridgeAdapter) SubscriptionCount() int {
	return a.client.SubscriptionCount()
}

// IsConnected implements waze.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
