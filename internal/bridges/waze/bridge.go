package waze

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcloughlin/geohash"

	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
	wazeapi "github.com/nerrad567/gray-logic-traveltime/internal/waze"
)

const (
	defaultScanInterval = 5 * time.Minute

	// maintenanceInterval is how often history is pruned and expired
	// geocode entries are purged.
	maintenanceInterval = time.Hour

	// cellPrecision 6 is a cell of roughly 1.2km, coarse enough to keep
	// time-series tag cardinality low.
	cellPrecision = 6
)

// Logger is the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MQTTClient is the interface for MQTT operations. Payloads are published
// as JSON with the client's configured QoS.
type MQTTClient interface {
	PublishJSON(topic string, v any, retained bool) error
	Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error
	Unsubscribe(topic string) error
	SubscriptionCount() int
	IsConnected() bool
}

// EntityStateHandler consumes entity state messages published by the core.
// It is satisfied by *entity.Registry.
type EntityStateHandler interface {
	HandleStateMessage(topic string, payload []byte) error
}

// TimeSeriesWriter receives committed readings. It is satisfied by
// *influxdb.Client.
type TimeSeriesWriter interface {
	WriteTravelTime(p influxdb.TravelTimePoint)
}

// CachePurger removes expired cache entries. It is satisfied by
// *waze.SQLiteGeocodeCache.
type CachePurger interface {
	Purge(ctx context.Context) (int64, error)
}

// BridgeOptions holds everything a bridge is built from. MQTTClient,
// Router and StateSource are required; the rest is optional.
type BridgeOptions struct {
	Config config.WazeConfig

	// DefaultUnits applies to sensors that do not set their own units.
	DefaultUnits string

	Version string

	MQTTClient  MQTTClient
	Router      traveltime.Router
	StateSource traveltime.StateSource

	// Entities is subscribed to entity state topics when set.
	Entities EntityStateHandler

	History      traveltime.HistoryRepository
	TimeSeries   TimeSeriesWriter
	GeocodeCache CachePurger
	Metrics      *Metrics
	Logger       Logger
}

// Bridge runs the travel-time sensors and connects them to MQTT.
//
// Every sensor has its own goroutine, so cycles of one sensor never
// overlap; manual refreshes are queued to that goroutine.
//
// All methods are safe for concurrent use.
type Bridge struct {
	cfg        config.WazeConfig
	mqtt       MQTTClient
	entities   EntityStateHandler
	history    traveltime.HistoryRepository
	timeSeries TimeSeriesWriter
	geocache   CachePurger
	metrics    *Metrics
	health     *HealthReporter
	logger     Logger

	workers map[string]*sensorWorker
	order   []string

	statsMu sync.Mutex
	stats   RefreshStatistics

	subsMu     sync.Mutex
	subscribed []string

	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
	ctx       context.Context
	ctxCancel context.CancelFunc
}

// NewBridge creates a bridge with one sensor per configured entry.
// Call Start to begin refreshing.
func NewBridge(opts BridgeOptions) (*Bridge, error) {
	if opts.MQTTClient == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("router is required")
	}
	if opts.StateSource == nil {
		return nil, fmt.Errorf("state source is required")
	}

	cfg := opts.Config
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = int(defaultScanInterval / time.Second)
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:        cfg,
		mqtt:       opts.MQTTClient,
		entities:   opts.Entities,
		history:    opts.History,
		timeSeries: opts.TimeSeries,
		geocache:   opts.GeocodeCache,
		metrics:    opts.Metrics,
		logger:     logger,
		workers:    make(map[string]*sensorWorker, len(cfg.Sensors)),
		done:       make(chan struct{}),
		ctx:        ctx,
		ctxCancel:  ctxCancel,
	}

	resolver := traveltime.NewResolver(opts.StateSource)
	for _, sc := range cfg.Sensors {
		if _, dup := b.workers[sc.ID]; dup {
			ctxCancel()
			return nil, fmt.Errorf("duplicate sensor id %q", sc.ID)
		}

		sensorOpts := sc.Options(opts.DefaultUnits)
		sensorOpts.Timeout = cfg.RequestTimeoutDuration()
		if err := sensorOpts.Validate(); err != nil {
			ctxCancel()
			return nil, fmt.Errorf("sensor %s: %w", sc.ID, err)
		}

		refresher := traveltime.NewRefresher(resolver, opts.Router)
		refresher.SetLogger(sensorLogger{Logger: logger, sensorID: sc.ID})

		b.workers[sc.ID] = newSensorWorker(traveltime.NewSensor(sc.ID, sc.DisplayName(), sensorOpts, refresher))
		b.order = append(b.order, sc.ID)
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  cfg.BridgeID,
		Version:   opts.Version,
		Interval:  cfg.HealthIntervalDuration(),
		Publisher: opts.MQTTClient,
		Stats: func() (int, RefreshStatistics) {
			return len(b.order), b.Stats()
		},
		Subscriptions: opts.MQTTClient.SubscriptionCount,
	})
	b.health.SetLogger(logger)

	return b, nil
}

// Start subscribes to the bridge topics and starts the sensor goroutines.
// The first refresh of each sensor runs after the configured startup grace.
func (b *Bridge) Start(ctx context.Context) error {
	var err error
	b.startOnce.Do(func() {
		err = b.start(ctx)
	})
	return err
}

func (b *Bridge) start(ctx context.Context) error {
	if err := b.health.PublishStarting(); err != nil {
		b.logger.Error("failed to publish starting status", "error", err)
	}

	topics := mqtt.Topics{}
	if b.entities != nil {
		if err := b.subscribe(topics.AllEntityStates(), b.handleEntityMessage); err != nil {
			return fmt.Errorf("subscribe to entity states: %w", err)
		}
	}
	if err := b.subscribe(topics.AllSensorOptions(), b.handleOptionsMessage); err != nil {
		return fmt.Errorf("subscribe to sensor options: %w", err)
	}
	if err := b.subscribe(topics.AllSensorRequests(), b.handleRequestMessage); err != nil {
		return fmt.Errorf("subscribe to requests: %w", err)
	}

	b.health.Start(ctx)
	if err := b.health.PublishNow(); err != nil {
		b.logger.Error("failed to publish healthy status", "error", err)
	}

	for _, id := range b.order {
		b.wg.Add(1)
		go b.runSensor(b.workers[id])
	}

	b.wg.Add(1)
	go b.maintenanceLoop()

	b.logger.Info("bridge started",
		"bridge_id", b.cfg.BridgeID,
		"sensors", len(b.order),
		"scan_interval", b.cfg.ScanIntervalDuration(),
	)
	return nil
}

// Stop cancels in-flight refreshes and waits for the sensor goroutines.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		close(b.done)
		b.ctxCancel()
		b.unsubscribeAll()
		b.health.Stop()
		b.wg.Wait()
		b.logger.Info("bridge stopped")
	})
}

func (b *Bridge) subscribe(topic string, handler func(topic string, payload []byte)) error {
	if err := b.mqtt.Subscribe(topic, 1, handler); err != nil {
		return err
	}
	b.subsMu.Lock()
	b.subscribed = append(b.subscribed, topic)
	b.subsMu.Unlock()
	return nil
}

// unsubscribeAll drops the bridge's subscriptions so no handler runs after
// Stop. A disconnected client has nothing to unsubscribe from.
func (b *Bridge) unsubscribeAll() {
	b.subsMu.Lock()
	topics := b.subscribed
	b.subscribed = nil
	b.subsMu.Unlock()

	if !b.mqtt.IsConnected() {
		return
	}
	for _, topic := range topics {
		if err := b.mqtt.Unsubscribe(topic); err != nil {
			b.logger.Warn("failed to unsubscribe", "topic", topic, "error", err)
		}
	}
}

// Sensors returns the sensors in configuration order.
func (b *Bridge) Sensors() []*traveltime.Sensor {
	out := make([]*traveltime.Sensor, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.workers[id].sensor)
	}
	return out
}

// Sensor returns one sensor or ErrSensorNotFound.
func (b *Bridge) Sensor(id string) (*traveltime.Sensor, error) {
	w, err := b.worker(id)
	if err != nil {
		return nil, err
	}
	return w.sensor, nil
}

// TriggerRefresh queues a refresh of one sensor. A refresh already queued
// absorbs the new request.
func (b *Bridge) TriggerRefresh(id string) error {
	w, err := b.worker(id)
	if err != nil {
		return err
	}
	select {
	case <-b.done:
		return ErrBridgeStopped
	default:
	}
	w.queue()
	return nil
}

// Health returns the current bridge health.
func (b *Bridge) Health() HealthMessage {
	return b.health.Current()
}

// Stats returns a copy of the refresh statistics.
func (b *Bridge) Stats() RefreshStatistics {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	stats := b.stats
	if stats.LastRefresh != nil {
		t := *stats.LastRefresh
		stats.LastRefresh = &t
	}
	return stats
}

func (b *Bridge) worker(id string) (*sensorWorker, error) {
	w, ok := b.workers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSensorNotFound, id)
	}
	return w, nil
}

// finishCycle records and publishes the outcome of one cycle.
func (b *Bridge) finishCycle(sensor *traveltime.Sensor, report traveltime.Report) {
	select {
	case <-b.done:
		// Cycles cut short by Stop are not outcomes.
		return
	default:
	}
	if report.Outcome == "" {
		return
	}

	b.recordStats(report)
	b.metrics.Observe(sensor.ID(), report)

	if report.Outcome == traveltime.OutcomeUpdated {
		b.storeReading(sensor.ID(), report.Result)
	}

	b.publishState(sensor, &report)
}

func (b *Bridge) recordStats(report traveltime.Report) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()

	b.stats.Refreshes++
	switch report.Outcome {
	case traveltime.OutcomeUpdated:
		b.stats.Updated++
	case traveltime.OutcomeSkipped:
		b.stats.Skipped++
	case traveltime.OutcomeNoRoutes:
		b.stats.NoRoutes++
	case traveltime.OutcomeFailed:
		b.stats.Failed++
	}

	if report.Outcome == traveltime.OutcomeFailed {
		b.stats.ConsecutiveFailures++
	} else {
		b.stats.ConsecutiveFailures = 0
	}

	t := report.StartedAt.UTC()
	b.stats.LastRefresh = &t
}

func (b *Bridge) storeReading(sensorID string, result traveltime.Result) {
	if b.history != nil {
		if err := b.history.RecordReading(b.ctx, traveltime.ReadingFromResult(sensorID, result)); err != nil {
			b.logger.Error("failed to record reading", "sensor", sensorID, "error", err)
		}
	}

	if b.timeSeries != nil {
		sensor := b.workers[sensorID].sensor
		b.timeSeries.WriteTravelTime(influxdb.TravelTimePoint{
			SensorID:        sensorID,
			Route:           result.Route,
			Units:           string(result.Units),
			Region:          sensor.Options().Region,
			OriginCell:      cellOf(result.Origin),
			DestinationCell: cellOf(result.Destination),
			DurationMinutes: result.DurationMinutes,
			Distance:        result.Distance,
			Time:            result.UpdatedAt,
		})
	}
}

// cellOf returns the geohash cell of a "lat,lon" location, or "" for
// anything else.
func cellOf(location string) string {
	coords, ok := wazeapi.ParseCoordinates(location)
	if !ok {
		return ""
	}
	return geohash.EncodeWithPrecision(coords.Lat, coords.Lon, cellPrecision)
}

func (b *Bridge) publishState(sensor *traveltime.Sensor, report *traveltime.Report) {
	msg := NewStateMessage(sensor.CurrentState(), report)
	if err := b.mqtt.PublishJSON(mqtt.Topics{}.SensorState(sensor.ID()), msg, true); err != nil {
		b.logger.Warn("failed to publish sensor state", "sensor", sensor.ID(), "error", err)
	}
}

func (b *Bridge) handleEntityMessage(topic string, payload []byte) {
	if err := b.entities.HandleStateMessage(topic, payload); err != nil {
		b.logger.Warn("ignoring entity state message", "topic", topic, "error", err)
	}
}

func (b *Bridge) handleOptionsMessage(topic string, payload []byte) {
	sensorID := mqtt.LastSegment(topic)
	w, err := b.worker(sensorID)
	if err != nil {
		b.logger.Warn("options for unknown sensor", "topic", topic)
		return
	}
	if len(strings.TrimSpace(string(payload))) == 0 {
		return
	}

	var msg OptionsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		b.logger.Warn("invalid options message", "sensor", sensorID, "error", err)
		return
	}

	next, err := msg.Apply(w.sensor.Options())
	if err != nil {
		b.logger.Warn("rejected options update", "sensor", sensorID, "error", err)
		return
	}

	w.sensor.UpdateOptions(next)
	b.logger.Info("sensor options updated", "sensor", sensorID)

	if err := b.TriggerRefresh(sensorID); err != nil {
		b.logger.Debug("refresh after options update not queued", "sensor", sensorID, "error", err)
	}
}

func (b *Bridge) handleRequestMessage(topic string, payload []byte) {
	sensorID := mqtt.LastSegment(topic)

	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		b.logger.Warn("invalid request message", "topic", topic, "error", err)
		return
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	if !mqtt.ValidTopicLevel(req.RequestID) {
		// No response: the id cannot name a publish topic.
		b.logger.Warn("request dropped", "topic", topic, "error", fmt.Errorf("%w: %q", ErrInvalidRequestID, req.RequestID))
		return
	}

	resp := ResponseMessage{
		RequestID: req.RequestID,
		SensorID:  sensorID,
		Action:    req.Action,
		Timestamp: time.Now().UTC(),
	}

	w, err := b.worker(sensorID)
	if err == nil {
		switch req.Action {
		case ActionRefresh:
			err = b.TriggerRefresh(sensorID)
		case ActionGetState:
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownAction, req.Action)
		}
	}

	if err != nil {
		resp.Error = err.Error()
	} else {
		state := w.sensor.CurrentState()
		resp.Success = true
		resp.State = &state
	}

	if err := b.mqtt.PublishJSON(mqtt.Topics{}.Response(req.RequestID), resp, false); err != nil {
		b.logger.Warn("failed to publish response", "request_id", req.RequestID, "error", err)
	}
}

// sensorLogger tags every entry with the sensor id.
type sensorLogger struct {
	Logger
	sensorID string
}

func (l sensorLogger) Debug(msg string, args ...any) {
	l.Logger.Debug(msg, append(args, "sensor", l.sensorID)...)
}

func (l sensorLogger) Info(msg string, args ...any) {
	l.Logger.Info(msg, append(args, "sensor", l.sensorID)...)
}

func (l sensorLogger) Warn(msg string, args ...any) {
	l.Logger.Warn(msg, append(args, "sensor", l.sensorID)...)
}

func (l sensorLogger) Error(msg string, args ...any) {
	l.Logger.Error(msg, append(args, "sensor", l.sensorID)...)
}
