package waze

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-traveltime/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// MockMQTTClient implements MQTTClient for testing.
type MockMQTTClient struct {
	mu            sync.Mutex
	published     []mockPublish
	subscriptions []mockSubscription
	unsubscribed  []string
	connected     bool
	handlers      map[string]func(topic string, payload []byte)
}

type mockPublish struct {
	Topic    string
	Payload  []byte
	Retained bool
}

type mockSubscription struct {
	Topic string
	QoS   byte
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{
		connected: true,
		handlers:  make(map[string]func(topic string, payload []byte)),
	}
}

func (m *MockMQTTClient) PublishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = append(m.published, mockPublish{
		Topic:    topic,
		Payload:  payload,
		Retained: retained,
	})
	return nil
}

func (m *MockMQTTClient) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = append(m.subscriptions, mockSubscription{Topic: topic, QoS: qos})
	m.handlers[topic] = handler
	return nil
}

func (m *MockMQTTClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsubscribed = append(m.unsubscribed, topic)
	delete(m.handlers, topic)
	return nil
}

func (m *MockMQTTClient) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.handlers)
}

func (m *MockMQTTClient) GetUnsubscribed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.unsubscribed...)
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) SetConnected(connected bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = connected
}

func (m *MockMQTTClient) GetPublished() []mockPublish {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]mockPublish, len(m.published))
	copy(out, m.published)
	return out
}

func (m *MockMQTTClient) GetSubscriptions() []mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptions
}

// PublishedTo returns messages published to topic, oldest first.
func (m *MockMQTTClient) PublishedTo(topic string) []mockPublish {
	var out []mockPublish
	for _, p := range m.GetPublished() {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// SimulateMessage delivers a message to the handler subscribed with
// pattern, passing topic as the concrete topic.
func (m *MockMQTTClient) SimulateMessage(pattern, topic string, payload []byte) {
	m.mu.Lock()
	handler, ok := m.handlers[pattern]
	m.mu.Unlock()
	if ok {
		handler(topic, payload)
	}
}

// mockRouter implements traveltime.Router.
type mockRouter struct {
	mu         sync.Mutex
	candidates []traveltime.RouteCandidate
	err        error
	calls      int
}

func (r *mockRouter) Routes(_ context.Context, _ traveltime.RouteRequest) ([]traveltime.RouteCandidate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return append([]traveltime.RouteCandidate(nil), r.candidates...), nil
}

func (r *mockRouter) setError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *mockRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// mockSource implements traveltime.StateSource and EntityStateHandler.
type mockSource struct {
	mu       sync.Mutex
	states   map[string]traveltime.EntityState
	messages int
}

func newMockSource() *mockSource {
	return &mockSource{states: make(map[string]traveltime.EntityState)}
}

func (s *mockSource) EntityState(_ context.Context, id string) (traveltime.EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[id]
	if !ok {
		return traveltime.EntityState{}, fmt.Errorf("%w: %s", traveltime.ErrEntityNotFound, id)
	}
	return st, nil
}

func (s *mockSource) ZoneByName(_ context.Context, name string) (traveltime.EntityState, error) {
	return traveltime.EntityState{}, fmt.Errorf("%w: zone %s", traveltime.ErrEntityNotFound, name)
}

func (s *mockSource) HandleStateMessage(_ string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages++
	if !json.Valid(payload) {
		return errors.New("invalid payload")
	}
	return nil
}

// mockHistory implements traveltime.HistoryRepository.
type mockHistory struct {
	mu       sync.Mutex
	readings []traveltime.Reading
	pruned   []time.Duration
}

func (h *mockHistory) RecordReading(_ context.Context, r traveltime.Reading) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readings = append(h.readings, r)
	return nil
}

func (h *mockHistory) GetHistory(_ context.Context, sensorID string, limit int) ([]traveltime.Reading, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []traveltime.Reading
	for _, r := range h.readings {
		if r.SensorID == sensorID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (h *mockHistory) PruneHistory(_ context.Context, olderThan time.Duration) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pruned = append(h.pruned, olderThan)
	return 0, nil
}

func (h *mockHistory) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.readings)
}

// mockTimeSeries implements TimeSeriesWriter.
type mockTimeSeries struct {
	mu     sync.Mutex
	points []influxdb.TravelTimePoint
}

func (ts *mockTimeSeries) WriteTravelTime(p influxdb.TravelTimePoint) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.points = append(ts.points, p)
}

func (ts *mockTimeSeries) get() []influxdb.TravelTimePoint {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return append([]influxdb.TravelTimePoint(nil), ts.points...)
}

// testWazeConfig returns a config with one sensor between two fixed points,
// no startup grace and a scan interval long enough never to fire in a test.
func testWazeConfig() config.WazeConfig {
	return config.WazeConfig{
		BridgeID:       "waze-test",
		ScanInterval:   3600,
		RequestTimeout: 5,
		HealthInterval: 3600,
		StartupGrace:   0,
		Sensors: []config.SensorConfig{
			{
				ID:          "commute",
				Name:        "Commute",
				Origin:      "51.5007,-0.1246",
				Destination: "51.5033,-0.1195",
				Region:      "EU",
			},
		},
	}
}

type testBridge struct {
	bridge  *Bridge
	mqtt    *MockMQTTClient
	router  *mockRouter
	source  *mockSource
	history *mockHistory
	series  *mockTimeSeries
}

func newTestBridge(t *testing.T, cfg config.WazeConfig) *testBridge {
	t.Helper()

	tb := &testBridge{
		mqtt: NewMockMQTTClient(),
		router: &mockRouter{candidates: []traveltime.RouteCandidate{
			{Name: "A4 Cromwell Road", DurationMinutes: 12.4, DistanceKM: 5.2},
		}},
		source:  newMockSource(),
		history: &mockHistory{},
		series:  &mockTimeSeries{},
	}

	b, err := NewBridge(BridgeOptions{
		Config:       cfg,
		DefaultUnits: "metric",
		Version:      "test",
		MQTTClient:   tb.mqtt,
		Router:       tb.router,
		StateSource:  tb.source,
		Entities:     tb.source,
		History:      tb.history,
		TimeSeries:   tb.series,
	})
	if err != nil {
		t.Fatalf("NewBridge() error = %v", err)
	}
	tb.bridge = b
	t.Cleanup(b.Stop)
	return tb
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func lastState(t *testing.T, m *MockMQTTClient, sensorID string) StateMessage {
	t.Helper()
	msgs := m.PublishedTo("graylogic/state/waze/" + sensorID)
	if len(msgs) == 0 {
		t.Fatalf("no state published for %s", sensorID)
	}
	var state StateMessage
	if err := json.Unmarshal(msgs[len(msgs)-1].Payload, &state); err != nil {
		t.Fatalf("unmarshal state: %v", err)
	}
	return state
}

func TestNewBridge_Validation(t *testing.T) {
	valid := BridgeOptions{
		Config:      testWazeConfig(),
		MQTTClient:  NewMockMQTTClient(),
		Router:      &mockRouter{},
		StateSource: newMockSource(),
	}

	tests := []struct {
		name    string
		mutate  func(*BridgeOptions)
		wantErr string
	}{
		{"valid", func(*BridgeOptions) {}, ""},
		{"no mqtt", func(o *BridgeOptions) { o.MQTTClient = nil }, "MQTT client is required"},
		{"no router", func(o *BridgeOptions) { o.Router = nil }, "router is required"},
		{"no source", func(o *BridgeOptions) { o.StateSource = nil }, "state source is required"},
		{
			"duplicate sensor",
			func(o *BridgeOptions) {
				o.Config.Sensors = append(o.Config.Sensors, o.Config.Sensors[0])
			},
			"duplicate sensor id",
		},
		{
			"invalid units",
			func(o *BridgeOptions) {
				o.Config.Sensors = []config.SensorConfig{{ID: "x", Origin: "1,1", Destination: "2,2", Region: "EU", Units: "furlongs"}}
			},
			"sensor x",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			opts.Config = testWazeConfig()
			tt.mutate(&opts)

			b, err := NewBridge(opts)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("NewBridge() error = %v", err)
				}
				b.Stop()
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("NewBridge() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestNewBridge_SensorOptions(t *testing.T) {
	cfg := testWazeConfig()
	cfg.RequestTimeout = 7
	tb := newTestBridge(t, cfg)

	sensors := tb.bridge.Sensors()
	if len(sensors) != 1 {
		t.Fatalf("Sensors() = %d, want 1", len(sensors))
	}
	s := sensors[0]
	if s.ID() != "commute" || s.Name() != "Commute" {
		t.Errorf("sensor = %s/%s", s.ID(), s.Name())
	}
	opts := s.Options()
	if opts.Timeout != 7*time.Second {
		t.Errorf("Timeout = %v, want 7s", opts.Timeout)
	}
	if opts.Units != traveltime.UnitsMetric {
		t.Errorf("Units = %q, want metric", opts.Units)
	}
}

func TestBridge_StartSubscribes(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	want := map[string]bool{
		"graylogic/core/entity/+/state": false,
		"graylogic/config/waze/+":       false,
		"graylogic/request/waze/+":      false,
	}
	for _, sub := range tb.mqtt.GetSubscriptions() {
		if _, ok := want[sub.Topic]; ok {
			want[sub.Topic] = true
		}
	}
	for topic, seen := range want {
		if !seen {
			t.Errorf("not subscribed to %s", topic)
		}
	}

	health := tb.mqtt.PublishedTo("graylogic/health/waze")
	if len(health) < 2 {
		t.Fatalf("health messages = %d, want starting and healthy", len(health))
	}
	var first HealthMessage
	if err := json.Unmarshal(health[0].Payload, &first); err != nil {
		t.Fatal(err)
	}
	if first.Status != HealthStarting {
		t.Errorf("first health status = %s, want starting", first.Status)
	}
}

func TestBridge_StopUnsubscribes(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if got := tb.bridge.Health().Subscriptions; got != 3 {
		t.Errorf("health subscriptions = %d, want 3", got)
	}

	tb.bridge.Stop()

	unsubscribed := tb.mqtt.GetUnsubscribed()
	if len(unsubscribed) != 3 {
		t.Fatalf("unsubscribed = %v, want 3 topics", unsubscribed)
	}
	if n := tb.mqtt.SubscriptionCount(); n != 0 {
		t.Errorf("SubscriptionCount() after Stop = %d, want 0", n)
	}

	health := tb.mqtt.PublishedTo("graylogic/health/waze")
	var last HealthMessage
	if err := json.Unmarshal(health[len(health)-1].Payload, &last); err != nil {
		t.Fatal(err)
	}
	if last.Status != HealthStopping || last.Subscriptions != 0 {
		t.Errorf("final health = %s with %d subscriptions, want stopping with 0", last.Status, last.Subscriptions)
	}
}

func TestBridge_StopWhileDisconnectedSkipsUnsubscribe(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	tb.mqtt.SetConnected(false)
	tb.bridge.Stop()

	if unsubscribed := tb.mqtt.GetUnsubscribed(); len(unsubscribed) != 0 {
		t.Errorf("unsubscribed = %v while disconnected", unsubscribed)
	}
}

func TestBridge_FirstRefreshPublishesState(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "state publish", func() bool {
		return len(tb.mqtt.PublishedTo("graylogic/state/waze/commute")) > 0
	})

	state := lastState(t, tb.mqtt, "commute")
	if state.Value == nil || *state.Value != 12 {
		t.Errorf("Value = %v, want 12", state.Value)
	}
	if state.Outcome != traveltime.OutcomeUpdated {
		t.Errorf("Outcome = %s, want updated", state.Outcome)
	}
	if state.Protocol != Protocol {
		t.Errorf("Protocol = %s", state.Protocol)
	}
	if state.Attributes[traveltime.AttrRoute] != "A4 Cromwell Road" {
		t.Errorf("route attribute = %v", state.Attributes[traveltime.AttrRoute])
	}

	msgs := tb.mqtt.PublishedTo("graylogic/state/waze/commute")
	if last := msgs[len(msgs)-1]; !last.Retained {
		t.Error("state publish not retained")
	}

	waitFor(t, "history write", func() bool { return tb.history.count() == 1 })

	points := tb.series.get()
	if len(points) != 1 {
		t.Fatalf("time-series points = %d, want 1", len(points))
	}
	p := points[0]
	if p.SensorID != "commute" || p.Region != "EU" || p.Route != "A4 Cromwell Road" {
		t.Errorf("point = %+v", p)
	}
	if p.OriginCell != "gcpuvp" {
		t.Errorf("OriginCell = %q, want gcpuvp", p.OriginCell)
	}

	stats := tb.bridge.Stats()
	if stats.Refreshes != 1 || stats.Updated != 1 || stats.LastRefresh == nil {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBridge_FailedRefreshKeepsValue(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first refresh", func() bool { return tb.bridge.Stats().Updated == 1 })

	tb.router.setError(fmt.Errorf("%w: connection refused", traveltime.ErrRoutingFailed))
	if err := tb.bridge.TriggerRefresh("commute"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "failed refresh", func() bool { return tb.bridge.Stats().Failed == 1 })

	state := lastState(t, tb.mqtt, "commute")
	if state.Outcome != traveltime.OutcomeFailed {
		t.Errorf("Outcome = %s, want failed", state.Outcome)
	}
	if state.Value == nil || *state.Value != 12 {
		t.Errorf("Value = %v, want previous value 12", state.Value)
	}
	if got := tb.history.count(); got != 1 {
		t.Errorf("history readings = %d, want 1", got)
	}
	if got := tb.bridge.Stats().ConsecutiveFailures; got != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", got)
	}
}

func TestBridge_TriggerRefresh(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())

	if err := tb.bridge.TriggerRefresh("missing"); !errors.Is(err, ErrSensorNotFound) {
		t.Errorf("TriggerRefresh(missing) error = %v, want ErrSensorNotFound", err)
	}

	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first refresh", func() bool { return tb.router.callCount() == 1 })

	if err := tb.bridge.TriggerRefresh("commute"); err != nil {
		t.Fatalf("TriggerRefresh() error = %v", err)
	}
	waitFor(t, "manual refresh", func() bool { return tb.router.callCount() == 2 })

	tb.bridge.Stop()
	if err := tb.bridge.TriggerRefresh("commute"); !errors.Is(err, ErrBridgeStopped) {
		t.Errorf("TriggerRefresh after Stop error = %v, want ErrBridgeStopped", err)
	}
}

func TestBridge_TriggerDuringGraceStartsEarly(t *testing.T) {
	cfg := testWazeConfig()
	cfg.StartupGrace = 3600
	tb := newTestBridge(t, cfg)
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	time.Sleep(20 * time.Millisecond)
	if got := tb.router.callCount(); got != 0 {
		t.Fatalf("routing calls during grace = %d, want 0", got)
	}

	if err := tb.bridge.TriggerRefresh("commute"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "early start", func() bool { return tb.bridge.Sensors()[0].Started() })
}

func TestBridge_RequestMessages(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first refresh", func() bool { return tb.bridge.Stats().Updated == 1 })

	tests := []struct {
		name        string
		sensorID    string
		payload     string
		wantSuccess bool
		wantError   string
	}{
		{"get state", "commute", `{"request_id":"r1","action":"get_state"}`, true, ""},
		{"refresh", "commute", `{"request_id":"r2","action":"refresh"}`, true, ""},
		{"unknown action", "commute", `{"request_id":"r3","action":"explode"}`, false, "unknown request action"},
		{"unknown sensor", "nope", `{"request_id":"r4","action":"get_state"}`, false, "sensor not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req RequestMessage
			if err := json.Unmarshal([]byte(tt.payload), &req); err != nil {
				t.Fatal(err)
			}
			tb.mqtt.SimulateMessage("graylogic/request/waze/+", "graylogic/request/waze/"+tt.sensorID, []byte(tt.payload))

			msgs := tb.mqtt.PublishedTo("graylogic/response/waze/" + req.RequestID)
			if len(msgs) != 1 {
				t.Fatalf("responses = %d, want 1", len(msgs))
			}
			if msgs[0].Retained {
				t.Error("response should not be retained")
			}

			var resp ResponseMessage
			if err := json.Unmarshal(msgs[0].Payload, &resp); err != nil {
				t.Fatal(err)
			}
			if resp.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v (error %q)", resp.Success, tt.wantSuccess, resp.Error)
			}
			if tt.wantError != "" && !strings.Contains(resp.Error, tt.wantError) {
				t.Errorf("Error = %q, want containing %q", resp.Error, tt.wantError)
			}
			if tt.wantSuccess && (resp.State == nil || resp.State.SensorID != "commute") {
				t.Errorf("State = %+v", resp.State)
			}
		})
	}
}

func TestBridge_RequestWithoutID(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	tb.mqtt.SimulateMessage("graylogic/request/waze/+", "graylogic/request/waze/commute", []byte(`{"action":"get_state"}`))

	for _, p := range tb.mqtt.GetPublished() {
		if strings.HasPrefix(p.Topic, "graylogic/response/waze/") {
			if p.Topic == "graylogic/response/waze/" {
				t.Fatal("response published without request id")
			}
			return
		}
	}
	t.Fatal("no response published")
}

func TestBridge_RequestIDWithTopicCharacters(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"x/#", "a+b", "#", "nested/level"} {
		payload, _ := json.Marshal(RequestMessage{RequestID: id, Action: ActionGetState})
		tb.mqtt.SimulateMessage("graylogic/request/waze/+", "graylogic/request/waze/commute", payload)
	}

	for _, p := range tb.mqtt.GetPublished() {
		if strings.HasPrefix(p.Topic, "graylogic/response/") {
			t.Errorf("response published on %q", p.Topic)
		}
		if strings.ContainsAny(p.Topic, "+#") {
			t.Errorf("publish topic %q contains a wildcard", p.Topic)
		}
	}
}

func TestBridge_OptionsMessage(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "first refresh", func() bool { return tb.router.callCount() == 1 })

	sensor := tb.bridge.Sensors()[0]

	tb.mqtt.SimulateMessage("graylogic/config/waze/+", "graylogic/config/waze/commute",
		[]byte(`{"units":"imperial","incl_filter":"M4"}`))

	opts := sensor.Options()
	if opts.Units != traveltime.UnitsImperial || opts.IncludeFilter != "M4" {
		t.Errorf("options = %+v", opts)
	}
	if opts.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want preserved 5s", opts.Timeout)
	}
	waitFor(t, "refresh after options update", func() bool { return tb.router.callCount() == 2 })

	// Invalid updates leave the options untouched.
	tb.mqtt.SimulateMessage("graylogic/config/waze/+", "graylogic/config/waze/commute", []byte(`{"units":"furlongs"}`))
	if got := sensor.Options().Units; got != traveltime.UnitsImperial {
		t.Errorf("Units after invalid update = %q, want imperial", got)
	}

	// Empty payloads clear retained messages and are ignored.
	tb.mqtt.SimulateMessage("graylogic/config/waze/+", "graylogic/config/waze/commute", nil)
	if got := sensor.Options().IncludeFilter; got != "M4" {
		t.Errorf("IncludeFilter after empty payload = %q", got)
	}
}

func TestBridge_EntityMessagesForwarded(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	tb.mqtt.SimulateMessage("graylogic/core/entity/+/state", "graylogic/core/entity/person.alice/state",
		[]byte(`{"state":"home"}`))
	tb.mqtt.SimulateMessage("graylogic/core/entity/+/state", "graylogic/core/entity/person.alice/state",
		[]byte(`not json`))

	tb.source.mu.Lock()
	defer tb.source.mu.Unlock()
	if tb.source.messages != 2 {
		t.Errorf("entity messages = %d, want 2", tb.source.messages)
	}
}

func TestBridge_MaintenancePrunesHistory(t *testing.T) {
	cfg := testWazeConfig()
	cfg.HistoryRetentionDays = 7
	tb := newTestBridge(t, cfg)
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "prune", func() bool {
		tb.history.mu.Lock()
		defer tb.history.mu.Unlock()
		return len(tb.history.pruned) > 0
	})

	tb.history.mu.Lock()
	got := tb.history.pruned[0]
	tb.history.mu.Unlock()
	if got != 7*24*time.Hour {
		t.Errorf("pruned olderThan = %v, want 168h", got)
	}
}

func TestBridge_StopIsIdempotent(t *testing.T) {
	tb := newTestBridge(t, testWazeConfig())
	if err := tb.bridge.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	tb.bridge.Stop()
	tb.bridge.Stop()

	health := tb.mqtt.PublishedTo("graylogic/health/waze")
	var last HealthMessage
	if err := json.Unmarshal(health[len(health)-1].Payload, &last); err != nil {
		t.Fatal(err)
	}
	if last.Status != HealthStopping {
		t.Errorf("last health status = %s, want stopping", last.Status)
	}
}

func TestCellOf(t *testing.T) {
	tests := []struct {
		location string
		want     string
	}{
		{"51.5007,-0.1246", "gcpuvp"},
		{traveltime.FormatCoordinates(52, 5), "u15xcf"},
		{"10 Downing Street, London", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := cellOf(tt.location); got != tt.want {
			t.Errorf("cellOf(%q) = %q, want %q", tt.location, got, tt.want)
		}
	}
}
