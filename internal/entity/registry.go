package entity

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-traveltime/internal/traveltime"
)

// Logger defines the logging interface used by the Registry.
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

// Registry caches tracked entity states.
//
// All public methods are thread-safe. Returned states are deep copies.
type Registry struct {
	repo    Repository
	cache   map[string]*State
	cacheMu sync.RWMutex
	logger  Logger
	now     func() time.Time
}

// NewRegistry creates a registry. repo may be nil, in which case states
// live only in memory.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:   repo,
		cache:  make(map[string]*State),
		logger: noopLogger{},
		now:    time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads all persisted states into the cache. States already
// received in memory and newer than the persisted copy are kept.
func (r *Registry) RefreshCache(ctx context.Context) error {
	if r.repo == nil {
		return nil
	}

	states, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading entity states: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	for i := range states {
		s := states[i]
		if existing, ok := r.cache[s.EntityID]; ok && existing.LastUpdated.After(s.LastUpdated) {
			continue
		}
		r.cache[s.EntityID] = s.DeepCopy()
	}

	r.logger.Info("entity cache refreshed", "count", len(states))
	return nil
}

// SetState stores an entity state and writes it through to the repository.
// A zero LastUpdated is stamped with the current time.
func (r *Registry) SetState(ctx context.Context, state State) error {
	if !traveltime.IsEntityReference(state.EntityID) {
		return fmt.Errorf("%w: %q", ErrInvalidEntityID, state.EntityID)
	}
	if state.LastUpdated.IsZero() {
		state.LastUpdated = r.now().UTC()
	}

	r.cacheMu.Lock()
	r.cache[state.EntityID] = state.DeepCopy()
	r.cacheMu.Unlock()

	if r.repo != nil {
		if err := r.repo.Upsert(ctx, &state); err != nil {
			return fmt.Errorf("persisting entity state: %w", err)
		}
	}
	return nil
}

// RemoveState forgets an entity.
func (r *Registry) RemoveState(ctx context.Context, entityID string) error {
	r.cacheMu.Lock()
	delete(r.cache, entityID)
	r.cacheMu.Unlock()

	if r.repo != nil {
		if err := r.repo.Delete(ctx, entityID); err != nil {
			return fmt.Errorf("deleting entity state: %w", err)
		}
	}
	return nil
}

// GetState returns an entity state or ErrEntityNotFound.
func (r *Registry) GetState(_ context.Context, entityID string) (*State, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	s, ok := r.cache[entityID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return s.DeepCopy(), nil
}

// List returns all entity states ordered by entity id.
func (r *Registry) List() []State {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	states := make([]State, 0, len(r.cache))
	for _, s := range r.cache {
		states = append(states, *s.DeepCopy())
	}
	sort.Slice(states, func(i, j int) bool { return states[i].EntityID < states[j].EntityID })
	return states
}

// Count returns the number of tracked entities.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// EntityState implements traveltime.StateSource.
func (r *Registry) EntityState(ctx context.Context, entityID string) (traveltime.EntityState, error) {
	s, err := r.GetState(ctx, entityID)
	if err != nil {
		return traveltime.EntityState{}, fmt.Errorf("%w: %s", traveltime.ErrEntityNotFound, entityID)
	}
	return toResolverState(s), nil
}

// ZoneByName implements traveltime.StateSource. Zone names compare
// case-insensitively.
func (r *Registry) ZoneByName(_ context.Context, name string) (traveltime.EntityState, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	for _, s := range r.cache {
		if s.Domain() == DomainZone && strings.EqualFold(s.FriendlyName(), name) {
			return toResolverState(s.DeepCopy()), nil
		}
	}
	return traveltime.EntityState{}, fmt.Errorf("%w: zone %q", traveltime.ErrEntityNotFound, name)
}

func toResolverState(s *State) traveltime.EntityState {
	return traveltime.EntityState{
		EntityID:   s.EntityID,
		State:      s.State,
		Attributes: s.Attributes,
	}
}

// stateMessage is the payload the core publishes for an entity.
type stateMessage struct {
	EntityID    string         `json:"entity_id"`
	State       *string        `json:"state"`
	Attributes  map[string]any `json:"attributes"`
	LastUpdated *time.Time     `json:"last_updated"`
}

// HandleStateMessage applies an MQTT entity state message. The entity id
// comes from the payload or, when absent, from the topic segment before
// "/state". An empty payload removes the entity.
func (r *Registry) HandleStateMessage(topic string, payload []byte) error {
	ctx := context.Background()
	topicID := entityIDFromTopic(topic)

	if len(strings.TrimSpace(string(payload))) == 0 {
		if topicID == "" {
			return fmt.Errorf("%w: no entity id in topic %q", ErrInvalidEntityID, topic)
		}
		r.logger.Debug("entity removed", "entity_id", topicID)
		return r.RemoveState(ctx, topicID)
	}

	var msg stateMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("parsing entity state: %w", err)
	}

	state := State{
		EntityID:   msg.EntityID,
		Attributes: msg.Attributes,
	}
	if state.EntityID == "" {
		state.EntityID = topicID
	}
	if msg.State != nil {
		state.State = *msg.State
	}
	if msg.LastUpdated != nil {
		state.LastUpdated = msg.LastUpdated.UTC()
	}

	if err := r.SetState(ctx, state); err != nil {
		return err
	}
	r.logger.Debug("entity state updated", "entity_id", state.EntityID, "state", state.State)
	return nil
}

// entityIDFromTopic extracts {entity_id} from
// graylogic/core/entity/{entity_id}/state.
func entityIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 || parts[len(parts)-1] != "state" {
		return ""
	}
	return parts[len(parts)-2]
}
