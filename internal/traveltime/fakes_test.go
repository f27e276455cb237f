package traveltime

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// fakeSource is an in-memory StateSource.
type fakeSource struct {
	mu       sync.Mutex
	entities map[string]EntityState
	lookups  int
}

func newFakeSource(states ...EntityState) *fakeSource {
	s := &fakeSource{entities: make(map[string]EntityState)}
	for _, st := range states {
		s.entities[st.EntityID] = st
	}
	return s
}

func (s *fakeSource) set(st EntityState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[st.EntityID] = st
}

func (s *fakeSource) EntityState(_ context.Context, entityID string) (EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++
	st, ok := s.entities[entityID]
	if !ok {
		return EntityState{}, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
	}
	return st, nil
}

func (s *fakeSource) ZoneByName(_ context.Context, name string) (EntityState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.entities {
		if !strings.HasPrefix(id, "zone.") {
			continue
		}
		if fn, _ := st.Attributes[AttrFriendlyName].(string); fn == name {
			return st, nil
		}
	}
	return EntityState{}, fmt.Errorf("%w: zone %s", ErrEntityNotFound, name)
}

// fakeRouter returns canned candidates and records requests.
type fakeRouter struct {
	mu         sync.Mutex
	candidates []RouteCandidate
	err        error
	calls      []RouteRequest
	block      chan struct{}
}

func (r *fakeRouter) Routes(ctx context.Context, req RouteRequest) ([]RouteCandidate, error) {
	r.mu.Lock()
	r.calls = append(r.calls, req)
	block := r.block
	r.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrRoutingFailed, ctx.Err())
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	out := make([]RouteCandidate, len(r.candidates))
	copy(out, r.candidates)
	return out, nil
}

func (r *fakeRouter) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *fakeRouter) setCandidates(c []RouteCandidate, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = c
	r.err = err
}

// recordingLogger captures log lines by level.
type recordingLogger struct {
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Info(string, ...any)  {}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func (l *recordingLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *recordingLogger) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = nil
	l.errors = nil
}

func (l *recordingLogger) counts() (warns, errs int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.warns), len(l.errors)
}
