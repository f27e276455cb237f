package traveltime

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Logger defines the logging interface used by the Refresher.
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

// Router computes route candidates between two resolved locations.
//
// Errors must wrap ErrRoutingFailed or ErrMalformedResponse so the
// Refresher can log them at the right level.
type Router interface {
	Routes(ctx context.Context, req RouteRequest) ([]RouteCandidate, error)
}

// Refresher runs refresh cycles for one sensor and owns its last reading.
//
// Cycles are serialised; Snapshot may be called concurrently with a cycle
// and always sees either the previous or the new reading in full.
type Refresher struct {
	resolver *Resolver
	router   Router
	logger   Logger
	now      func() time.Time
	cycle    *cycle

	refreshMu sync.Mutex

	mu        sync.RWMutex
	result    Result
	hasResult bool

	// origin and destination are the locations last sent to the router,
	// whether or not that call produced a reading.
	origin      string
	destination string
}

// NewRefresher creates a Refresher that resolves endpoints with resolver and
// queries router.
func NewRefresher(resolver *Resolver, router Router) *Refresher {
	r := &Refresher{
		resolver: resolver,
		router:   router,
		logger:   noopLogger{},
		now:      time.Now,
	}
	r.cycle = newCycle(func(from, to string) {
		r.logger.Debug("refresh phase", "from", from, "to", to)
	})
	return r
}

// SetLogger sets the logger for the refresher.
func (r *Refresher) SetLogger(logger Logger) {
	r.logger = logger
}

// Phase returns the phase of the cycle in flight, or PhaseIdle.
func (r *Refresher) Phase() string {
	return r.cycle.current()
}

// Snapshot returns the last committed reading. ok is false until the first
// successful cycle.
func (r *Refresher) Snapshot() (result Result, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.hasResult
}

// Endpoints returns the resolved locations of the most recent routing call.
// Both are empty until a cycle gets past endpoint resolution.
func (r *Refresher) Endpoints() (origin, destination string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.origin, r.destination
}

// Refresh runs one cycle with the given options.
//
// The stored reading only changes when the cycle ends with OutcomeUpdated.
// An unresolved endpoint ends the cycle as OutcomeSkipped without calling
// the routing engine. Routing errors end it as OutcomeFailed and an empty
// candidate set after filtering as OutcomeNoRoutes.
func (r *Refresher) Refresh(ctx context.Context, opts Options) (report Report) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	report = Report{
		CycleID:   uuid.NewString(),
		StartedAt: r.now(),
	}

	defer func() {
		if r.cycle.current() != PhaseIdle {
			r.cycle.abort()
		}
	}()

	if !r.advance(ctx, eventResolve) {
		report.Outcome = OutcomeFailed
		return report
	}

	origin, originOK := r.resolveEndpoint(ctx, "origin", opts.Origin)
	destination, destinationOK := r.resolveEndpoint(ctx, "destination", opts.Destination)
	if !originOK || !destinationOK {
		r.advance(ctx, eventSkip)
		report.Outcome = OutcomeSkipped
		return report
	}
	report.Origin = origin
	report.Destination = destination
	r.setEndpoints(origin, destination)

	r.advance(ctx, eventCall)
	candidates, err := r.call(ctx, opts, origin, destination, &report)
	if err != nil {
		r.logRoutingError(err, origin, destination)
		r.advance(ctx, eventFail)
		r.advance(ctx, eventReset)
		report.Outcome = OutcomeFailed
		report.Err = err
		return report
	}
	report.Candidates = candidates

	r.advance(ctx, eventFilter)
	selected, ok := SelectRoute(FilterRoutes(candidates, opts.IncludeFilter, opts.ExcludeFilter))
	if !ok {
		r.logger.Warn("no routes found",
			"origin", origin,
			"destination", destination,
			"candidates", len(candidates),
			"include_filter", opts.IncludeFilter,
			"exclude_filter", opts.ExcludeFilter,
		)
		r.advance(ctx, eventEmpty)
		r.advance(ctx, eventReset)
		report.Outcome = OutcomeNoRoutes
		return report
	}

	r.advance(ctx, eventSelect)
	units := opts.Units
	if units == "" {
		units = UnitsMetric
	}
	result := Result{
		DurationMinutes: selected.DurationMinutes,
		Distance:        ConvertDistance(selected.DistanceKM, units),
		Units:           units,
		Route:           selected.Name,
		Origin:          origin,
		Destination:     destination,
		CycleID:         report.CycleID,
		UpdatedAt:       r.now().UTC(),
	}

	r.advance(ctx, eventCommit)
	r.commit(result)
	r.advance(ctx, eventReset)

	report.Outcome = OutcomeUpdated
	report.Result = result
	return report
}

func (r *Refresher) call(ctx context.Context, opts Options, origin, destination string, report *Report) ([]RouteCandidate, error) {
	callCtx, cancel := context.WithTimeout(ctx, opts.RequestTimeout())
	defer cancel()

	start := r.now()
	candidates, err := r.router.Routes(callCtx, opts.RouteRequest(origin, destination))
	report.CallTime = r.now().Sub(start)
	return candidates, err
}

// resolveEndpoint resolves one endpoint. ok is false when the cycle has to
// be skipped; a missing entity is logged but is not a refresh failure.
func (r *Refresher) resolveEndpoint(ctx context.Context, role, endpoint string) (string, bool) {
	location, err := r.resolver.Resolve(ctx, endpoint)
	switch {
	case errors.Is(err, ErrEntityNotFound):
		r.logger.Warn("referenced entity not found, skipping refresh", role, endpoint)
		return "", false
	case errors.Is(err, ErrCircularReference):
		r.logger.Error("circular entity reference, skipping refresh", role, endpoint, "error", err)
		return "", false
	case err != nil:
		r.logger.Warn("resolving endpoint failed, skipping refresh", role, endpoint, "error", err)
		return "", false
	}
	return location, location != ""
}

func (r *Refresher) logRoutingError(err error, origin, destination string) {
	if errors.Is(err, ErrMalformedResponse) {
		r.logger.Error("error retrieving data from server",
			"origin", origin, "destination", destination, "error", err)
		return
	}
	r.logger.Warn("error on retrieving data",
		"origin", origin, "destination", destination, "error", err)
}

func (r *Refresher) setEndpoints(origin, destination string) {
	r.mu.Lock()
	r.origin = origin
	r.destination = destination
	r.mu.Unlock()
}

func (r *Refresher) commit(result Result) {
	r.mu.Lock()
	r.result = result
	r.hasResult = true
	r.mu.Unlock()
}

func (r *Refresher) advance(ctx context.Context, event string) bool {
	if err := r.cycle.fire(ctx, event); err != nil {
		r.logger.Error("refresh cycle transition failed", "error", err)
		return false
	}
	return true
}
