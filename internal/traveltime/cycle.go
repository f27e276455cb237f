package traveltime

import (
	"context"
	"errors"
	"fmt"

	"github.com/looplab/fsm"
)

// Phases of a refresh cycle.
const (
	PhaseIdle       = "idle"
	PhaseResolving  = "resolving"
	PhaseCalling    = "calling"
	PhaseFiltering  = "filtering"
	PhaseSelecting  = "selecting"
	PhaseCommitting = "committing"
	PhaseFailed     = "failed"
	PhaseNoRoutes   = "no_routes"
)

// Cycle events.
const (
	eventResolve = "resolve"
	eventSkip    = "skip"
	eventCall    = "call"
	eventFail    = "fail"
	eventFilter  = "filter"
	eventEmpty   = "empty"
	eventSelect  = "select"
	eventCommit  = "commit"
	eventReset   = "reset"
)

// cycle tracks the phase of the refresh in flight.
//
//	idle -> resolving -> calling -> filtering -> selecting -> committing
//	            |           |           |
//	            v           v           v
//	          idle        failed    no_routes
//
// Every terminal phase resets to idle.
type cycle struct {
	machine *fsm.FSM
}

func newCycle(onEnter func(from, to string)) *cycle {
	callbacks := fsm.Callbacks{}
	if onEnter != nil {
		callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
			onEnter(e.Src, e.Dst)
		}
	}

	return &cycle{
		machine: fsm.NewFSM(
			PhaseIdle,
			fsm.Events{
				{Name: eventResolve, Src: []string{PhaseIdle}, Dst: PhaseResolving},
				{Name: eventSkip, Src: []string{PhaseResolving}, Dst: PhaseIdle},
				{Name: eventCall, Src: []string{PhaseResolving}, Dst: PhaseCalling},
				{Name: eventFail, Src: []string{PhaseCalling}, Dst: PhaseFailed},
				{Name: eventFilter, Src: []string{PhaseCalling}, Dst: PhaseFiltering},
				{Name: eventEmpty, Src: []string{PhaseFiltering}, Dst: PhaseNoRoutes},
				{Name: eventSelect, Src: []string{PhaseFiltering}, Dst: PhaseSelecting},
				{Name: eventCommit, Src: []string{PhaseSelecting}, Dst: PhaseCommitting},
				{Name: eventReset, Src: []string{PhaseCommitting, PhaseFailed, PhaseNoRoutes}, Dst: PhaseIdle},
			},
			callbacks,
		),
	}
}

// fire moves the cycle along. Cancellation of ctx never blocks a phase
// change; the caller has already decided the outcome.
func (c *cycle) fire(ctx context.Context, event string) error {
	err := c.machine.Event(context.WithoutCancel(ctx), event)
	if err == nil {
		return nil
	}
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return fmt.Errorf("cycle event %q in phase %q: %w", event, c.machine.Current(), err)
}

// current returns the phase the cycle is in.
func (c *cycle) current() string {
	return c.machine.Current()
}

// abort forces the cycle back to idle after an unexpected transition error.
func (c *cycle) abort() {
	c.machine.SetState(PhaseIdle)
}
