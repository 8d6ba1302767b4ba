// Package guide decides the order in which actors run.
//
// The kernel presents the set of READY actors and asks the active guide for the
// next transition. Guides range from a single deterministic run (Basic) to
// exhaustive exploration with dynamic partial order reduction (DPOR).
//
// Exploration is organized like the kernel's runs: a Global guide manages the
// whole search and hands out one RunGuide per concurrently simulated run.
package guide

import (
	"errors"
	"fmt"

	"simkernel/simcall"
	"simkernel/trace"
)

// An actor that can be scheduled, together with the footprint of its next transition
type ReadyActor struct {
	ID     int
	Parent int
	Name   string
	Step   simcall.Step
}

// Commits transitions. Implemented by the kernel.
type Executor interface {
	Execute(t trace.Transition) error
}

type Guide interface {
	// Pick the next transition among the ready actors.
	// Calling it several times without executing returns the same transition.
	NextTransition(ready []ReadyActor) (trace.Transition, error)
	// Execute the transition using exec and record it in the exploration state.
	ExecuteNext(t trace.Transition, exec Executor) error
}

// Guides a single run.
//
// StartRun, NextTransition, ExecuteNext and EndRun are always called from the same goroutine.
type RunGuide interface {
	Guide
	// Prepare for starting a new run. Returns a NoRunsError if all possible runs have been completed.
	// May block until new runs are available.
	StartRun() error
	// Finish the current run and prepare for the next one.
	// Always called after StartRun succeeded, even if the run failed.
	EndRun()
}

// Manages the exploration across several runs.
// Communicates with several run guides in separate goroutines to ensure that the exploration remains consistent.
type Global interface {
	// Create a RunGuide that will communicate with the global guide
	GetRunGuide() RunGuide
	// Reset the global state of the guide, preparing it for a new simulation
	Reset()
}

var (
	NoRunsError = errors.New("guide: No available new runs to be started")
	// The run is redundant with a run that has already been explored
	ErrPruned = errors.New("guide: the run is redundant and has been pruned")
	// The program did not behave the same way when a prefix was re-executed
	ErrDivergence = errors.New("guide: the execution diverged from the recorded transitions")
	ErrNoReady    = errors.New("guide: no ready actor to schedule")
)

// Returns the ready actor with the provided id
func find(ready []ReadyActor, id int) (ReadyActor, bool) {
	for _, r := range ready {
		if r.ID == id {
			return r, true
		}
	}
	return ReadyActor{}, false
}

// Checks that t can be taken from the ready set
func admissible(ready []ReadyActor, t trace.Transition) error {
	r, ok := find(ready, t.Actor)
	if !ok {
		return fmt.Errorf("%w: actor %v is not ready", ErrDivergence, t.Actor)
	}
	if t.Choice < 0 || t.Choice >= max(r.Step.Choices, 1) {
		return fmt.Errorf("%w: choice %v of actor %v is out of range, it has %v choices", ErrDivergence, t.Choice, t.Actor, r.Step.Choices)
	}
	return nil
}
