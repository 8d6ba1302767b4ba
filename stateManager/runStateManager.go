package stateManager

import (
	"simkernel/kernel"
	"simkernel/simcall"
	"simkernel/trace"
)

// A type that manages the state of a single run at a time.
//
// It observes the kernel of the run. Should only be accessed from a single goroutine at a time.
// When the run has been completed and EndRun is called the run is added to the StateManager and the state is reset.
// The RunStateManager can then safely be used on a new run.
type RunStateManager struct {
	kernel.NopObserver

	sm StateManager

	run   trace.Trace
	steps []simcall.Step
}

// Create a new RunStateManager
//
// Is initialized with a reference to the StateManager that created it
func NewRunStateManager(sm StateManager) *RunStateManager {
	return &RunStateManager{sm: sm}
}

// Record the transition executed by the kernel
func (rsm *RunStateManager) TransitionExecuted(t trace.Transition, step simcall.Step) {
	rsm.run = append(rsm.run, t)
	rsm.steps = append(rsm.steps, step)
}

// Steps returns the footprint of the transitions executed so far in the run
func (rsm *RunStateManager) Steps() []simcall.Step {
	return rsm.steps
}

func (rsm *RunStateManager) EndRun(res kernel.Result) {
	if res.Trace == nil {
		res.Trace = rsm.run
	}
	rsm.sm.AddRun(res)
	rsm.run = nil
	rsm.steps = nil
}
