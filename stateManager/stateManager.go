// Package stateManager collects the runs explored by a simulation.
package stateManager

import "simkernel/kernel"

// Manages the explored state space across several runs.
type StateManager interface {
	GetRunStateManager() *RunStateManager
	AddRun(run kernel.Result)
}
