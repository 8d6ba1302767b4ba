// Package failureManager injects host failures into the simulated runs.
package failureManager

import "simkernel/kernel"

// Used to manage the correctness of hosts across the runs of a simulation
type FailureManager interface {
	GetRunFailureManager() RunFailureManager
}

type RunFailureManager interface {
	// Initialize the failure manager with the hosts deployed on the kernel of this run and schedule the failures
	Init(k *kernel.Kernel) error
	// Return a map of the host names and their status
	CorrectHosts() map[string]bool
	// Subscribe to updates about host status.
	// The callback is called by the maestro with the host name and its new status.
	Subscribe(callback func(host string, status bool))
}

// A failure manager where no host ever fails
func None() FailureManager {
	return NewPerfectFailureManager()
}
