package simulator

import (
	"fmt"
	"strings"
	"time"

	"simkernel/kernel"
)

// The results of a simulation
type Report struct {
	// Unique id of the simulation, also found in the logs
	Session  string
	Runs     []kernel.Result
	Duration time.Duration
	// True if the simulation stopped early because of a failing run
	Interrupted bool
}

// Count returns the number of runs that ended with the outcome
func (r *Report) Count(o kernel.Outcome) int {
	n := 0
	for _, res := range r.Runs {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// Failures returns the runs that violated an assertion, and those that deadlocked if deadlocks count as failures
func (r *Report) Failures(deadlockIsFailure bool) []kernel.Result {
	out := []kernel.Result{}
	for _, res := range r.Runs {
		if failed(res, deadlockIsFailure) {
			out = append(out, res)
		}
	}
	return out
}

func failed(res kernel.Result, deadlockIsFailure bool) bool {
	switch res.Outcome {
	case kernel.AssertionViolation, kernel.Fatal:
		return true
	case kernel.Deadlock:
		return deadlockIsFailure
	}
	return false
}

func (r *Report) String() string {
	parts := []string{}
	for _, o := range []kernel.Outcome{kernel.Completed, kernel.Deadlock, kernel.AssertionViolation, kernel.Fatal, kernel.DepthExceeded, kernel.Pruned} {
		if n := r.Count(o); n > 0 {
			parts = append(parts, fmt.Sprintf("%v: %v", o, n))
		}
	}
	return fmt.Sprintf("Session %v: %v runs in %v (%v)", r.Session, len(r.Runs), r.Duration, strings.Join(parts, ", "))
}
