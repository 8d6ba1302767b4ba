package checking

import "simkernel/kernel"

// A function evaluated on every run.
// It returns true if the predicate holds for the run and false otherwise
type Predicate func(res kernel.Result) bool

// Check that the predicate holds eventually.
//
// Return a predicate that runs the provided predicate on runs that ended.
// Runs that were cut by the depth bound or pruned by the guide always satisfy it.
func Eventually(pred Predicate) Predicate {
	return func(res kernel.Result) bool {
		if !Terminal(res) {
			return true
		}
		return pred(res)
	}
}

// Terminal reports whether the run went on until no actor could run
func Terminal(res kernel.Result) bool {
	return res.Outcome != kernel.DepthExceeded && res.Outcome != kernel.Pruned
}

// No actor of the run violated an assertion
func NoViolation(res kernel.Result) bool {
	return res.Outcome != kernel.AssertionViolation
}

func NoDeadlock(res kernel.Result) bool {
	return res.Outcome != kernel.Deadlock
}

func NoFatal(res kernel.Result) bool {
	return res.Outcome != kernel.Fatal
}

// The run terminated within the depth bound
func Terminates(res kernel.Result) bool {
	return res.Outcome != kernel.DepthExceeded
}

// Check that cond returns true for all the actors that were blocked when the run ended
func ForAllBlocked(cond func(kernel.BlockedActor) bool, res kernel.Result) bool {
	for _, b := range res.Blocked {
		if !cond(b) {
			return false
		}
	}
	return true
}
