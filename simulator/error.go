package simulator

import (
	"fmt"

	"simkernel/trace"
)

// RunError is returned when a run could not be simulated.
//
// It is either a kernel-fatal error or an error raised while deploying the run.
// Trace is the sequence of transitions leading to the error and can be replayed.
type RunError struct {
	Run   int
	Trace trace.Trace
	Err   error
}

func (re *RunError) Error() string {
	return fmt.Sprintf("Simulator: An error occurred while simulating run %v: %v. Trace: %v", re.Run, re.Err, re.Trace)
}

func (re *RunError) Unwrap() error {
	return re.Err
}
