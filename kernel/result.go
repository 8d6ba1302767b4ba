package kernel

import (
	"fmt"
	"strings"

	"simkernel/trace"
)

type Outcome int

const (
	// Every actor terminated
	Completed Outcome = iota
	// Some actors are blocked forever
	Deadlock
	// An actor asserted a property that did not hold
	AssertionViolation
	// The kernel can not continue: stack overflow, protocol error, uncaught panic or divergence
	Fatal
	// The exploration bound was reached before the run terminated
	DepthExceeded
	// The guide decided that the rest of the run is redundant
	Pruned
)

func (o Outcome) String() string {
	switch o {
	case Completed:
		return "completed"
	case Deadlock:
		return "deadlock"
	case AssertionViolation:
		return "assertion-violation"
	case Fatal:
		return "fatal"
	case DepthExceeded:
		return "depth-exceeded"
	case Pruned:
		return "pruned"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// An actor that could never run again when the run ended
type BlockedActor struct {
	ID     int
	Name   string
	Reason string
}

func (ba BlockedActor) String() string {
	return fmt.Sprintf("%v (%v): %v", ba.Name, ba.ID, ba.Reason)
}

// The result of a run
type Result struct {
	Outcome Outcome
	// Transitions executed during the run, in order
	Trace       trace.Trace
	Violation   *Violation
	Blocked     []BlockedActor
	Err         error
	Clock       float64
	Transitions int
}

// Error returns the error describing the outcome, or nil if the run did not fail
func (r Result) Error() error {
	switch r.Outcome {
	case AssertionViolation:
		return r.Violation
	case Deadlock:
		return &DeadlockError{Blocked: r.Blocked, Trace: r.Trace}
	case Fatal:
		return r.Err
	}
	return nil
}

// Violation is reported when an actor asserts a property that does not hold
type Violation struct {
	Actor   int
	Name    string
	Message string
	Trace   trace.Trace
}

func (v *Violation) Error() string {
	return fmt.Sprintf("kernel: assertion violated by %v (%v): %v. Trace: %v", v.Name, v.Actor, v.Message, v.Trace)
}

// DeadlockError describes a run where no actor can make progress and no event is pending
type DeadlockError struct {
	Blocked []BlockedActor
	Trace   trace.Trace
}

func (de *DeadlockError) Error() string {
	blocked := make([]string, len(de.Blocked))
	for i, b := range de.Blocked {
		blocked[i] = b.String()
	}
	return fmt.Sprintf("kernel: deadlock with %v blocked actors: %v. Trace: %v", len(de.Blocked), strings.Join(blocked, "; "), de.Trace)
}
