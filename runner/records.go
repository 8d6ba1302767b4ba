package runner

import (
	"fmt"

	"simkernel/kernel"
	"simkernel/simcall"
	"simkernel/trace"
)

type Record interface {
	// The actor the record is about. 0 if it is about the whole run
	Target() int
	fmt.Stringer
}

// Sent after the kernel has executed a transition
type TransitionRecord struct {
	Transition trace.Transition
	Step       simcall.Step
	Clock      float64
}

func (tr TransitionRecord) Target() int {
	return tr.Transition.Actor
}

func (tr TransitionRecord) String() string {
	return fmt.Sprintf("[Transition %v - %v at %v]", tr.Transition, tr.Step, tr.Clock)
}

// Sent when the simcall of an actor is answered, or canceled because the actor was killed
type SimcallRecord struct {
	Actor    int
	Kind     simcall.Kind
	Canceled bool
}

func (sr SimcallRecord) Target() int {
	return sr.Actor
}

func (sr SimcallRecord) String() string {
	if sr.Canceled {
		return fmt.Sprintf("[Simcall Canceled - %v of %v]", sr.Kind, sr.Actor)
	}
	return fmt.Sprintf("[Simcall Answered - %v of %v]", sr.Kind, sr.Actor)
}

// Sent once when the run ends
type OutcomeRecord struct {
	Result kernel.Result
}

func (or OutcomeRecord) Target() int {
	return 0
}

func (or OutcomeRecord) String() string {
	return fmt.Sprintf("[Outcome - %v after %v transitions]", or.Result.Outcome, or.Result.Transitions)
}

// Turns the notifications of the kernel into records
type recorder struct {
	k       *kernel.Kernel
	records chan<- Record
}

func (r *recorder) TransitionExecuted(t trace.Transition, step simcall.Step) {
	r.records <- TransitionRecord{Transition: t, Step: step, Clock: r.k.Now()}
}

func (r *recorder) SimcallAnswered(sc *simcall.Simcall, _ bool) {
	r.records <- SimcallRecord{Actor: sc.Issuer, Kind: sc.Kind}
}

func (r *recorder) SimcallCanceled(sc *simcall.Simcall) {
	r.records <- SimcallRecord{Actor: sc.Issuer, Kind: sc.Kind, Canceled: true}
}
