package simcall

import (
	"errors"
	"fmt"
)

type Status int

const (
	// Issued by the actor, not yet handled by the maestro
	Pending Status = iota
	// Handled, waiting for an external completion
	Blocked
	Done
	Canceled
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Blocked:
		return "blocked"
	case Done:
		return "done"
	case Canceled:
		return "canceled"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

var ErrCanceled = errors.New("simcall: the simcall has been canceled")

// Window tracks whether the maestro is currently running.
//
// Simulation state may only be written while the window is open.
type Window struct {
	open bool
}

func (w *Window) Open()        { w.open = true }
func (w *Window) Close()       { w.open = false }
func (w *Window) Active() bool { return w.open }

// A request from an actor to the maestro
type Simcall struct {
	ID     uint64
	Issuer int
	Kind   Kind
	Args   any

	status Status
	result any
	err    error
	window *Window

	// Called after the simcall has been answered, inside the maestro window
	OnAnswer func(*Simcall)
}

// Create a new pending simcall guarded by the provided maestro window
func New(id uint64, issuer int, kind Kind, args any, w *Window) *Simcall {
	return &Simcall{
		ID:     id,
		Issuer: issuer,
		Kind:   kind,
		Args:   args,
		status: Pending,
		window: w,
	}
}

func (sc *Simcall) Status() Status {
	return sc.status
}

// Result returns the answer of the simcall. Only meaningful once the status is Done.
func (sc *Simcall) Result() (any, error) {
	return sc.result, sc.err
}

// Block marks that the simcall will be answered later by an external completion
func (sc *Simcall) Block() {
	if sc.status == Pending {
		sc.status = Blocked
	}
}

// Answer writes the result of the simcall.
//
// It is the only writer of the result slot. Answering outside the maestro window
// or answering twice is a ProtocolError and panics. Answering a canceled
// simcall is a no-op that returns ErrCanceled.
func (sc *Simcall) Answer(value any, err error) error {
	if sc.status == Canceled {
		return ErrCanceled
	}
	if sc.window == nil || !sc.window.Active() {
		panic(&ProtocolError{Simcall: sc, Reason: "answered outside of the maestro"})
	}
	if sc.status == Done {
		panic(&ProtocolError{Simcall: sc, Reason: "answered twice"})
	}
	sc.result = value
	sc.err = err
	sc.status = Done
	if sc.OnAnswer != nil {
		sc.OnAnswer(sc)
	}
	return nil
}

// Cancel the simcall. The result slot is never written afterwards.
// Returns false if the simcall had already been answered.
func (sc *Simcall) Cancel() bool {
	if sc.status == Done || sc.status == Canceled {
		return false
	}
	sc.status = Canceled
	return true
}

func (sc *Simcall) String() string {
	return fmt.Sprintf("simcall %v (%v) from actor %v [%v]", sc.ID, sc.Kind, sc.Issuer, sc.status)
}

// ProtocolError is raised when the simcall protocol is broken.
//
// It is kernel-fatal: the simulation state can no longer be trusted.
type ProtocolError struct {
	Simcall *Simcall
	Kind    Kind
	Reason  string
}

func (pe *ProtocolError) Error() string {
	if pe.Simcall != nil {
		return fmt.Sprintf("simcall: protocol error on %v: %v", pe.Simcall, pe.Reason)
	}
	return fmt.Sprintf("simcall: protocol error on %v simcall: %v", pe.Kind, pe.Reason)
}
