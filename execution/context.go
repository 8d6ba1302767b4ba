// Package execution provides the contexts actors run in.
//
// A Context is a suspendable unit of execution with its own stack. Exactly one
// context, or the maestro, runs at any time: control is handed over explicitly
// with Start, Resume and Suspend. Contexts are created by a Factory, chosen once
// per kernel by name.
package execution

import (
	"fmt"
	"runtime/debug"

	"simkernel/config"
)

type Status int

const (
	Created Status = iota
	Running
	Suspended
	Terminated
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Suspended:
		return "suspended"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// The owner of a context. Usually the actor running in it.
type Owner interface {
	String() string
}

type Context interface {
	// Transfer control into the context for the first time.
	// Blocks the maestro until the context suspends or terminates.
	Start()
	// Transfer control back into a suspended context.
	// Blocks the maestro until the context suspends or terminates.
	Resume()
	// Give control back to the maestro. Must only be called from inside the context.
	Suspend()
	// Force the context to unwind. Only the registered cleanup runs, no further actor code.
	Stop()

	Status() Status
	// Fatal condition observed while running the context, e.g. a stack overflow or a panic.
	Err() error
	// Verify that the context is within its stack budget. Unwinds the context if it is not.
	CheckStack()
	Owner() Owner
}

// Creates contexts. Every kernel uses exactly one Factory.
type Factory interface {
	Name() string
	// Create a context that will run entry and then cleanup.
	// stackSize is in bytes. A non-positive value selects the default stack size.
	Create(entry func(), cleanup func(), owner Owner, stackSize int) Context
}

// NewFactory returns the factory with the provided name.
//
// If ignorePanics is true panics raised by actors are not caught. This makes it
// possible to inspect the state with a debugger, but will stop the simulation.
// Otherwise they are reported as a PanicError through Context.Err.
func NewFactory(name string, ignorePanics bool) (Factory, error) {
	switch name {
	case config.FactoryCoroutine, "":
		return coroutineFactory{ignorePanics: ignorePanics}, nil
	case config.FactoryGoroutine:
		return threadedFactory{name: config.FactoryGoroutine, ignorePanics: ignorePanics}, nil
	case config.FactoryThread:
		return threadedFactory{name: config.FactoryThread, lockThread: true, ignorePanics: ignorePanics}, nil
	}
	return nil, &config.ConfigurationError{Key: config.KeyFactory, Value: name, Reason: "unknown context factory"}
}

// Sentinel panic value used to unwind a context
type unwindSignal struct{}

// Unwind terminates the calling context early. The context cleanup still runs.
//
// Must only be called from inside a context.
func Unwind() {
	panic(unwindSignal{})
}

// Shared state of all the context implementations.
//
// The backends only differ in how control is transferred. What happens inside the context is handled here.
type base struct {
	entry   func()
	cleanup func()
	owner   Owner

	guard        *guard
	status       Status
	stopping     bool
	ignorePanics bool
	err          error
}

func newBase(entry, cleanup func(), owner Owner, stackSize int, ignorePanics bool) base {
	if stackSize <= 0 {
		stackSize = config.DefaultStackSize
	}
	return base{
		entry:        entry,
		cleanup:      cleanup,
		owner:        owner,
		guard:        newGuard(stackSize),
		status:       Created,
		ignorePanics: ignorePanics,
	}
}

// Runs the body of the context. Called on the stack of the context.
func (b *base) body() {
	defer b.finish()
	if b.stopping {
		return
	}
	b.guard.mark()
	b.entry()
}

func (b *base) finish() {
	if r := recover(); r != nil {
		if _, ok := r.(unwindSignal); !ok {
			if b.ignorePanics {
				b.status = Terminated
				panic(r)
			}
			b.err = &PanicError{Owner: b.owner.String(), Value: r, Stack: debug.Stack()}
		}
	}
	if b.cleanup != nil {
		b.runCleanup()
	}
	b.status = Terminated
}

// The cleanup must not resurrect the context, so unwinding inside of it is swallowed.
func (b *base) runCleanup() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(unwindSignal); !ok && b.err == nil {
				b.err = &PanicError{Owner: b.owner.String(), Value: r, Stack: debug.Stack()}
			}
		}
	}()
	b.cleanup()
}

// Called inside the context right before control is handed to the maestro
func (b *base) beforeSuspend() {
	b.CheckStack()
	b.status = Suspended
}

// Called inside the context right after it has been resumed
func (b *base) afterResume() {
	if b.stopping {
		panic(unwindSignal{})
	}
}

func (b *base) CheckStack() {
	if err := b.guard.check(b.owner); err != nil {
		b.err = err
		panic(unwindSignal{})
	}
}

func (b *base) Status() Status {
	return b.status
}

func (b *base) Err() error {
	return b.err
}

func (b *base) Owner() Owner {
	return b.owner
}
