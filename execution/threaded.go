package execution

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Factory for the backends running every context on its own goroutine.
//
// Control is passed back and forth through a pair of binary semaphores. With
// lockThread the goroutine is wired to its own OS thread for its whole life,
// which makes it safe to call blocking code that depends on thread identity.
type threadedFactory struct {
	name         string
	lockThread   bool
	ignorePanics bool
}

func (f threadedFactory) Name() string {
	return f.name
}

func (f threadedFactory) Create(entry func(), cleanup func(), owner Owner, stackSize int) Context {
	t := &threaded{
		base:       newBase(entry, cleanup, owner, stackSize, f.ignorePanics),
		lockThread: f.lockThread,
	}
	if f.lockThread {
		t.toContext, t.toMaestro = newSemGate(), newSemGate()
	} else {
		t.toContext, t.toMaestro = newChanGate(), newChanGate()
	}
	return t
}

// A binary semaphore used to hand over control in one direction
type gate interface {
	signal()
	wait()
}

type chanGate chan struct{}

func newChanGate() chanGate {
	return make(chan struct{})
}

func (g chanGate) signal() { g <- struct{}{} }
func (g chanGate) wait()   { <-g }

type semGate struct {
	sem *semaphore.Weighted
}

// The semaphore starts out drained, so the first wait blocks until signal is called
func newSemGate() semGate {
	sem := semaphore.NewWeighted(1)
	sem.TryAcquire(1)
	return semGate{sem: sem}
}

func (g semGate) signal() { g.sem.Release(1) }

func (g semGate) wait() {
	// Can only fail if the context is canceled
	_ = g.sem.Acquire(context.Background(), 1)
}

type threaded struct {
	base
	lockThread bool

	toContext gate
	toMaestro gate
}

func (t *threaded) Start() {
	if t.status != Created {
		return
	}
	t.status = Running
	go t.run()
	t.toMaestro.wait()
}

func (t *threaded) run() {
	if t.lockThread {
		// The goroutine exits with the thread locked, which terminates the thread
		runtime.LockOSThread()
	}
	defer t.toMaestro.signal()
	t.body()
}

func (t *threaded) Resume() {
	if t.status != Suspended {
		return
	}
	t.status = Running
	t.toContext.signal()
	t.toMaestro.wait()
}

func (t *threaded) Suspend() {
	t.beforeSuspend()
	t.toMaestro.signal()
	t.toContext.wait()
	t.afterResume()
}

func (t *threaded) Stop() {
	switch t.status {
	case Terminated:
		return
	case Running:
		panic(unwindSignal{})
	}
	t.stopping = true
	if t.status == Created {
		t.Start()
		return
	}
	t.Resume()
}
