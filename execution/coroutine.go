package execution

import (
	"iter"

	"simkernel/config"
)

// Factory for the stack switching backend.
//
// Every context is a coroutine with its own growable stack. Control is switched
// directly between the maestro and the coroutine without going through the Go scheduler.
type coroutineFactory struct {
	ignorePanics bool
}

func (coroutineFactory) Name() string {
	return config.FactoryCoroutine
}

func (f coroutineFactory) Create(entry func(), cleanup func(), owner Owner, stackSize int) Context {
	c := &coroutine{base: newBase(entry, cleanup, owner, stackSize, f.ignorePanics)}
	c.next, c.release = iter.Pull(c.run)
	return c
}

type coroutine struct {
	base

	next    func() (struct{}, bool)
	release func()
	yield   func(struct{}) bool
}

func (c *coroutine) run(yield func(struct{}) bool) {
	c.yield = yield
	c.body()
}

func (c *coroutine) Start() {
	c.transfer()
}

func (c *coroutine) Resume() {
	c.transfer()
}

func (c *coroutine) transfer() {
	if c.status == Terminated {
		return
	}
	c.status = Running
	if _, ok := c.next(); !ok {
		c.release()
	}
}

func (c *coroutine) Suspend() {
	c.beforeSuspend()
	if !c.yield(struct{}{}) {
		panic(unwindSignal{})
	}
	c.afterResume()
}

func (c *coroutine) Stop() {
	switch c.status {
	case Terminated:
		return
	case Running:
		panic(unwindSignal{})
	}
	c.stopping = true
	c.transfer()
}
