package guide

import (
	"sync"

	"simkernel/trace"
)

// Basic runs the program exactly once.
//
// It always picks the first ready actor, i.e. the one that has been ready the
// longest, and the first outcome of random simcalls. The resulting order is
// fully deterministic.
type Basic struct {
	sync.Mutex
	started bool
}

func NewBasic() *Basic {
	return &Basic{}
}

func (b *Basic) GetRunGuide() RunGuide {
	return &runBasic{global: b}
}

func (b *Basic) Reset() {
	b.Lock()
	defer b.Unlock()
	b.started = false
}

func (b *Basic) claim() bool {
	b.Lock()
	defer b.Unlock()
	if b.started {
		return false
	}
	b.started = true
	return true
}

type runBasic struct {
	global *Basic
}

func (rb *runBasic) StartRun() error {
	if !rb.global.claim() {
		return NoRunsError
	}
	return nil
}

func (rb *runBasic) EndRun() {}

func (rb *runBasic) NextTransition(ready []ReadyActor) (trace.Transition, error) {
	return first(ready)
}

func (rb *runBasic) ExecuteNext(t trace.Transition, exec Executor) error {
	return exec.Execute(t)
}

func first(ready []ReadyActor) (trace.Transition, error) {
	if len(ready) == 0 {
		return trace.Transition{}, ErrNoReady
	}
	return trace.Transition{Actor: ready[0].ID, Choice: 0}, nil
}
