package guide

import (
	"sync"

	"simkernel/trace"
)

// Replay forces a single run to follow a recorded trace.
//
// A transition of the trace that is not ready when its turn comes is reported
// as ErrDivergence. Once the trace has been consumed the run continues like Basic.
type Replay struct {
	sync.Mutex
	run  trace.Trace
	done bool
}

func NewReplay(run trace.Trace) *Replay {
	return &Replay{run: run}
}

func (r *Replay) GetRunGuide() RunGuide {
	return &runReplay{global: r}
}

func (r *Replay) Reset() {
	r.Lock()
	defer r.Unlock()
	r.done = false
}

func (r *Replay) claim() (trace.Trace, bool) {
	r.Lock()
	defer r.Unlock()
	if r.done {
		return nil, false
	}
	r.done = true
	return r.run, true
}

type runReplay struct {
	global *Replay

	// A slice of the run to be replayed with transitions in order
	run trace.Trace
	// The index of the next transition
	index int
}

func newRunReplay(run trace.Trace) *runReplay {
	return &runReplay{run: run}
}

func (rr *runReplay) StartRun() error {
	run, ok := rr.global.claim()
	if !ok {
		return NoRunsError
	}
	rr.run = run
	rr.index = 0
	return nil
}

func (rr *runReplay) EndRun() {
	rr.index = 0
	rr.run = nil
}

// Reports whether every transition of the trace has been executed
func (rr *runReplay) exhausted() bool {
	return rr.index >= len(rr.run)
}

func (rr *runReplay) NextTransition(ready []ReadyActor) (trace.Transition, error) {
	if rr.exhausted() {
		return first(ready)
	}
	t := rr.run[rr.index]
	if err := admissible(ready, t); err != nil {
		return trace.Transition{}, err
	}
	return t, nil
}

func (rr *runReplay) ExecuteNext(t trace.Transition, exec Executor) error {
	if err := exec.Execute(t); err != nil {
		return err
	}
	if !rr.exhausted() {
		rr.index++
	}
	return nil
}
