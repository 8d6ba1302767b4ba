package guide

import (
	"math/rand"
	"sync"

	"simkernel/trace"
)

// A guide that randomly picks the next transition among the ready actors.
//
// It is useful for testing a random selection of the state space when the state space is to large to perform an exhaustive search.
// It provides no guarantee that all errors have been found, and the same run may be simulated several times.
// It does not have a designated stop point and runs until the maximum number of runs is reached.
type Random struct {
	sync.Mutex
	seed int64
	rand *rand.Rand
}

// Create a new Random guide
//
// The seed is used to generate the seeds of the run guides, so a simulation
// with a single run guide is reproducible.
func NewRandom(seed int64) *Random {
	return &Random{
		seed: seed,
		rand: rand.New(rand.NewSource(seed)),
	}
}

func (r *Random) GetRunGuide() RunGuide {
	r.Lock()
	defer r.Unlock()
	return &runRandom{global: r, rand: rand.New(rand.NewSource(r.rand.Int63()))}
}

func (r *Random) Reset() {
	r.Lock()
	defer r.Unlock()
	r.rand = rand.New(rand.NewSource(r.seed))
}

type runRandom struct {
	global *Random
	rand   *rand.Rand

	// The pick is kept until it has been executed, so that NextTransition can be called repeatedly
	picked *trace.Transition
}

func (rr *runRandom) StartRun() error {
	rr.picked = nil
	return nil
}

func (rr *runRandom) EndRun() {}

func (rr *runRandom) NextTransition(ready []ReadyActor) (trace.Transition, error) {
	if len(ready) == 0 {
		return trace.Transition{}, ErrNoReady
	}
	if rr.picked != nil {
		if admissible(ready, *rr.picked) == nil {
			return *rr.picked, nil
		}
	}
	r := ready[rr.rand.Intn(len(ready))]
	t := trace.Transition{Actor: r.ID}
	if r.Step.Choices > 1 {
		t.Choice = rr.rand.Intn(r.Step.Choices)
	}
	rr.picked = &t
	return t, nil
}

func (rr *runRandom) ExecuteNext(t trace.Transition, exec Executor) error {
	rr.picked = nil
	return exec.Execute(t)
}
