package guide

import (
	"sync"

	"simkernel/simcall"
	"simkernel/trace"
	"simkernel/tree"
)

// One explored state
type state struct {
	// The transition leading from the parent to this state
	via trace.Transition

	visited bool
	// Ready actors and their next step, in scheduling order
	enabled map[int]simcall.Step
	order   []int

	// Transitions that are redundant to explore from this state
	sleep map[trace.Transition]simcall.Step
	// Transitions added to the work stack, or picked directly by a run
	queued map[trace.Transition]bool
	// Transitions a run has started exploring
	done     map[trace.Transition]bool
	children map[trace.Transition]int
}

func newState(via trace.Transition) *state {
	return &state{
		via:      via,
		enabled:  make(map[int]simcall.Step),
		sleep:    make(map[trace.Transition]simcall.Step),
		queued:   make(map[trace.Transition]bool),
		done:     make(map[trace.Transition]bool),
		children: make(map[trace.Transition]int),
	}
}

// A transition still to be explored from a state
type claim struct {
	node int
	t    trace.Transition
	// The first run, exploring from the initial state without a forced transition
	fresh bool
}

// DPOR explores every meaningfully different interleaving of the program.
//
// It implements stateless dynamic partial order reduction: each run executes
// the program from the start, while races between dependent transitions found
// along the way add backtrack points to earlier states. Sleep sets prune runs
// that only reorder independent transitions. Explored states are kept in an
// arena, and a state is restored by re-executing the path leading to it.
//
// Several runs can be explored concurrently.
type DPOR struct {
	// Used to wait for a change in d.ongoing or d.work. The condition is len(d.work) == 0 and d.ongoing > 0
	cond *sync.Cond

	arena *tree.Arena[*state]
	// Stack of unexplored transitions
	work []claim

	// Number of runs currently being explored
	ongoing int
	claimed int
}

func NewDPOR() *DPOR {
	d := &DPOR{cond: sync.NewCond(new(sync.Mutex))}
	d.Reset()
	return d
}

func (d *DPOR) GetRunGuide() RunGuide {
	return &runDPOR{global: d}
}

func (d *DPOR) Reset() {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	d.arena = tree.New(newState(trace.Transition{}), func(a, b *state) bool { return a == b })
	d.work = []claim{{fresh: true}}
	d.ongoing = 0
	d.claimed = 0
}

// Stats returns the number of states discovered and the number of runs started
func (d *DPOR) Stats() (states int, runs int) {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	return d.arena.Len(), d.claimed
}

// Pop the latest unexplored transition.
//
// If there are no available transitions wait until there are.
// If at the same time no run is ongoing there will never be a new transition, since only runs add transitions.
// All runs have therefore been explored and false is returned.
func (d *DPOR) getClaim() (claim, bool) {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	for len(d.work) == 0 && d.ongoing > 0 {
		d.cond.Wait()
	}
	if len(d.work) == 0 {
		return claim{}, false
	}
	c := d.work[len(d.work)-1]
	d.work = d.work[:len(d.work)-1]
	d.ongoing++
	d.claimed++
	return c, true
}

func (d *DPOR) endRun() {
	d.cond.L.Lock()
	defer d.cond.L.Unlock()
	d.ongoing--
	d.cond.Broadcast()
}

// Must be called with the lock held
func (d *DPOR) addBacktrack(node int, actor int) {
	st := d.arena.Payload(node)
	step := st.enabled[actor]
	for c := 0; c < max(step.Choices, 1); c++ {
		t := trace.Transition{Actor: actor, Choice: c}
		if st.queued[t] {
			continue
		}
		if _, asleep := st.sleep[t]; asleep {
			continue
		}
		st.queued[t] = true
		d.work = append(d.work, claim{node: node, t: t})
		d.cond.Broadcast()
	}
}

// Adds actor to the backtrack set of node. If the actor is not ready in that state every ready actor is added instead.
// Must be called with the lock held
func (d *DPOR) addRace(node int, actor int) {
	st := d.arena.Payload(node)
	if _, ok := st.enabled[actor]; ok {
		d.addBacktrack(node, actor)
		return
	}
	for _, q := range st.order {
		d.addBacktrack(node, q)
	}
}

func dependent(a int, as simcall.Step, b int, bs simcall.Step) bool {
	return a == b || as.DependentWith(bs)
}

type record struct {
	actor int
	step  simcall.Step
	clock vclock
}

type runDPOR struct {
	global *DPOR

	// Transitions leading to the claimed state, followed by the claimed transition
	replay trace.Trace
	// Arena indices of the states visited so far. The last one is the current state
	path []int
	// Sleep set of the current state, once past the replayed prefix
	sleep map[trace.Transition]simcall.Step
	// Sleep set of the state reached by the claimed transition
	claimSleep map[trace.Transition]simcall.Step

	records        []record
	actorClocks    map[int]vclock
	resourceClocks map[string]vclock
	// Join of the clocks of all global transitions
	globalClock vclock
	// Join of the clocks of all transitions
	allClock vclock

	picked *trace.Transition
}

func (rd *runDPOR) StartRun() error {
	c, ok := rd.global.getClaim()
	if !ok {
		return NoRunsError
	}

	rd.path = []int{0}
	rd.sleep = map[trace.Transition]simcall.Step{}
	rd.claimSleep = nil
	rd.records = nil
	rd.actorClocks = map[int]vclock{}
	rd.resourceClocks = map[string]vclock{}
	rd.globalClock = vclock{}
	rd.allClock = vclock{}
	rd.picked = nil
	rd.replay = nil

	if !c.fresh {
		rd.prepareClaim(c)
	}
	return nil
}

// Computes the prefix to replay and the sleep set of the claimed transition.
func (rd *runDPOR) prepareClaim(c claim) {
	d := rd.global
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	path := d.arena.Path(c.node)
	rd.replay = make(trace.Trace, 0, len(path))
	for _, idx := range path[1:] {
		rd.replay = append(rd.replay, d.arena.Payload(idx).via)
	}
	rd.replay = append(rd.replay, c.t)

	// Transitions explored before c.t from the same state, or asleep there, stay asleep
	// as long as they are independent of the transitions taken afterwards.
	st := d.arena.Payload(c.node)
	tStep := st.enabled[c.t.Actor]
	rd.claimSleep = map[trace.Transition]simcall.Step{}
	for x, s := range st.sleep {
		if !dependent(x.Actor, s, c.t.Actor, tStep) {
			rd.claimSleep[x] = s
		}
	}
	for x := range st.done {
		s := st.enabled[x.Actor]
		if x != c.t && !dependent(x.Actor, s, c.t.Actor, tStep) {
			rd.claimSleep[x] = s
		}
	}
	st.done[c.t] = true
}

func (rd *runDPOR) EndRun() {
	rd.global.endRun()
}

func (rd *runDPOR) NextTransition(ready []ReadyActor) (trace.Transition, error) {
	if len(ready) == 0 {
		return trace.Transition{}, ErrNoReady
	}
	d := rd.global
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	node := rd.path[len(rd.path)-1]
	st := d.arena.Payload(node)
	if !st.visited {
		st.visited = true
		for _, r := range ready {
			st.enabled[r.ID] = r.Step
			st.order = append(st.order, r.ID)
		}
	}
	for _, r := range ready {
		if _, ok := rd.actorClocks[r.ID]; !ok {
			// Actors inherit the causality of the actor that created them
			rd.actorClocks[r.ID] = rd.actorClocks[r.Parent].copy()
		}
	}

	pos := len(rd.path) - 1
	if pos < len(rd.replay) {
		t := rd.replay[pos]
		if err := admissible(ready, t); err != nil {
			return trace.Transition{}, err
		}
		return t, nil
	}

	if rd.picked != nil {
		return *rd.picked, nil
	}

	rd.analyze(ready)

	for _, r := range ready {
		for c := 0; c < max(r.Step.Choices, 1); c++ {
			t := trace.Transition{Actor: r.ID, Choice: c}
			if _, asleep := rd.sleep[t]; asleep {
				continue
			}
			st.queued[t] = true
			st.done[t] = true
			// The other outcomes of a random simcall are explored as siblings
			d.addBacktrack(node, t.Actor)
			rd.picked = &t
			return t, nil
		}
	}
	// Every ready transition is asleep: all continuations have already been covered
	return trace.Transition{}, ErrPruned
}

// Race analysis of the current state.
//
// For every ready actor find the last executed transition that is dependent with
// its next step and does not happen before it. The order of the two could be
// reversed, so the actor is added to the backtrack set of the state preceding it.
//
// Actors that were ready in the previous state but were disabled by the last
// transition (killed, suspended, or beaten to the last message of a mailbox) are
// analyzed with the step they had pending, since they will not be presented again.
// Must be called with the lock held.
func (rd *runDPOR) analyze(ready []ReadyActor) {
	for _, r := range ready {
		rd.race(r.ID, r.Step)
	}
	if len(rd.path) < 2 || len(rd.records) == 0 {
		return
	}
	prev := rd.global.arena.Payload(rd.path[len(rd.path)-2])
	last := rd.records[len(rd.records)-1].actor
	for _, id := range prev.order {
		if id == last {
			continue
		}
		if _, ok := find(ready, id); !ok {
			rd.race(id, prev.enabled[id])
		}
	}
}

func (rd *runDPOR) race(actor int, step simcall.Step) {
	clock := rd.actorClocks[actor]
	for i := len(rd.records) - 1; i >= 0; i-- {
		rec := rd.records[i]
		if rec.actor == actor || !dependent(rec.actor, rec.step, actor, step) {
			continue
		}
		if clock.includes(rec.actor, i) {
			continue
		}
		rd.global.addRace(rd.path[i], actor)
		return
	}
}

func (rd *runDPOR) ExecuteNext(t trace.Transition, exec Executor) error {
	if err := exec.Execute(t); err != nil {
		return err
	}
	d := rd.global
	d.cond.L.Lock()
	defer d.cond.L.Unlock()

	rd.picked = nil
	node := rd.path[len(rd.path)-1]
	st := d.arena.Payload(node)
	step := st.enabled[t.Actor]
	rd.record(t.Actor, step)

	pos := len(rd.path) - 1
	switch {
	case pos == len(rd.replay)-1:
		rd.sleep = rd.claimSleep
	case pos >= len(rd.replay):
		next := map[trace.Transition]simcall.Step{}
		for x, s := range rd.sleep {
			if !dependent(x.Actor, s, t.Actor, step) {
				next[x] = s
			}
		}
		rd.sleep = next
	}

	child, ok := st.children[t]
	if !ok {
		cs := newState(t)
		for x, s := range rd.sleep {
			cs.sleep[x] = s
		}
		child = d.arena.AddChild(node, cs)
		st.children[t] = child
	}
	rd.path = append(rd.path, child)
	return nil
}

// Computes the vector clock of a newly executed transition
func (rd *runDPOR) record(actor int, step simcall.Step) {
	i := len(rd.records)
	c := rd.actorClocks[actor].copy()
	if step.Kind.Global() {
		c.join(rd.allClock)
	} else {
		c.join(rd.globalClock)
		if step.Resource != "" {
			c.join(rd.resourceClocks[step.Resource])
		}
	}
	c[actor] = i + 1

	rd.records = append(rd.records, record{actor: actor, step: step, clock: c})
	rd.actorClocks[actor] = c
	rd.allClock.join(c)
	if step.Kind.Global() {
		rd.globalClock.join(c)
	}
	if step.Resource != "" {
		rc, ok := rd.resourceClocks[step.Resource]
		if !ok {
			rc = vclock{}
			rd.resourceClocks[step.Resource] = rc
		}
		rc.join(c)
	}
}
