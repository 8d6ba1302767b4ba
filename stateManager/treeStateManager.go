package stateManager

import (
	"fmt"
	"io"
	"sync"

	"simkernel/kernel"
	"simkernel/trace"
	"simkernel/tree"
)

// Organizes the explored runs as a tree of transitions
//
// The root is the initial state. A path from the root to a leaf is one run.
// Runs sharing a prefix share the corresponding branch.
type TreeStateManager struct {
	sync.RWMutex
	tree *tree.Arena[trace.Transition]

	// The outcome of the runs ending in a node
	outcomes map[int]kernel.Outcome
	runs     int
}

func NewTreeStateManager() *TreeStateManager {
	sm := &TreeStateManager{}
	sm.Reset()
	return sm
}

// Adds the run to the explored state space.
//
// Is safe to call from multiple goroutines.
func (sm *TreeStateManager) AddRun(run kernel.Result) {
	sm.Lock()
	defer sm.Unlock()

	sm.runs++
	current := sm.tree.Root()
	for _, t := range run.Trace {
		// If the transition already is a child of the current state, follow it
		if next, ok := sm.tree.GetChild(current, t); ok {
			current = next
			continue
		}
		// Otherwise add it as a child
		current = sm.tree.AddChild(current, t)
	}
	sm.outcomes[current] = run.Outcome
}

// Create a RunStateManager to be used to collect the state of a new run
func (sm *TreeStateManager) GetRunStateManager() *RunStateManager {
	return NewRunStateManager(sm)
}

// Write the Newick representation of the state tree to the writer
func (sm *TreeStateManager) Export(wrt io.Writer) {
	sm.RLock()
	defer sm.RUnlock()
	fmt.Fprint(wrt, sm.tree.Newick())
}

// States returns the number of distinct states explored, the initial state included
func (sm *TreeStateManager) States() int {
	sm.RLock()
	defer sm.RUnlock()
	return sm.tree.Len()
}

// Runs returns the number of runs added
func (sm *TreeStateManager) Runs() int {
	sm.RLock()
	defer sm.RUnlock()
	return sm.runs
}

// Traces returns the distinct runs explored together with their outcome
func (sm *TreeStateManager) Traces() map[string]kernel.Outcome {
	sm.RLock()
	defer sm.RUnlock()
	out := map[string]kernel.Outcome{}
	for node, outcome := range sm.outcomes {
		path := sm.tree.Path(node)
		run := make(trace.Trace, 0, len(path)-1)
		for _, i := range path[1:] {
			run = append(run, sm.tree.Payload(i))
		}
		out[run.String()] = outcome
	}
	return out
}

func (sm *TreeStateManager) Reset() {
	sm.Lock()
	defer sm.Unlock()
	sm.tree = tree.New(trace.Transition{}, func(a, b trace.Transition) bool { return a == b })
	sm.outcomes = make(map[int]kernel.Outcome)
	sm.runs = 0
}
