package guide

import (
	"simkernel/trace"
)

// A guide that initially will follow a provided run before it begins searching the state space.
type GuidedSearch struct {
	run    trace.Trace
	search Global
}

// Create a new GuidedSearch guide
//
// search is the guide that will be used to explore the state space after the provided run has been completed.
// run is the sequence of transitions that will be executed before beginning to search the state space.
func NewGuidedSearch(search Global, run trace.Trace) *GuidedSearch {
	return &GuidedSearch{
		run:    run,
		search: search,
	}
}

func (gs *GuidedSearch) GetRunGuide() RunGuide {
	return &runGuidedSearch{search: gs.search.GetRunGuide(), run: gs.run}
}

func (gs *GuidedSearch) Reset() {
	gs.search.Reset()
}

type runGuidedSearch struct {
	// The guide used to search the state space
	search RunGuide

	// The provided run
	run    trace.Trace
	guided *runReplay

	useGuided bool
}

// Prepare for starting a new run.
//
// Every run starts by following the provided run. The search guide only sees
// the states reached after it, and decides when the exploration is over.
func (gs *runGuidedSearch) StartRun() error {
	gs.guided = newRunReplay(gs.run)
	gs.useGuided = len(gs.run) > 0
	return gs.search.StartRun()
}

func (gs *runGuidedSearch) EndRun() {
	gs.search.EndRun()
}

// Will follow the provided run until it has been completed or until it is unable to find the next transition.
// After that the guide will begin to search the state space using the provided search guide.
func (gs *runGuidedSearch) NextTransition(ready []ReadyActor) (trace.Transition, error) {
	if gs.useGuided {
		t, err := gs.guided.NextTransition(ready)
		if err == nil && !gs.guided.exhausted() {
			return t, nil
		}
		gs.useGuided = false
	}
	return gs.search.NextTransition(ready)
}

func (gs *runGuidedSearch) ExecuteNext(t trace.Transition, exec Executor) error {
	if gs.useGuided {
		err := gs.guided.ExecuteNext(t, exec)
		if gs.guided.exhausted() {
			gs.useGuided = false
		}
		return err
	}
	return gs.search.ExecuteNext(t, exec)
}
