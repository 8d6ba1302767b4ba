package simkernel

import (
	"simkernel/config"
	"simkernel/guide"
	"simkernel/trace"
)

// NewGuide creates the guide selected by the model-check keys of cfg.
//
// The replay guide reads its trace from the model-check/replay value. It is
// either a trace in text form or the path of a trace file.
func NewGuide(cfg *config.Config) (guide.Global, error) {
	switch cfg.Guide {
	case config.GuideBasic:
		return guide.NewBasic(), nil
	case config.GuideDPOR:
		return guide.NewDPOR(), nil
	case config.GuideRandom:
		return guide.NewRandom(cfg.Seed), nil
	case config.GuideReplay:
		run, err := ReadTrace(cfg.Replay)
		if err != nil {
			return nil, &config.ConfigurationError{Key: config.KeyReplay, Value: cfg.Replay, Reason: err.Error()}
		}
		return guide.NewReplay(run), nil
	}
	return nil, &config.ConfigurationError{Key: config.KeyGuide, Value: cfg.Guide, Reason: "unknown exploration guide"}
}

// ReadTrace parses s as a trace in text form, or loads it from the file s if it is not one
func ReadTrace(s string) (trace.Trace, error) {
	if run, err := trace.Parse(s); err == nil {
		return run, nil
	}
	return trace.Load(s)
}

// Use a random walk guide for the simulation.
//
// The random walk guide uniformly picks the next transition among the ready actors, and the outcome of random simcalls.
// It does not have a designated stop point, and will continue to schedule transitions until maxRuns is reached.
// It does not guarantee that all runs have been tested, nor does it guarantee that the same run will not be simulated multiple times.
func RandomWalk(seed int64) SimulatorOption {
	return config.GuideOption{G: guide.NewRandom(seed)}
}

// Use the DPOR guide for the simulation.
//
// The DPOR guide systematically explores the runs of the program. Runs that
// only differ in the order of independent transitions are explored once.
// It will stop when all runs are explored.
func DPOR() SimulatorOption {
	return config.GuideOption{G: guide.NewDPOR()}
}

// Run the program once, always picking the first ready actor
func Basic() SimulatorOption {
	return config.GuideOption{G: guide.NewBasic()}
}

// Use a replay guide for the simulation
//
// The replay guide replays the provided run. The run is stopped with a fatal error if it can not be reproduced.
// The trace of a failing run can be exported using the CheckerResponse.Export()
func Replay(run trace.Trace) SimulatorOption {
	return config.GuideOption{G: guide.NewReplay(run)}
}

// Follow the provided run, then explore the runs that extend it with the provided guide
func GuidedSearch(search guide.Global, run trace.Trace) SimulatorOption {
	return config.GuideOption{G: guide.NewGuidedSearch(search, run)}
}

// Use the provided guide for the simulation
func WithGuide(g guide.Global) SimulatorOption {
	return config.GuideOption{G: g}
}
