// Package simkernel explores the runs of simulated actor programs.
//
// A program deploys hosts and actors on a kernel. The simulation runs it many
// times, each time under the control of a guide choosing the order of the
// transitions, and checks the outcome of every run.
package simkernel

import (
	"io"

	"github.com/sirupsen/logrus"

	"simkernel/checking"
	"simkernel/config"
	"simkernel/failureManager"
	"simkernel/guide"
	"simkernel/metrics"
	"simkernel/simulator"
	"simkernel/stateManager"
	"simkernel/trace"
)

// Prepare simulation with initial configuration.
//
// Initializes the simulator with the necessary parameters.
// See the SimulatorOptions for a full overview of possible options.
// Default values from config.Default will be used if no value is provided.
// The guide is selected from the configuration if no guide option is provided.
func PrepareSimulation(opts ...SimulatorOption) (Simulation, error) {
	var (
		cfg = config.Default()

		// Keep exploring after failing runs even if the configuration asks to stop at the first one
		ignoreErrors = false

		g   guide.Global
		m   *metrics.Metrics
		log *logrus.Entry
	)

	// Use the simulator options to configure
	for _, opt := range opts {
		var err error
		switch t := opt.(type) {
		case config.BaseOption:
			base := *t.Cfg
			cfg = &base
		case config.GuideOption:
			g = t.G
		case config.MaxRunsOption:
			cfg.MaxRuns = t.MaxRuns
		case config.MaxDepthOption:
			cfg.MaxDepth = t.MaxDepth
		case config.NumConcurrentOption:
			cfg.NumConcurrent = t.N
		case config.IgnoreErrorOption:
			ignoreErrors = true
		case config.IgnorePanicOption:
			cfg.IgnorePanics = true
		case config.FactoryOption:
			err = cfg.Set(config.KeyFactory, t.Name)
		case config.StackSizeOption:
			cfg.StackSize = t.KiB
		case config.DeadlockIsFailureOption:
			cfg.DeadlockIsFailure = true
		case config.StopAtFailureOption:
			cfg.StopAtFailure = true
		case config.PairsOption:
			for _, pair := range t.Pairs {
				if err = cfg.SetPair(pair); err != nil {
					break
				}
			}
		case config.LoggerOption:
			log = t.Log
		case metricsOption:
			m = t.m
		}
		if err != nil {
			return Simulation{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Simulation{}, err
	}
	if g == nil {
		var err error
		if g, err = NewGuide(cfg); err != nil {
			return Simulation{}, err
		}
	}

	// A failing run ends its own branch. The exploration only stops on it when asked to
	sim, err := simulator.NewSimulator(g, cfg, ignoreErrors || !cfg.StopAtFailure, log)
	if err != nil {
		return Simulation{}, err
	}
	sm := stateManager.NewTreeStateManager()
	sim.StateManager = sm
	sim.Metrics = m
	return Simulation{
		sim: sim,
		sm:  sm,
		cfg: cfg,
	}, nil
}

// Stores the configured Simulator.
//
// Can be used to run multiple simulations.
// A simulation is started by calling the Run method.
// Only one simulation can be run at a time.
type Simulation struct {
	sim *simulator.Simulator
	sm  *stateManager.TreeStateManager
	cfg *config.Config
}

// Run the simulation of the program.
//
// All RunOptions are optional. Default values will be used if no values are provided.
// By default runs violating an assertion or ending with a fatal error are failures,
// deadlocked runs too if model-check/deadlock-is-failure is set.
//
// Returns the response of the checker and the report of the simulated runs.
// Returns an error if a run could not be simulated because of a fatal error of the kernel.
func (sr Simulation) Run(program simulator.Program, opts ...RunOptions) (checking.CheckerResponse, *simulator.Report, error) {
	var (
		export   []io.Writer
		traceOut []io.Writer

		fm      failureManager.FailureManager
		checker checking.Checker
		preds   []checking.Predicate
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.ExportOption:
			export = append(export, t.W)
		case config.TraceOutputOption:
			traceOut = append(traceOut, t.W)
		case failureManagerOption:
			fm = t.fm
		case checkerOption:
			checker = t.checker
		case predicateOption:
			preds = append(preds, t.preds...)
		}
	}

	if checker == nil {
		checker = checking.NewOutcomeChecker(sr.cfg.DeadlockIsFailure)
		if len(preds) > 0 {
			checker = checking.NewPredicateChecker(preds...)
		}
	}

	sr.sm.Reset()
	report, err := sr.sim.Simulate(fm, program)
	if err != nil {
		return nil, report, err
	}

	for _, w := range export {
		sr.sm.Export(w)
	}

	resp := checker.Check(report)
	if ok, _ := resp.Response(); !ok {
		for _, w := range traceOut {
			if err := trace.WriteJSON(w, resp.Export()); err != nil {
				return resp, report, err
			}
		}
	}
	return resp, report, nil
}

// The state manager of the simulation. Holds the tree of the runs explored by the last call to Run
func (sr Simulation) StateManager() *stateManager.TreeStateManager {
	return sr.sm
}
