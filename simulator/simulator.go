// Package simulator runs many simulated runs of a program under the control of a guide.
package simulator

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"simkernel/config"
	"simkernel/execution"
	"simkernel/failureManager"
	"simkernel/guide"
	"simkernel/kernel"
	"simkernel/metrics"
	"simkernel/stateManager"
)

// Program deploys the hosts and actors of a run on a fresh kernel
type Program func(k *kernel.Kernel) error

// Simulates a program.
//
// Every run starts from a fresh kernel on which the program is deployed. The
// guide decides the order of the transitions in each run, and which runs are
// left to explore.
type Simulator struct {
	// The guide selects the transitions of each run and keeps track of the explored runs
	Guide guide.Global
	// Optional. Records the explored runs
	StateManager stateManager.StateManager
	// Optional. Exposes the progress of the simulation
	Metrics *metrics.Metrics

	factory   execution.Factory
	stackSize int

	// If true will continue simulating runs after a run violated an assertion or deadlocked.
	// Kernel-fatal errors always stop the simulation.
	ignoreErrors      bool
	deadlockIsFailure bool

	maxRuns       int
	maxDepth      int
	numConcurrent int

	log *logrus.Entry
}

// Create a new simulator
//
// The contexts, limits and failure policy are read from cfg.
//
// ignoreErrors specifies whether to ignore failing runs. If they are ignored the simulation will
// continue simulating runs after a violation or a deadlock and report all of them at the end.
func NewSimulator(g guide.Global, cfg *config.Config, ignoreErrors bool, log *logrus.Entry) (*Simulator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := execution.NewFactory(cfg.Factory, cfg.IgnorePanics)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	numConcurrent := cfg.NumConcurrent
	if numConcurrent < 1 {
		numConcurrent = 1
	}
	return &Simulator{
		Guide: g,

		factory:   factory,
		stackSize: cfg.StackSizeBytes(),

		ignoreErrors:      ignoreErrors,
		deadlockIsFailure: cfg.DeadlockIsFailure,

		maxRuns:       cfg.MaxRuns,
		maxDepth:      cfg.MaxDepth,
		numConcurrent: numConcurrent,

		log: log.WithField("component", "simulator"),
	}, nil
}

type runStatus struct {
	res kernel.Result
	err error
}

// Simulate runs the program until the guide has no runs left, maxRuns runs have been simulated,
// or a run fails.
//
// fm configures the host failures injected in every run.
//
// Returns a RunError if a run could not be simulated to its end because of a kernel-fatal error.
// Failing runs are not errors: they are found in the report.
func (s *Simulator) Simulate(fm failureManager.FailureManager, program Program) (*Report, error) {
	if fm == nil {
		fm = failureManager.None()
	}
	session := uuid.NewString()
	log := s.log.WithField("session", session)
	log.Infof("Starting simulation with %v concurrent runs", s.numConcurrent)

	// Reset the state of the guide so that it is ready for a new simulation
	s.Guide.Reset()

	report := &Report{Session: session}
	start := time.Now()

	// Used to signal to start the next run
	nextRun := make(chan bool)
	// Used by the runSimulators to send the result of each run to the main loop
	status := make(chan runStatus)
	// Used by the runSimulators to signal that they have stopped executing runs
	closing := make(chan bool)

	ongoing := 0
	startedRuns := 0
	for ongoing < s.numConcurrent {
		ongoing++
		rsim := s.newRunSimulator(fm, log.WithField("worker", ongoing))
		go rsim.SimulateRuns(nextRun, status, closing, program)

		// Send a signal to start processing runs
		startedRuns++
		nextRun <- true

		if startedRuns >= s.maxRuns {
			break
		}
	}

	err := s.mainLoop(report, ongoing, startedRuns, nextRun, status, closing)
	report.Duration = time.Since(start)
	log.Info(report.String())
	return report, err
}

// The main loop of the simulation.
//
// Receives the result of every run from the runSimulators and signals them to begin simulating the next run.
// Does not start new runs if maxRuns runs have been started or if a run failed.
// Runs still in flight when maxRuns is reached are reported, the ones completing after a failure are not.
// Returns when all runSimulators have stopped running.
func (s *Simulator) mainLoop(report *Report, ongoing int, startedRuns int, nextRun chan bool, status chan runStatus, closing chan bool) error {
	var out error

	// Stop the simulation by closing the nextRun channel if it is not already closed
	stopped := false
	stop := func() {
		if !stopped {
			stopped = true
			close(nextRun)
		}
	}
	for ongoing > 0 {
		select {
		case st := <-status:
			if report.Interrupted {
				// Runs completed after a run failed are not reported
				continue
			}
			report.Runs = append(report.Runs, st.res)
			if st.err != nil {
				out = st.err
				report.Interrupted = true
				stop()
				continue
			}
			if failed(st.res, s.deadlockIsFailure) && !s.ignoreErrors {
				report.Interrupted = true
				stop()
				continue
			}
			if stopped {
				// maxRuns runs have been started. Wait for the ones still in flight
				continue
			}

			if startedRuns < s.maxRuns {
				nextRun <- true
				startedRuns++
			} else {
				stop()
			}
		case <-closing:
			ongoing--
		}
	}

	stop()

	// Can safely close the closing and status channels, since all runSimulators have completed and will not try to send on them
	close(closing)
	close(status)
	return out
}

// Simulates runs in its own goroutine, one at a time
type runSimulator struct {
	s   *Simulator
	rg  guide.RunGuide
	rsm *stateManager.RunStateManager
	fm  failureManager.FailureManager

	runs int
	log  *logrus.Entry
}

func (s *Simulator) newRunSimulator(fm failureManager.FailureManager, log *logrus.Entry) *runSimulator {
	rs := &runSimulator{
		s:   s,
		rg:  s.Guide.GetRunGuide(),
		fm:  fm,
		log: log,
	}
	if s.StateManager != nil {
		rs.rsm = s.StateManager.GetRunStateManager()
	}
	return rs
}

// Main loop of the runSimulator.
// Continuously listens to the nextRun channel and starts simulating a new run each time it receives a signal.
// Stops simulating runs when the channel is closed or when the guide has no runs left.
// When it stops it sends an indication on the closing channel
func (rs *runSimulator) SimulateRuns(nextRun chan bool, status chan runStatus, closing chan bool, program Program) {
	for range nextRun {
		res, err := rs.simulateRun(program)
		if errors.Is(err, guide.NoRunsError) {
			break
		}
		status <- runStatus{res: res, err: err}
	}

	// Indicate that the runSimulator has stopped
	closing <- true
}

func (rs *runSimulator) simulateRun(program Program) (kernel.Result, error) {
	if err := rs.rg.StartRun(); err != nil {
		return kernel.Result{}, err
	}
	// Always end the run, even if it failed
	defer rs.rg.EndRun()
	rs.runs++

	observers := []kernel.Observer{}
	if rs.rsm != nil {
		observers = append(observers, rs.rsm)
	}
	if rs.s.Metrics != nil {
		observers = append(observers, rs.s.Metrics.Observer())
	}
	k, err := kernel.New(kernel.Options{
		Factory:   rs.s.factory,
		StackSize: rs.s.stackSize,
		Log:       rs.log.WithField("run", rs.runs),
		Observer:  kernel.Observers(observers...),
	})
	if err != nil {
		return kernel.Result{Outcome: kernel.Fatal, Err: err}, &RunError{Run: rs.runs, Err: err}
	}
	if err := rs.deploy(k, program); err != nil {
		k.Shutdown()
		return kernel.Result{Outcome: kernel.Fatal, Err: err}, &RunError{Run: rs.runs, Err: err}
	}

	res := k.Run(rs.rg, rs.s.maxDepth)
	if rs.rsm != nil {
		rs.rsm.EndRun(res)
	}
	if rs.s.Metrics != nil {
		rs.s.Metrics.ObserveRun(res)
	}
	rs.log.Debugf("Run %v ended: %v", rs.runs, res.Outcome)

	if res.Outcome == kernel.Fatal {
		return res, &RunError{Run: rs.runs, Trace: res.Trace, Err: res.Err}
	}
	return res, nil
}

func (rs *runSimulator) deploy(k *kernel.Kernel, program Program) error {
	if err := program(k); err != nil {
		return err
	}
	return rs.fm.GetRunFailureManager().Init(k)
}
