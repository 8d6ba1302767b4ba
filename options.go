package simkernel

import (
	"io"

	"github.com/sirupsen/logrus"

	"simkernel/checking"
	"simkernel/config"
	"simkernel/failureManager"
	"simkernel/metrics"
)

// A option used to configure the Simulator
type SimulatorOption interface {
	// noop method
	SimOpt()
}

// Configure the maximum number of runs simulated
//
// Default value is 10000
func MaxRuns(maxRuns int) SimulatorOption {
	return config.MaxRunsOption{MaxRuns: maxRuns}
}

// Configure the maximum number of transitions in a run.
//
// Default value is 1000.
//
// Note that liveness properties can not be verified if a run is not fully explored to its end.
func MaxDepth(maxDepth int) SimulatorOption {
	return config.MaxDepthOption{MaxDepth: maxDepth}
}

// Configure the number of runs that will be executed concurrently.
//
// Default value is GOMAXPROCS
func NumConcurrent(n int) SimulatorOption {
	return config.NumConcurrentOption{N: n}
}

// Set the ignorePanic flag to true.
//
// If true panics raised by actors are not recovered and crash the program, which makes it easier to inspect them with a debugger.
// If false they end the run with a fatal error.
func IgnorePanic() SimulatorOption {
	return config.IgnorePanicOption{}
}

// Set the ignoreError flag to true.
//
// Keep simulating runs after a failing run even if model-check/stop-at-failure is set.
// All of them are reported at the end.
// Fatal errors of the kernel always interrupt the simulation.
func IgnoreError() SimulatorOption {
	return config.IgnoreErrorOption{}
}

// Interrupt the simulation at the first failing run.
// By default a failing run only ends its own branch and the exploration goes on.
func StopAtFailure() SimulatorOption {
	return config.StopAtFailureOption{}
}

// Select the backend running the actors: coroutine, goroutine or thread
func Factory(name string) SimulatorOption {
	return config.FactoryOption{Name: name}
}

// Configure the stack size of the actors in KiB
func StackSize(kib int) SimulatorOption {
	return config.StackSizeOption{KiB: kib}
}

// Count deadlocked runs as failures
func DeadlockIsFailure() SimulatorOption {
	return config.DeadlockIsFailureOption{}
}

// Apply configuration pairs of the form "key:value", e.g. "model-check/guide:dpor"
func WithConfig(pairs ...string) SimulatorOption {
	return config.PairsOption{Pairs: pairs}
}

// Start from the provided configuration instead of config.Default. Must be the first option
func FromConfig(cfg *config.Config) SimulatorOption {
	return config.BaseOption{Cfg: cfg}
}

func WithLogger(log *logrus.Entry) SimulatorOption {
	return config.LoggerOption{Log: log}
}

type metricsOption struct{ m *metrics.Metrics }

func (mo metricsOption) SimOpt() {}

// Expose the progress of the simulation on the provided metrics
func WithMetrics(m *metrics.Metrics) SimulatorOption {
	return metricsOption{m: m}
}

// Optional parameters used to configure a simulation
type RunOptions interface {
	RunOpt()
}

type failureManagerOption struct {
	fm failureManager.FailureManager
}

func (fmo failureManagerOption) RunOpt() {}

// Specify the failure manager used for the Simulation
//
// Default value is no host crashes.
func WithFailureManager(fm failureManager.FailureManager) RunOptions {
	return failureManagerOption{fm: fm}
}

// Configure the simulation to use a PerfectFailureManager.
//
// The PerfectFailureManager turns off the provided hosts at the provided times in every run.
// Subscribers are informed of every crash, like with a perfect failure detector.
func WithPerfectFailureManager(crashes ...failureManager.Crash) RunOptions {
	return failureManagerOption{fm: failureManager.NewPerfectFailureManager(crashes...)}
}

type checkerOption struct {
	checker checking.Checker
}

func (co checkerOption) RunOpt() {}

// Specify the Checker used to verify the runs.
func WithChecker(checker checking.Checker) RunOptions {
	return checkerOption{checker: checker}
}

type predicateOption struct{ preds []checking.Predicate }

func (po predicateOption) RunOpt() {}

// Use a PredicateChecker with the provided predicates.
//
// Can be applied multiple times to add more predicates.
func WithPredicate(preds ...checking.Predicate) RunOptions {
	return predicateOption{preds: preds}
}

// Add a writer that the tree of explored runs will be exported to
//
// Can be called multiple times.
// Default value is no writers
func Export(w io.Writer) RunOptions {
	return config.ExportOption{W: w}
}

// Add a writer that the trace of the failing run is written to, as JSON lines.
// Nothing is written if no run failed.
func ExportTrace(w io.Writer) RunOptions {
	return config.TraceOutputOption{W: w}
}
