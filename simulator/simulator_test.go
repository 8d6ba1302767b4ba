package simulator

import (
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simkernel/config"
	"simkernel/failureManager"
	"simkernel/guide"
	"simkernel/kernel"
	"simkernel/metrics"
	"simkernel/simcall"
	"simkernel/stateManager"
)

func TestMain(m *testing.M) {
	if os.Getenv("DEBUG_TESTS") == "" {
		logrus.SetLevel(logrus.WarnLevel)
	}
	os.Exit(m.Run())
}

func newSimulator(t *testing.T, g guide.Global, ignoreErrors bool, opts ...string) *Simulator {
	t.Helper()
	cfg := config.Default()
	cfg.NumConcurrent = 1
	for _, opt := range opts {
		require.NoError(t, cfg.SetPair(opt))
	}
	sim, err := NewSimulator(g, cfg, ignoreErrors, nil)
	require.NoError(t, err)
	return sim
}

// n senders race to a receiver that checks that the message of the last sender arrives last.
// The last message of every run is stored in seen if it is not nil.
func racingSenders(n int, seen ...*sync.Map) Program {
	return func(k *kernel.Kernel) error {
		if _, err := k.Spawn("receiver", "", func(a *kernel.Actor) {
			last := 0
			for i := 0; i < n; i++ {
				last = a.Recv("inbox").(int)
			}
			for _, m := range seen {
				m.Store(last, true)
			}
			a.Assertf(last == n, "last message from %v", last)
		}); err != nil {
			return err
		}
		for i := 1; i <= n; i++ {
			if _, err := k.Spawn("sender", "", func(a *kernel.Actor) { a.Send("inbox", i) }); err != nil {
				return err
			}
		}
		return nil
	}
}

func TestSimulateBasic(t *testing.T) {
	sim := newSimulator(t, guide.NewBasic(), false)
	report, err := sim.Simulate(nil, racingSenders(3))
	require.NoError(t, err)
	require.Len(t, report.Runs, 1)
	assert.Equal(t, kernel.Completed, report.Runs[0].Outcome)
	assert.False(t, report.Interrupted)
	assert.NotEmpty(t, report.Session)
}

func TestSimulateStopsOnViolation(t *testing.T) {
	sim := newSimulator(t, guide.NewDPOR(), false)
	report, err := sim.Simulate(nil, racingSenders(3))
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Count(kernel.AssertionViolation))
	failures := report.Failures(false)
	require.Len(t, failures, 1)
	assert.Equal(t, failures[0].Trace, report.Runs[len(report.Runs)-1].Trace)
}

func TestSimulateIgnoreErrors(t *testing.T) {
	sm := stateManager.NewTreeStateManager()
	sim := newSimulator(t, guide.NewDPOR(), true)
	sim.StateManager = sm
	report, err := sim.Simulate(nil, racingSenders(3))
	require.NoError(t, err)
	assert.False(t, report.Interrupted)
	assert.Greater(t, report.Count(kernel.AssertionViolation), 0)
	assert.Greater(t, report.Count(kernel.Completed), 0)
	assert.Equal(t, len(report.Runs), sm.Runs())

	// Every explored run is distinct
	counts := map[kernel.Outcome]int{}
	for _, o := range sm.Traces() {
		counts[o]++
	}
	assert.Equal(t, report.Count(kernel.AssertionViolation), counts[kernel.AssertionViolation])
	assert.Equal(t, report.Count(kernel.Completed), counts[kernel.Completed])
}

func TestSimulateConcurrent(t *testing.T) {
	keys := func(m *sync.Map) map[any]bool {
		out := map[any]bool{}
		m.Range(func(k, _ any) bool {
			out[k] = true
			return true
		})
		return out
	}

	var seqSeen, conSeen sync.Map
	sequential := newSimulator(t, guide.NewDPOR(), true)
	_, err := sequential.Simulate(nil, racingSenders(3, &seqSeen))
	require.NoError(t, err)

	concurrent := newSimulator(t, guide.NewDPOR(), true, "model-check/num-concurrent:4")
	report, err := concurrent.Simulate(nil, racingSenders(3, &conSeen))
	require.NoError(t, err)
	assert.Greater(t, report.Count(kernel.AssertionViolation), 0)

	// Every sender is last in some run
	expected := map[any]bool{1: true, 2: true, 3: true}
	assert.Equal(t, expected, keys(&seqSeen))
	assert.Equal(t, expected, keys(&conSeen))
}

func TestSimulateMaxRuns(t *testing.T) {
	sim := newSimulator(t, guide.NewRandom(1), true, "model-check/max-runs:5")
	report, err := sim.Simulate(nil, racingSenders(2))
	require.NoError(t, err)
	assert.Len(t, report.Runs, 5)
}

func TestSimulateMaxRunsConcurrent(t *testing.T) {
	for i := 0; i < 20; i++ {
		sim := newSimulator(t, guide.NewRandom(int64(i)), true, "model-check/max-runs:4", "model-check/num-concurrent:2")
		report, err := sim.Simulate(nil, racingSenders(2))
		require.NoError(t, err)
		require.Len(t, report.Runs, 4, "runs in flight when the last run was started must be reported")
		assert.False(t, report.Interrupted)
	}
}

func TestSimulateFatal(t *testing.T) {
	sim := newSimulator(t, guide.NewDPOR(), true)
	report, err := sim.Simulate(nil, func(k *kernel.Kernel) error {
		_, err := k.Spawn("broken", "", func(a *kernel.Actor) {
			a.Random(2, 1)
		})
		return err
	})
	var re *RunError
	require.True(t, errors.As(err, &re), "expected a RunError, got %v", err)
	var pe *simcall.ProtocolError
	assert.True(t, errors.As(err, &pe))
	assert.True(t, report.Interrupted)
	assert.Equal(t, 1, report.Count(kernel.Fatal))
}

func TestSimulateDeployError(t *testing.T) {
	sim := newSimulator(t, guide.NewBasic(), false)
	deployErr := errors.New("no hosts")
	_, err := sim.Simulate(nil, func(k *kernel.Kernel) error { return deployErr })
	assert.ErrorIs(t, err, deployErr)

	_, err = sim.Simulate(failureManager.NewPerfectFailureManager(failureManager.Crash{Host: "missing"}), racingSenders(1))
	var re *RunError
	assert.True(t, errors.As(err, &re))
}

func TestSimulateDeadlockIsFailure(t *testing.T) {
	program := func(k *kernel.Kernel) error {
		_, err := k.Spawn("lonely", "", func(a *kernel.Actor) { a.Recv("nobody") })
		return err
	}
	report, err := newSimulator(t, guide.NewBasic(), false).Simulate(nil, program)
	require.NoError(t, err)
	assert.False(t, report.Interrupted)
	assert.Empty(t, report.Failures(false))

	report, err = newSimulator(t, guide.NewBasic(), false, "model-check/deadlock-is-failure:true").Simulate(nil, program)
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
	assert.Len(t, report.Failures(true), 1)
}

func TestSimulateMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	sim := newSimulator(t, guide.NewDPOR(), true)
	sim.Metrics = m
	report, err := sim.Simulate(nil, racingSenders(2))
	require.NoError(t, err)
	total := 0.0
	for _, o := range []kernel.Outcome{kernel.Completed, kernel.AssertionViolation, kernel.Pruned} {
		total += testutil.ToFloat64(m.RunsTotal.WithLabelValues(o.String()))
	}
	assert.Equal(t, float64(len(report.Runs)), total)
	// Every completed run started the receiver and both senders
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.TransitionsTotal.WithLabelValues("start")), float64(3*report.Count(kernel.Completed)))
}

func TestInvalidConfiguration(t *testing.T) {
	cfg := config.Default()
	cfg.Factory = "fiber"
	_, err := NewSimulator(guide.NewBasic(), cfg, false, nil)
	var ce *config.ConfigurationError
	assert.True(t, errors.As(err, &ce))
}
