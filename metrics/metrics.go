// Package metrics exposes the progress of an exploration as Prometheus metrics.
//
// Runs are counted by outcome, transitions by simcall kind, and the length of
// every run is recorded in a histogram. All operations are thread-safe via
// Prometheus's internal locking, so one Metrics can be shared by every worker
// of a simulation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"simkernel/kernel"
	"simkernel/simcall"
	"simkernel/trace"
)

const (
	metricsNamespace = "simkernel"
	exploreSubsystem = "exploration"
)

type Metrics struct {
	// Labels: outcome (completed, deadlock, assertion-violation, ...)
	RunsTotal *prometheus.CounterVec

	// Labels: kind (start, send, recv, ...)
	TransitionsTotal *prometheus.CounterVec

	SimcallsCanceledTotal prometheus.Counter

	// Number of transitions of each run
	RunDepth prometheus.Histogram
}

// New creates the collectors and registers them on reg.
// A nil reg registers them on the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: exploreSubsystem,
			Name:      "runs_total",
			Help:      "Total number of simulated runs by outcome",
		}, []string{"outcome"}),
		TransitionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: exploreSubsystem,
			Name:      "transitions_total",
			Help:      "Total number of executed transitions by simcall kind",
		}, []string{"kind"}),
		SimcallsCanceledTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: exploreSubsystem,
			Name:      "simcalls_canceled_total",
			Help:      "Total number of simcalls canceled because their issuer was killed",
		}),
		RunDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: exploreSubsystem,
			Name:      "run_depth",
			Help:      "Number of transitions executed in a run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
	}
}

// ObserveRun records the outcome of a finished run
func (m *Metrics) ObserveRun(res kernel.Result) {
	m.RunsTotal.WithLabelValues(res.Outcome.String()).Inc()
	m.RunDepth.Observe(float64(res.Transitions))
}

// Observer returns a kernel observer feeding the transition counters
func (m *Metrics) Observer() kernel.Observer {
	return observer{m: m}
}

type observer struct {
	kernel.NopObserver
	m *Metrics
}

func (o observer) TransitionExecuted(_ trace.Transition, step simcall.Step) {
	o.m.TransitionsTotal.WithLabelValues(step.Kind.String()).Inc()
}

func (o observer) SimcallCanceled(*simcall.Simcall) {
	o.m.SimcallsCanceledTotal.Inc()
}
