package kernel

import (
	"simkernel/simcall"
	"simkernel/trace"
)

// Observer is notified of the progress of a kernel. All calls are made by the maestro.
type Observer interface {
	TransitionExecuted(t trace.Transition, step simcall.Step)
	// inMaestro reports whether the answer was written inside the maestro window
	SimcallAnswered(sc *simcall.Simcall, inMaestro bool)
	SimcallCanceled(sc *simcall.Simcall)
}

// NopObserver can be embedded to implement only part of Observer
type NopObserver struct{}

func (NopObserver) TransitionExecuted(trace.Transition, simcall.Step) {}
func (NopObserver) SimcallAnswered(*simcall.Simcall, bool)            {}
func (NopObserver) SimcallCanceled(*simcall.Simcall)                  {}

type multiObserver []Observer

// Observers combines several observers into one. They are notified in order.
func Observers(obs ...Observer) Observer {
	out := multiObserver{}
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

func (mo multiObserver) TransitionExecuted(t trace.Transition, step simcall.Step) {
	for _, o := range mo {
		o.TransitionExecuted(t, step)
	}
}

func (mo multiObserver) SimcallAnswered(sc *simcall.Simcall, inMaestro bool) {
	for _, o := range mo {
		o.SimcallAnswered(sc, inMaestro)
	}
}

func (mo multiObserver) SimcallCanceled(sc *simcall.Simcall) {
	for _, o := range mo {
		o.SimcallCanceled(sc)
	}
}
