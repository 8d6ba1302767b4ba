package kernel

import "simkernel/simcall"

// Promise is the future of a run-blocking simcall.
//
// It must be settled by maestro side code: the run-blocking closure itself, an
// event scheduled with Kernel.At, or a RunKernel closure of another actor.
// Settling it from an actor context breaks the simcall protocol.
type Promise struct {
	sc *simcall.Simcall
}

func (p *Promise) Resolve(value any) {
	p.sc.Answer(value, nil)
}

func (p *Promise) Reject(err error) {
	p.sc.Answer(nil, err)
}

// Settled reports whether the promise has been resolved, rejected or canceled
func (p *Promise) Settled() bool {
	s := p.sc.Status()
	return s == simcall.Done || s == simcall.Canceled
}
