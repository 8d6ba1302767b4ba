// Package runner executes a single run of a program step by step.
//
// The Runner owns the kernel and acts as its maestro. It is driven by commands
// and reports what happens in the run as records.
package runner

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"simkernel/guide"
	"simkernel/kernel"
	"simkernel/simulator"
)

var (
	ErrRunEnded = errors.New("runner: the run has ended")
	ErrStopped  = errors.New("runner: the runner has been stopped")
	ErrStarted  = errors.New("runner: the runner has already been started")
)

// The Runner executes one run of a program under the control of commands and records what happens.
type Runner struct {
	sync.Mutex
	started bool
	stopped bool

	cmd  chan command
	resp chan response

	// Receive the records from the kernel
	records             chan Record
	outRecordChan       []chan Record
	subscribeRecordChan chan chan Record
	closed              chan struct{}
	recordChanBuffer    int

	log *logrus.Entry
}

// Create a new Runner
//
// recordChanBuffer specifies the size of the buffers for the record channels
func NewRunner(recordChanBuffer int, log *logrus.Entry) *Runner {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Runner{
		cmd:  make(chan command),
		resp: make(chan response),

		records:             make(chan Record, recordChanBuffer),
		subscribeRecordChan: make(chan chan Record),
		closed:              make(chan struct{}),
		recordChanBuffer:    recordChanBuffer,

		log: log.WithField("component", "runner"),
	}
}

// Start the Runner
//
// The program is deployed on a new kernel built from opts. g selects the transitions of the run.
// The run is stopped after maxDepth transitions, a non-positive maxDepth means no bound.
//
// The Runner must be started before commands can be given to it.
func (r *Runner) Start(opts kernel.Options, program simulator.Program, g guide.Global, maxDepth int) error {
	r.Lock()
	defer r.Unlock()
	if r.started {
		return ErrStarted
	}

	rec := &recorder{records: r.records}
	opts.Observer = kernel.Observers(rec, opts.Observer)
	if opts.Log == nil {
		opts.Log = r.log
	}
	k, err := kernel.New(opts)
	if err != nil {
		return err
	}
	rec.k = k
	if err := program(k); err != nil {
		k.Shutdown()
		return err
	}
	rg := g.GetRunGuide()
	if err := rg.StartRun(); err != nil {
		k.Shutdown()
		return err
	}
	r.started = true

	go r.forwardRecords()
	go r.mainLoop(k, rg, maxDepth)
	return nil
}

// Copies every record to the subscribers until the records channel is closed
func (r *Runner) forwardRecords() {
	for {
		select {
		case rec, ok := <-r.records:
			if !ok {
				for _, c := range r.outRecordChan {
					close(c)
				}
				close(r.closed)
				return
			}
			for _, c := range r.outRecordChan {
				c <- rec
			}
		case c := <-r.subscribeRecordChan:
			r.outRecordChan = append(r.outRecordChan, c)
		}
	}
}

// The maestro of the run. Executes the commands one at a time.
func (r *Runner) mainLoop(k *kernel.Kernel, rg guide.RunGuide, maxDepth int) {
	defer rg.EndRun()

	var res kernel.Result
	ended := false
	for cmd := range r.cmd {
		var rsp response
		if _, ok := cmd.(stopCmd); !ok && ended {
			r.resp <- response{res: res, done: true, err: ErrRunEnded}
			continue
		}
		switch t := cmd.(type) {
		case stepCmd:
			for i := 0; t.n <= 0 || i < t.n; i++ {
				if out, done := k.Step(rg, maxDepth); done {
					res, ended = out, true
					r.records <- OutcomeRecord{Result: out}
					r.log.Infof("Run ended: %v", out.Outcome)
					break
				}
			}
			rsp = response{res: res, done: ended}
		case killCmd:
			rsp.err = k.Kill(t.pid)
		case crashCmd:
			rsp.err = k.TurnOffHost(t.host)
		case deliverCmd:
			k.Deliver(t.mailbox, t.payload)
		case stopCmd:
			if !ended {
				k.Shutdown()
			}
			close(r.records)
			r.resp <- response{res: res, done: ended}
			return
		}
		r.resp <- rsp
	}
}

func (r *Runner) do(cmd command) response {
	r.Lock()
	defer r.Unlock()
	if !r.started {
		return response{err: errors.New("runner: the runner has not been started")}
	}
	if r.stopped {
		return response{err: ErrStopped}
	}
	if _, ok := cmd.(stopCmd); ok {
		r.stopped = true
	}
	r.cmd <- cmd
	return <-r.resp
}

// Subscribe to the records of the run
//
// Must be called after the runner has been started. Records sent before the subscription are not received.
// The channel is closed when the runner is stopped.
func (r *Runner) Subscribe() <-chan Record {
	c := make(chan Record, r.recordChanBuffer)
	select {
	case r.subscribeRecordChan <- c:
	case <-r.closed:
		close(c)
	}
	return c
}

// Execute the next n transitions. A non-positive n executes transitions until the run ends.
//
// Returns true and the result of the run if it has ended.
func (r *Runner) Step(n int) (kernel.Result, bool, error) {
	rsp := r.do(stepCmd{n: n})
	return rsp.res, rsp.done, rsp.err
}

// Run executes transitions until the run ends
func (r *Runner) Run() (kernel.Result, error) {
	rsp := r.do(stepCmd{})
	return rsp.res, rsp.err
}

// Kill an actor
func (r *Runner) Kill(pid int) error {
	return r.do(killCmd{pid: pid}).err
}

// Turn off a host. The actors located on it are killed.
func (r *Runner) CrashHost(host string) error {
	return r.do(crashCmd{host: host}).err
}

// Send a message to a mailbox from outside of the simulation
func (r *Runner) Deliver(mailbox string, payload any) error {
	return r.do(deliverCmd{mailbox: mailbox, payload: payload}).err
}

// Stop the run. The actors that are still alive are killed and the record channels are closed.
//
// Returns true and the result of the run if it ended before it was stopped.
func (r *Runner) Stop() (kernel.Result, bool, error) {
	rsp := r.do(stopCmd{})
	return rsp.res, rsp.done, rsp.err
}
