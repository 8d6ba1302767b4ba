package kernel

import (
	"fmt"

	"simkernel/execution"
	"simkernel/resource"
	"simkernel/simcall"
)

type phase int

const (
	// Spawned, the context has not been started
	phaseStart phase = iota
	// Waiting for the maestro to handle its simcall
	phasePending
	// The simcall has been handled and waits for an activity or a promise
	phaseBlocked
	// The simcall has been answered, the actor waits to be resumed
	phaseAnswered
	phaseRunning
	phaseTerminated
)

// Actor is a simulated process. It runs fn in its own context.
//
// Methods taking an action in the simulation issue a simcall and must only be
// called from the actor's own context.
type Actor struct {
	k *Kernel

	id     int
	parent int
	name   string
	host   string
	daemon bool

	fn  func(*Actor)
	ctx execution.Context

	phase     phase
	simcall   *simcall.Simcall
	readySeq  uint64
	suspended bool
	killed    bool
	finalized bool
	exiting   bool

	// The activity the actor is blocked on
	activity  *resource.Activity
	exitHooks []func(failed bool)
}

func (a *Actor) ID() int        { return a.id }
func (a *Actor) Parent() int    { return a.parent }
func (a *Actor) Name() string   { return a.name }
func (a *Actor) Host() string   { return a.host }
func (a *Actor) Daemon() bool   { return a.daemon }
func (a *Actor) Killed() bool   { return a.killed }
func (a *Actor) String() string { return fmt.Sprintf("%v (%v)", a.name, a.id) }

// Now returns the simulated time
func (a *Actor) Now() float64 {
	return a.k.Now()
}

// Terminated reports whether the actor has finished, either normally or because it was killed
func (a *Actor) Terminated() bool {
	return a.terminated()
}

func (a *Actor) terminated() bool {
	return a.phase == phaseTerminated || a.ctx.Status() == execution.Terminated
}

// State returns a description of the scheduling state of the actor
func (a *Actor) State() string {
	switch {
	case a.terminated() && a.killed:
		return "killed"
	case a.terminated():
		return "done"
	case a.phase == phaseRunning:
		return "running"
	case a.k.enabled(a):
		return "ready"
	}
	return "blocked"
}

func (a *Actor) step() simcall.Step {
	switch a.phase {
	case phaseStart:
		return simcall.StepOf(nil)
	case phaseAnswered:
		return simcall.Step{Kind: simcall.KindWake, Choices: 1}
	}
	return simcall.StepOf(a.simcall)
}

func (a *Actor) waitingFor() string {
	switch {
	case a.suspended:
		return "suspended"
	case a.simcall == nil:
		return a.State()
	case a.phase == phaseBlocked:
		return fmt.Sprintf("waiting for the completion of %v", a.simcall.Kind)
	}
	switch args := a.simcall.Args.(type) {
	case simcall.RecvArgs:
		return fmt.Sprintf("receiving on empty mailbox %v", args.Mailbox)
	case simcall.TargetArgs:
		return fmt.Sprintf("joining actor %v", args.Target)
	}
	return fmt.Sprintf("pending %v", a.simcall.Kind)
}

// Entry point of the context
func (a *Actor) body() {
	a.fn(a)
}

// Runs in the context when it terminates, whatever the reason
func (a *Actor) cleanup() {
	a.exiting = true
	failed := a.killed || a.ctx.Err() != nil
	for i := len(a.exitHooks) - 1; i >= 0; i-- {
		a.exitHooks[i](failed)
	}
}

// Hands the simcall to the maestro and suspends until it has been answered
func (a *Actor) issue(kind simcall.Kind, args any) (any, error) {
	k := a.k
	if k.current != a {
		panic(&simcall.ProtocolError{Kind: kind, Reason: fmt.Sprintf("%v issued from outside of its context", a)})
	}
	if a.exiting {
		panic(&simcall.ProtocolError{Kind: kind, Reason: fmt.Sprintf("%v issued by %v while exiting", kind, a)})
	}
	if err := simcall.Validate(kind, args); err != nil {
		panic(err)
	}
	k.simcallSeq++
	sc := simcall.New(k.simcallSeq, a.id, kind, args, k.window)
	sc.OnAnswer = k.onAnswer
	a.simcall = sc
	a.phase = phasePending
	a.readySeq = k.nextReadySeq()

	a.ctx.Suspend()
	return sc.Result()
}

// Send puts payload in the mailbox. It never blocks.
func (a *Actor) Send(mailbox string, payload any) {
	a.issue(simcall.KindSend, simcall.SendArgs{Mailbox: mailbox, Payload: payload})
}

// Recv blocks until the mailbox holds a message and returns the oldest one
func (a *Actor) Recv(mailbox string) any {
	v, _ := a.issue(simcall.KindRecv, simcall.RecvArgs{Mailbox: mailbox})
	return v
}

// Execute performs flops units of work on the host of the actor
func (a *Actor) Execute(flops float64) error {
	return a.ExecuteOn(a.host, flops)
}

// ExecuteOn performs flops units of work on another host
func (a *Actor) ExecuteOn(host string, flops float64) error {
	_, err := a.issue(simcall.KindExecute, simcall.ExecArgs{Host: host, Flops: flops})
	return err
}

// Sleep blocks the actor for the provided amount of simulated time
func (a *Actor) Sleep(duration float64) error {
	_, err := a.issue(simcall.KindSleep, simcall.SleepArgs{Duration: duration})
	return err
}

// Yield gives the other actors a chance to run
func (a *Actor) Yield() {
	a.issue(simcall.KindYield, nil)
}

// RunKernel runs fn in the maestro. fn may modify the simulation freely.
func (a *Actor) RunKernel(fn func()) {
	a.issue(simcall.KindRunKernel, simcall.RunKernelArgs{Fn: fn})
}

// RunBlocking runs fn in the maestro and blocks until the promise is settled
func (a *Actor) RunBlocking(fn func(*Promise)) (any, error) {
	return a.issue(simcall.KindRunBlocking, simcall.RunBlockingArgs{Fn: func(c simcall.Completion) {
		fn(c.(*Promise))
	}})
}

// Random returns a value in [min, max]. Every value is explored by the exhaustive guides.
func (a *Actor) Random(min, max int) int {
	v, _ := a.issue(simcall.KindRandom, simcall.RandomArgs{Min: min, Max: max})
	return v.(int)
}

// Assert records a violation and stops the actor if cond does not hold
func (a *Actor) Assert(cond bool, msg string) {
	if cond {
		return
	}
	k := a.k
	if k.current != a {
		panic(&simcall.ProtocolError{Reason: fmt.Sprintf("assertion of %v evaluated outside of its context", a)})
	}
	if k.violation == nil {
		k.violation = &Violation{Actor: a.id, Name: a.name, Message: msg}
		k.log.Warnf("Assertion violated by %v: %v", a, msg)
	}
	execution.Unwind()
}

func (a *Actor) Assertf(cond bool, format string, args ...any) {
	if !cond {
		a.Assert(false, fmt.Sprintf(format, args...))
	}
}

// Kill terminates the target actor. Killing itself never returns.
func (a *Actor) Kill(target int) error {
	_, err := a.issue(simcall.KindKill, simcall.TargetArgs{Target: target})
	return err
}

// Suspend prevents the target from being scheduled until it is resumed.
// An actor suspending itself blocks until another actor resumes it.
func (a *Actor) Suspend(target int) error {
	_, err := a.issue(simcall.KindSuspend, simcall.TargetArgs{Target: target})
	return err
}

func (a *Actor) Resume(target int) error {
	_, err := a.issue(simcall.KindResume, simcall.TargetArgs{Target: target})
	return err
}

// Join blocks until the target has terminated
func (a *Actor) Join(target int) error {
	_, err := a.issue(simcall.KindJoin, simcall.TargetArgs{Target: target})
	return err
}

// Exit terminates the actor. The exit hooks run with failed set to false.
func (a *Actor) Exit() {
	execution.Unwind()
}

// OnExit registers fn to run when the actor terminates. Hooks run in reverse order of registration.
// failed is true if the actor was killed or crashed.
//
// Hooks run in the context of the actor but may not issue simcalls.
func (a *Actor) OnExit(fn func(failed bool)) {
	a.exitHooks = append(a.exitHooks, fn)
}

// Spawn creates a new actor on the same host and returns its pid
func (a *Actor) Spawn(name string, fn func(*Actor)) (int, error) {
	var pid int
	var err error
	a.RunKernel(func() {
		var child *Actor
		child, err = a.k.spawn(name, a.host, fn, a.id, false)
		if err == nil {
			pid = child.id
		}
	})
	return pid, err
}

// Daemonize turns the actor into a daemon. It will be killed when the last regular actor terminates.
func (a *Actor) Daemonize() {
	a.RunKernel(func() {
		a.daemon = true
	})
}

// RPC records a remote call from the actor to target. Used by the grpc interceptors.
func (a *Actor) RPC(target, method string) error {
	_, err := a.issue(simcall.KindRPC, simcall.RPCArgs{Target: target, Method: method})
	return err
}

// CheckStack unwinds the actor with a StackOverflowError if it has exceeded its stack budget
func (a *Actor) CheckStack() {
	a.ctx.CheckStack()
}
