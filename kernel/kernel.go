// Package kernel runs simulated actors under the control of a single maestro.
//
// Actors run in their own execution contexts and interact with the simulation
// only through simcalls. The maestro is the only writer of the simulation state:
// it picks the next actor with a guide, handles its pending simcall and resumes
// it until it issues the next one. When no actor is ready the resource model
// advances the clock. A run ends when every actor has terminated, when no actor
// can ever run again (deadlock), when an assertion fails or on a fatal error.
package kernel

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"simkernel/config"
	"simkernel/execution"
	"simkernel/guide"
	"simkernel/resource"
	"simkernel/simcall"
	"simkernel/trace"
)

var (
	ErrNoSuchActor = errors.New("kernel: no such actor")
	ErrNoSuchHost  = errors.New("kernel: no such host")
)

type Options struct {
	// Defaults to the coroutine factory
	Factory execution.Factory
	// Stack size of the contexts in bytes. Defaults to config.DefaultStackSize
	StackSize int
	Log       *logrus.Entry
	Observer  Observer
}

// Kernel holds the state of a single simulation run
type Kernel struct {
	factory   execution.Factory
	stackSize int
	log       *logrus.Entry
	observer  Observer

	window    *simcall.Window
	resources *resource.Model

	actors    map[int]*Actor
	nextPid   int
	mailboxes map[string][]any
	// Mailboxes receiving the notices of the failure detector
	detectors []string

	simcallSeq uint64
	readySeq   uint64

	// The actor whose context is running. nil while the maestro runs
	current *Actor

	trace     trace.Trace
	violation *Violation
	fatal     error
}

func New(opts Options) (*Kernel, error) {
	if opts.Factory == nil {
		f, err := execution.NewFactory(config.FactoryCoroutine, false)
		if err != nil {
			return nil, err
		}
		opts.Factory = f
	}
	if opts.StackSize == 0 {
		opts.StackSize = config.DefaultStackSize
	}
	if err := config.CheckStackSize(opts.StackSize); err != nil {
		return nil, err
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	k := &Kernel{
		factory:   opts.Factory,
		stackSize: opts.StackSize,
		log:       opts.Log.WithField("component", "kernel"),
		observer:  opts.Observer,
		window:    &simcall.Window{},
		resources: resource.NewModel(opts.Log),
		actors:    make(map[int]*Actor),
		nextPid:   1,
		mailboxes: make(map[string][]any),
	}
	k.resources.OnHostOff(k.killHost)
	// The maestro runs until the first actor is started
	k.window.Open()
	return k, nil
}

// Now returns the simulated time
func (k *Kernel) Now() float64 {
	return k.resources.Now()
}

// Trace returns the transitions executed so far
func (k *Kernel) Trace() trace.Trace {
	return k.trace.Copy()
}

func (k *Kernel) AddHost(name string, speed float64) error {
	return k.resources.AddHost(name, speed)
}

// TurnOffHost fails every activity located on host and kills the actors running there
func (k *Kernel) TurnOffHost(host string) error {
	k.mustBeMaestro()
	return k.resources.TurnOff(host)
}

// At schedules fn to be run by the maestro at simulated time t
func (k *Kernel) At(t float64, fn func()) {
	k.resources.At(t, func() { k.protect(fn) })
}

// Spawn creates an actor located on host. An empty host means the actor is not located anywhere.
func (k *Kernel) Spawn(name string, host string, fn func(*Actor)) (*Actor, error) {
	k.mustBeMaestro()
	return k.spawn(name, host, fn, 0, false)
}

// SpawnDaemon creates an actor that is killed when the last regular actor terminates
func (k *Kernel) SpawnDaemon(name string, host string, fn func(*Actor)) (*Actor, error) {
	k.mustBeMaestro()
	return k.spawn(name, host, fn, 0, true)
}

func (k *Kernel) spawn(name string, host string, fn func(*Actor), parent int, daemon bool) (*Actor, error) {
	if host != "" {
		h, ok := k.resources.Host(host)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrNoSuchHost, host)
		}
		if !h.On {
			return nil, &resource.Failure{Host: host, Activity: resource.Execution}
		}
	}
	a := &Actor{
		k:      k,
		id:     k.nextPid,
		parent: parent,
		name:   name,
		host:   host,
		daemon: daemon,
		fn:     fn,
		phase:  phaseStart,
	}
	k.nextPid++
	a.readySeq = k.nextReadySeq()
	a.ctx = k.factory.Create(a.body, a.cleanup, a, k.stackSize)
	k.actors[a.id] = a
	k.log.Debugf("Spawned actor %v", a)
	return a, nil
}

// Kill terminates the actor with the provided pid
func (k *Kernel) Kill(pid int) error {
	k.mustBeMaestro()
	a, ok := k.actors[pid]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoSuchActor, pid)
	}
	k.kill(a)
	return nil
}

// Actor returns the actor with the provided pid
func (k *Kernel) Actor(pid int) (*Actor, bool) {
	a, ok := k.actors[pid]
	return a, ok
}

// Actors returns all actors ever spawned, ordered by pid
func (k *Kernel) Actors() []*Actor {
	pids := maps.Keys(k.actors)
	slices.Sort(pids)
	out := make([]*Actor, len(pids))
	for i, pid := range pids {
		out[i] = k.actors[pid]
	}
	return out
}

// Hosts returns the names of the hosts in sorted order
func (k *Kernel) Hosts() []string {
	return k.resources.Hosts()
}

// HostOn reports whether the host exists and is turned on
func (k *Kernel) HostOn(host string) bool {
	h, ok := k.resources.Host(host)
	return ok && h.On
}

// Deliver puts payload in a mailbox from maestro side code, e.g. a failure detector
func (k *Kernel) Deliver(mailbox string, payload any) {
	k.mustBeMaestro()
	k.mailboxes[mailbox] = append(k.mailboxes[mailbox], payload)
}

// WatchFailures registers a mailbox that receives a notice every time the failure manager of the run crashes a host
func (k *Kernel) WatchFailures(mailbox string) {
	k.mustBeMaestro()
	if !slices.Contains(k.detectors, mailbox) {
		k.detectors = append(k.detectors, mailbox)
	}
}

// FailureDetectors returns the mailboxes registered with WatchFailures, in registration order
func (k *Kernel) FailureDetectors() []string {
	return append([]string{}, k.detectors...)
}

// Pending returns the number of messages waiting in a mailbox
func (k *Kernel) Pending(mailbox string) int {
	return len(k.mailboxes[mailbox])
}

func (k *Kernel) nextReadySeq() uint64 {
	k.readySeq++
	return k.readySeq
}

func (k *Kernel) mustBeMaestro() {
	if k.current != nil {
		panic(&simcall.ProtocolError{Reason: fmt.Sprintf("maestro operation called from the context of %v", k.current)})
	}
}

// Ready returns the actors that can be scheduled, in the order they became ready
func (k *Kernel) Ready() []guide.ReadyActor {
	ready := []*Actor{}
	for _, a := range k.actors {
		if k.enabled(a) {
			ready = append(ready, a)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].readySeq != ready[j].readySeq {
			return ready[i].readySeq < ready[j].readySeq
		}
		return ready[i].id < ready[j].id
	})
	out := make([]guide.ReadyActor, len(ready))
	for i, a := range ready {
		out[i] = guide.ReadyActor{ID: a.id, Parent: a.parent, Name: a.name, Step: a.step()}
	}
	return out
}

func (k *Kernel) enabled(a *Actor) bool {
	if a.terminated() || a.suspended {
		return false
	}
	switch a.phase {
	case phaseStart, phaseAnswered:
		return true
	case phasePending:
		switch args := a.simcall.Args.(type) {
		case simcall.RecvArgs:
			return len(k.mailboxes[args.Mailbox]) > 0
		case simcall.TargetArgs:
			if a.simcall.Kind == simcall.KindJoin {
				target, ok := k.actors[args.Target]
				return !ok || target.terminated()
			}
		}
		return true
	}
	return false
}

// Execute commits one transition: the pending simcall of the actor is handled and
// the actor runs until it issues its next simcall or terminates.
func (k *Kernel) Execute(t trace.Transition) error {
	k.mustBeMaestro()
	a, ok := k.actors[t.Actor]
	if !ok || !k.enabled(a) {
		return fmt.Errorf("%w: actor %v is not ready", guide.ErrDivergence, t.Actor)
	}
	step := a.step()
	if t.Choice < 0 || t.Choice >= max(step.Choices, 1) {
		return fmt.Errorf("%w: actor %v has no choice %v", guide.ErrDivergence, t.Actor, t.Choice)
	}
	k.trace = append(k.trace, t)
	k.log.Debugf("Transition %v: %v runs %v", len(k.trace), a, step)

	switch a.phase {
	case phaseStart, phaseAnswered:
		k.resume(a)
	case phasePending:
		sc := a.simcall
		k.protect(func() { k.handle(a, sc, t.Choice) })
		switch {
		case k.fatal != nil:
		case sc.Status() == simcall.Done:
			k.resume(a)
		case sc.Status() == simcall.Canceled:
		default:
			sc.Block()
			a.phase = phaseBlocked
		}
	}
	k.observer.TransitionExecuted(t, step)
	return nil
}

// Transfers control to the actor until it issues a simcall or terminates
func (k *Kernel) resume(a *Actor) {
	starting := a.phase == phaseStart
	a.phase = phaseRunning
	a.simcall = nil

	k.current = a
	k.window.Close()
	if starting {
		a.ctx.Start()
	} else {
		a.ctx.Resume()
	}
	k.window.Open()
	k.current = nil

	if err := a.ctx.Err(); err != nil {
		k.fail(err)
	}
	if a.ctx.Status() == execution.Terminated {
		k.finalize(a)
	}
}

// Called when a simcall is answered, from the maestro
func (k *Kernel) onAnswer(sc *simcall.Simcall) {
	k.observer.SimcallAnswered(sc, k.window.Active())
	a, ok := k.actors[sc.Issuer]
	if !ok || a.simcall != sc {
		return
	}
	if a.phase == phaseBlocked {
		a.phase = phaseAnswered
		a.readySeq = k.nextReadySeq()
		a.activity = nil
	}
}

func (k *Kernel) kill(a *Actor) {
	if a.terminated() {
		return
	}
	k.log.Debugf("Killing %v", a)
	if sc := a.simcall; sc != nil && sc.Cancel() {
		k.observer.SimcallCanceled(sc)
	}
	if a.activity != nil {
		k.resources.Cancel(a.activity)
		a.activity = nil
	}
	a.killed = true

	// The context runs its exit hooks before terminating
	prev := k.current
	k.current = a
	k.window.Close()
	a.ctx.Stop()
	k.window.Open()
	k.current = prev

	if err := a.ctx.Err(); err != nil {
		k.fail(err)
	}
	k.finalize(a)
}

// Kills every actor located on host
func (k *Kernel) killHost(host string) {
	for _, a := range k.Actors() {
		if a.host == host {
			k.kill(a)
		}
	}
}

func (k *Kernel) finalize(a *Actor) {
	if a.finalized {
		return
	}
	a.finalized = true
	a.phase = phaseTerminated
	a.simcall = nil
	k.log.Debugf("%v terminated (killed: %v)", a, a.killed)

	// Daemons are killed once the last regular actor terminates
	for _, other := range k.actors {
		if !other.daemon && !other.terminated() {
			return
		}
	}
	for _, other := range k.Actors() {
		if other.daemon && !other.terminated() {
			k.kill(other)
		}
	}
}

func (k *Kernel) fail(err error) {
	if k.fatal == nil {
		k.fatal = err
		k.log.WithError(err).Error("Fatal error")
	}
}

// Runs maestro side user code, turning panics into fatal errors
func (k *Kernel) protect(f func()) {
	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				k.fail(err)
				return
			}
			k.fail(fmt.Errorf("kernel: maestro panicked: %v \nStack Trace:\n %s", r, debug.Stack()))
		}
	}()
	f()
}

func (k *Kernel) alive() []*Actor {
	out := []*Actor{}
	for _, a := range k.Actors() {
		if !a.terminated() {
			out = append(out, a)
		}
	}
	return out
}

// Run executes the simulation with the guide choosing the order of the transitions.
//
// The run is stopped after maxDepth transitions. A non-positive maxDepth means no bound.
func (k *Kernel) Run(g guide.Guide, maxDepth int) Result {
	k.mustBeMaestro()
	for {
		if res, done := k.step(g, maxDepth); done {
			return k.end(res)
		}
	}
}

// Step executes the next transition selected by g, advancing the clock first if no actor is ready.
//
// Returns the result of the run and true once the run has ended. The kernel is
// shut down at that point and must not be stepped again.
func (k *Kernel) Step(g guide.Guide, maxDepth int) (Result, bool) {
	k.mustBeMaestro()
	if res, done := k.step(g, maxDepth); done {
		return k.end(res), true
	}
	return Result{}, false
}

func (k *Kernel) end(res Result) Result {
	res.Trace = k.Trace()
	res.Clock = k.Now()
	res.Transitions = len(res.Trace)
	if res.Violation != nil {
		res.Violation.Trace = res.Trace
	}
	k.Shutdown()
	k.log.Debugf("Run ended: %v after %v transitions", res.Outcome, res.Transitions)
	return res
}

func (k *Kernel) step(g guide.Guide, maxDepth int) (Result, bool) {
	for {
		if k.fatal != nil {
			return Result{Outcome: Fatal, Err: k.fatal}, true
		}
		if k.violation != nil {
			return Result{Outcome: AssertionViolation, Violation: k.violation}, true
		}
		if len(k.alive()) == 0 {
			return Result{Outcome: Completed}, true
		}

		ready := k.Ready()
		if len(ready) == 0 {
			if k.resources.Advance() {
				continue
			}
			return Result{Outcome: Deadlock, Blocked: k.blocked()}, true
		}
		if maxDepth > 0 && len(k.trace) >= maxDepth {
			return Result{Outcome: DepthExceeded}, true
		}

		t, err := g.NextTransition(ready)
		if errors.Is(err, guide.ErrPruned) {
			return Result{Outcome: Pruned}, true
		}
		if err == nil {
			err = g.ExecuteNext(t, k)
		}
		if err != nil {
			k.fail(err)
		}
		return Result{}, false
	}
}

// Describes why every alive actor is unable to run
func (k *Kernel) blocked() []BlockedActor {
	out := []BlockedActor{}
	for _, a := range k.alive() {
		out = append(out, BlockedActor{ID: a.id, Name: a.name, Reason: a.waitingFor()})
	}
	return out
}

// Shutdown stops every context that is still alive so that no goroutine outlives the run.
//
// Run shuts the kernel down when it returns. Call it directly when a kernel is discarded without being run.
func (k *Kernel) Shutdown() {
	for _, a := range k.alive() {
		if sc := a.simcall; sc != nil {
			sc.Cancel()
		}
		a.killed = true
		k.current = a
		k.window.Close()
		a.ctx.Stop()
		k.window.Open()
		k.current = nil
		a.finalized = true
		a.phase = phaseTerminated
	}
}
