// Package resource is a minimal deterministic resource model.
//
// It owns the simulated clock, the hosts and the pending activities (executions,
// timers and external events). The kernel asks it to advance the clock whenever
// no actor is ready to run. Activities finishing at the same instant complete in
// the order they were started.
package resource

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"
)

type ActivityKind int

const (
	Execution ActivityKind = iota
	Timer
	External
)

func (k ActivityKind) String() string {
	switch k {
	case Execution:
		return "execution"
	case Timer:
		return "timer"
	case External:
		return "external"
	}
	return fmt.Sprintf("ActivityKind(%d)", int(k))
}

type Host struct {
	Name  string
	Speed float64
	On    bool
}

type Activity struct {
	ID     uint64
	Kind   ActivityKind
	Host   string
	Start  float64
	Finish float64

	done  func(error)
	index int
}

// Failure is the error seen by actors whose activity was interrupted by a host failure
type Failure struct {
	Host     string
	Activity ActivityKind
}

func (f *Failure) Error() string {
	return fmt.Sprintf("resource: %v interrupted, host %v is off", f.Activity, f.Host)
}

type Model struct {
	now   float64
	hosts map[string]*Host
	queue *activityHeap
	seq   uint64

	offListeners []func(host string)

	log *logrus.Entry
}

func NewModel(log *logrus.Entry) *Model {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Model{
		hosts: make(map[string]*Host),
		queue: newActivityHeap(),
		log:   log.WithField("component", "resource"),
	}
}

// Current simulated time
func (m *Model) Now() float64 {
	return m.now
}

// Add a host able to compute speed flops per time unit. Hosts start turned on.
func (m *Model) AddHost(name string, speed float64) error {
	if name == "" {
		return fmt.Errorf("resource: host name can not be empty")
	}
	if speed <= 0 {
		return fmt.Errorf("resource: host %v must have a positive speed, got %v", name, speed)
	}
	if _, ok := m.hosts[name]; ok {
		return fmt.Errorf("resource: host %v already exists", name)
	}
	m.hosts[name] = &Host{Name: name, Speed: speed, On: true}
	return nil
}

func (m *Model) Host(name string) (Host, bool) {
	h, ok := m.hosts[name]
	if !ok {
		return Host{}, false
	}
	return *h, true
}

// Hosts returns the names of all the hosts in sorted order
func (m *Model) Hosts() []string {
	names := make([]string, 0, len(m.hosts))
	for name := range m.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Model) add(kind ActivityKind, host string, duration float64, done func(error)) *Activity {
	m.seq++
	a := &Activity{
		ID:     m.seq,
		Kind:   kind,
		Host:   host,
		Start:  m.now,
		Finish: m.now + duration,
		done:   done,
	}
	m.queue.schedule(a)
	return a
}

// Start computing flops on host. done is called when the execution completes or fails.
func (m *Model) StartExecution(host string, flops float64, done func(error)) (*Activity, error) {
	h, ok := m.hosts[host]
	if !ok {
		return nil, fmt.Errorf("resource: unknown host %v", host)
	}
	if !h.On {
		return nil, &Failure{Host: host, Activity: Execution}
	}
	if !finite(flops) || flops < 0 {
		return nil, fmt.Errorf("resource: invalid amount of work %v", flops)
	}
	return m.add(Execution, host, flops/h.Speed, done), nil
}

// Start a timer firing after duration. If host is not empty the timer fails when the host is turned off.
func (m *Model) StartTimer(host string, duration float64, done func(error)) (*Activity, error) {
	if host != "" {
		h, ok := m.hosts[host]
		if !ok {
			return nil, fmt.Errorf("resource: unknown host %v", host)
		}
		if !h.On {
			return nil, &Failure{Host: host, Activity: Timer}
		}
	}
	if !finite(duration) || duration < 0 {
		return nil, fmt.Errorf("resource: invalid timer duration %v", duration)
	}
	return m.add(Timer, host, duration, done), nil
}

// At schedules fn to be called at time t. If t is in the past it is called at the next advance.
func (m *Model) At(t float64, fn func()) *Activity {
	d := t - m.now
	if !(d >= 0) {
		d = 0
	}
	return m.add(External, "", d, func(error) { fn() })
}

// Cancel removes a pending activity. Its completion callback is never called.
func (m *Model) Cancel(a *Activity) {
	if a == nil {
		return
	}
	m.queue.remove(a)
}

// Pending reports whether some activity is still scheduled
func (m *Model) Pending() bool {
	return m.queue.Len() > 0
}

// Advance moves the clock to the next completion instant and completes every activity finishing then.
// Returns false if there was nothing to advance to.
func (m *Model) Advance() bool {
	if m.queue.peek() == nil {
		return false
	}
	// The head is always due, so every advance makes progress
	next := m.queue.popNext()
	m.now = next.Finish
	due := []*Activity{next}
	for a := m.queue.peek(); a != nil && a.Finish == m.now; a = m.queue.peek() {
		due = append(due, m.queue.popNext())
	}
	m.log.Debugf("Advanced clock to %v, completing %v activities", m.now, len(due))
	for _, a := range due {
		a.done(nil)
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// OnHostOff registers a function called every time a host is turned off
func (m *Model) OnHostOff(fn func(host string)) {
	m.offListeners = append(m.offListeners, fn)
}

// TurnOff stops host. Every activity located on it fails with a Failure.
func (m *Model) TurnOff(host string) error {
	h, ok := m.hosts[host]
	if !ok {
		return fmt.Errorf("resource: unknown host %v", host)
	}
	if !h.On {
		return nil
	}
	h.On = false
	m.log.Debugf("Host %v turned off at %v", host, m.now)

	failed := []*Activity{}
	for _, a := range m.queue.activities {
		if a.Host == host {
			failed = append(failed, a)
		}
	}
	sort.Slice(failed, func(i, j int) bool { return failed[i].ID < failed[j].ID })
	for _, a := range failed {
		m.queue.remove(a)
	}
	for _, a := range failed {
		a.done(&Failure{Host: host, Activity: a.Kind})
	}
	for _, fn := range m.offListeners {
		fn(host)
	}
	return nil
}

func (m *Model) TurnOn(host string) error {
	h, ok := m.hosts[host]
	if !ok {
		return fmt.Errorf("resource: unknown host %v", host)
	}
	h.On = true
	return nil
}
