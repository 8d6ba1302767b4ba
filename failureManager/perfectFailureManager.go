package failureManager

import (
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"simkernel/kernel"
)

// A host failure: the host is turned off at the simulated time At
type Crash struct {
	Host string
	At   float64
}

// A crash notice, delivered to the mailboxes registered with kernel.WatchFailures
type Notice struct {
	Host string
	At   float64
	// Every host crashed so far, in sorted order
	Crashed []string
}

// The PerfectFailureManager implements the PerfectFailureDetector abstraction in a fail-stop system.
//
// It is configured with the hosts that will crash during each run, and when.
// A crashed host fails every activity located on it and kills its actors.
// Subscribers are informed of every crash at the instant it happens.
type PerfectFailureManager struct {
	crashes []Crash
}

func NewPerfectFailureManager(crashes ...Crash) *PerfectFailureManager {
	return &PerfectFailureManager{crashes: crashes}
}

func (pfm *PerfectFailureManager) GetRunFailureManager() RunFailureManager {
	return newRunPerfectFailureManager(pfm.crashes)
}

// The run specific implementation of the PerfectFailureManager
type runPerfectFailureManager struct {
	crashes []Crash

	k         *kernel.Kernel
	correct   map[string]bool
	callbacks []func(string, bool)
}

func newRunPerfectFailureManager(crashes []Crash) *runPerfectFailureManager {
	return &runPerfectFailureManager{
		crashes: crashes,
		correct: make(map[string]bool),
	}
}

// Initialize the failure manager with the hosts of the kernel and schedule the crashes
func (fm *runPerfectFailureManager) Init(k *kernel.Kernel) error {
	fm.k = k
	for _, host := range k.Hosts() {
		fm.correct[host] = k.HostOn(host)
	}
	for _, c := range fm.crashes {
		if _, ok := fm.correct[c.Host]; !ok {
			return fmt.Errorf("FailureManager: Crash scheduled for host %v that is not deployed", c.Host)
		}
		k.At(c.At, func() {
			if err := fm.hostCrash(c.Host); err != nil {
				panic(err)
			}
		})
	}
	// The perfect failure detector: every watcher learns about every crash at the instant it happens
	fm.Subscribe(func(host string, status bool) {
		if status {
			return
		}
		notice := Notice{Host: host, At: k.Now(), Crashed: Crashed(fm)}
		for _, mailbox := range k.FailureDetectors() {
			k.Deliver(mailbox, notice)
		}
	})
	return nil
}

func (fm *runPerfectFailureManager) CorrectHosts() map[string]bool {
	return maps.Clone(fm.correct)
}

// Perform the crash of the host. Runs in the maestro.
func (fm *runPerfectFailureManager) hostCrash(host string) error {
	if status := fm.correct[host]; !status {
		return fmt.Errorf("FailureManager: Received crash for host %v that has already crashed. Is failStop abstraction so a host can not crash again", host)
	}
	fm.correct[host] = false
	if err := fm.k.TurnOffHost(host); err != nil {
		return err
	}
	for _, f := range fm.callbacks {
		f(host, false)
	}
	return nil
}

func (fm *runPerfectFailureManager) Subscribe(callback func(host string, status bool)) {
	fm.callbacks = append(fm.callbacks, callback)
}

// Crashed returns the hosts that have crashed so far, in sorted order
func Crashed(fm RunFailureManager) []string {
	out := []string{}
	for host, ok := range fm.CorrectHosts() {
		if !ok {
			out = append(out, host)
		}
	}
	slices.Sort(out)
	return out
}
