// Package simcall defines the requests actors send to the maestro.
//
// Actors never touch shared simulation state. Every interaction is issued as a
// Simcall, parked on the actor, and resolved by the maestro inside a maestro
// window. A simcall is answered or canceled exactly once.
package simcall

import "fmt"

type Kind int

const (
	// Pseudo kind of the first transition of an actor, before it has issued any simcall
	KindStart Kind = iota
	// Pseudo kind of the transition resuming an actor whose blocking simcall has completed
	KindWake
	KindSend
	KindRecv
	KindExecute
	KindSleep
	KindYield
	KindRunKernel
	KindRunBlocking
	KindRandom
	KindKill
	KindSuspend
	KindResume
	KindJoin
	KindRPC
)

var kindNames = map[Kind]string{
	KindStart:       "start",
	KindWake:        "wake",
	KindSend:        "send",
	KindRecv:        "recv",
	KindExecute:     "execute",
	KindSleep:       "sleep",
	KindYield:       "yield",
	KindRunKernel:   "run-kernel",
	KindRunBlocking: "run-blocking",
	KindRandom:      "random",
	KindKill:        "kill",
	KindSuspend:     "suspend",
	KindResume:      "resume",
	KindJoin:        "join",
	KindRPC:         "rpc",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Global kinds may touch any part of the simulation state.
// They are treated as dependent with every other transition.
func (k Kind) Global() bool {
	switch k {
	case KindRunKernel, KindRunBlocking, KindKill, KindSuspend, KindResume, KindJoin:
		return true
	}
	return false
}
