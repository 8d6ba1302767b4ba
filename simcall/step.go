package simcall

import "fmt"

// Step is the footprint of the transition an actor will take next.
//
// Guides use it to decide which transitions commute.
type Step struct {
	Kind Kind
	// The shared resource touched by the transition. Empty if it only touches actor local state.
	Resource string
	// Number of alternative outcomes of the transition. Only random simcalls have more than one.
	Choices int
}

func MailboxResource(name string) string { return "mailbox:" + name }
func RPCResource(target string) string   { return "rpc:" + target }

// StepOf computes the footprint of a pending simcall.
// A nil simcall is the start of an actor.
func StepOf(sc *Simcall) Step {
	if sc == nil {
		return Step{Kind: KindStart, Choices: 1}
	}
	step := Step{Kind: sc.Kind, Choices: 1}
	switch a := sc.Args.(type) {
	case SendArgs:
		step.Resource = MailboxResource(a.Mailbox)
	case RecvArgs:
		step.Resource = MailboxResource(a.Mailbox)
	case RPCArgs:
		step.Resource = RPCResource(a.Target)
	case RandomArgs:
		step.Choices = a.Max - a.Min + 1
	}
	return step
}

// DependentWith reports whether the order of the two steps may matter.
//
// Global steps are dependent with everything. Other steps are dependent only
// when they touch the same resource.
func (s Step) DependentWith(o Step) bool {
	if s.Kind.Global() || o.Kind.Global() {
		return true
	}
	if s.Resource == "" || o.Resource == "" {
		return false
	}
	return s.Resource == o.Resource
}

func (s Step) String() string {
	if s.Resource == "" {
		return s.Kind.String()
	}
	return fmt.Sprintf("%v(%v)", s.Kind, s.Resource)
}
