package simcall

import (
	"fmt"
	"math"
)

type SendArgs struct {
	Mailbox string
	Payload any
}

type RecvArgs struct {
	Mailbox string
}

type ExecArgs struct {
	// Empty means the host of the issuer
	Host  string
	Flops float64
}

type SleepArgs struct {
	Duration float64
}

// Random value in the closed interval [Min, Max]
type RandomArgs struct {
	Min int
	Max int
}

type RunKernelArgs struct {
	Fn func()
}

// Completion is handed to run-blocking closures. Calling one of its methods answers the simcall.
type Completion interface {
	Resolve(value any)
	Reject(err error)
}

type RunBlockingArgs struct {
	Fn func(Completion)
}

// Arguments of the simcalls acting on another actor: kill, suspend, resume and join
type TargetArgs struct {
	Target int
}

type RPCArgs struct {
	Target string
	Method string
}

// Validate checks that args has the shape expected by kind.
// Returns a ProtocolError otherwise.
func Validate(kind Kind, args any) error {
	bad := func(format string, a ...any) error {
		return &ProtocolError{Kind: kind, Reason: fmt.Sprintf(format, a...)}
	}
	switch kind {
	case KindSend:
		a, ok := args.(SendArgs)
		if !ok {
			return bad("expected SendArgs, got %T", args)
		}
		if a.Mailbox == "" {
			return bad("empty mailbox")
		}
	case KindRecv:
		a, ok := args.(RecvArgs)
		if !ok {
			return bad("expected RecvArgs, got %T", args)
		}
		if a.Mailbox == "" {
			return bad("empty mailbox")
		}
	case KindExecute:
		a, ok := args.(ExecArgs)
		if !ok {
			return bad("expected ExecArgs, got %T", args)
		}
		if a.Flops < 0 || math.IsNaN(a.Flops) || math.IsInf(a.Flops, 0) {
			return bad("invalid amount of work %v", a.Flops)
		}
	case KindSleep:
		a, ok := args.(SleepArgs)
		if !ok {
			return bad("expected SleepArgs, got %T", args)
		}
		if a.Duration < 0 || math.IsNaN(a.Duration) || math.IsInf(a.Duration, 0) {
			return bad("invalid duration %v", a.Duration)
		}
	case KindYield:
		if args != nil {
			return bad("yield takes no arguments, got %T", args)
		}
	case KindRandom:
		a, ok := args.(RandomArgs)
		if !ok {
			return bad("expected RandomArgs, got %T", args)
		}
		if a.Min > a.Max {
			return bad("empty interval [%v, %v]", a.Min, a.Max)
		}
		// The number of choices must fit in an int
		if a.Max-a.Min < 0 || a.Max-a.Min == math.MaxInt {
			return bad("interval [%v, %v] is too large", a.Min, a.Max)
		}
	case KindRunKernel:
		a, ok := args.(RunKernelArgs)
		if !ok || a.Fn == nil {
			return bad("expected RunKernelArgs with a function, got %T", args)
		}
	case KindRunBlocking:
		a, ok := args.(RunBlockingArgs)
		if !ok || a.Fn == nil {
			return bad("expected RunBlockingArgs with a function, got %T", args)
		}
	case KindKill, KindSuspend, KindResume, KindJoin:
		a, ok := args.(TargetArgs)
		if !ok {
			return bad("expected TargetArgs, got %T", args)
		}
		if a.Target <= 0 {
			return bad("invalid target actor %v", a.Target)
		}
	case KindRPC:
		a, ok := args.(RPCArgs)
		if !ok {
			return bad("expected RPCArgs, got %T", args)
		}
		if a.Target == "" {
			return bad("empty rpc target")
		}
	default:
		return bad("unknown simcall kind")
	}
	return nil
}
