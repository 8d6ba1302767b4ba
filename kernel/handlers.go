package kernel

import (
	"fmt"

	"simkernel/simcall"
)

// Handles the pending simcall of a. Runs in the maestro.
//
// The simcall is either answered right away, or left unanswered until an
// activity or a promise completes it.
func (k *Kernel) handle(a *Actor, sc *simcall.Simcall, choice int) {
	switch args := sc.Args.(type) {
	case simcall.SendArgs:
		k.mailboxes[args.Mailbox] = append(k.mailboxes[args.Mailbox], args.Payload)
		sc.Answer(nil, nil)

	case simcall.RecvArgs:
		queue := k.mailboxes[args.Mailbox]
		msg := queue[0]
		k.mailboxes[args.Mailbox] = queue[1:]
		sc.Answer(msg, nil)

	case simcall.ExecArgs:
		host := args.Host
		if host == "" {
			sc.Answer(nil, fmt.Errorf("%w: %v is not located on a host", ErrNoSuchHost, a))
			return
		}
		k.block(a, sc, func(done func(error)) error {
			act, err := k.resources.StartExecution(host, args.Flops, done)
			a.activity = act
			return err
		})

	case simcall.SleepArgs:
		k.block(a, sc, func(done func(error)) error {
			act, err := k.resources.StartTimer(a.host, args.Duration, done)
			a.activity = act
			return err
		})

	case simcall.RunKernelArgs:
		args.Fn()
		if sc.Status() == simcall.Pending {
			sc.Answer(nil, nil)
		}

	case simcall.RunBlockingArgs:
		args.Fn(&Promise{sc: sc})

	case simcall.RandomArgs:
		sc.Answer(args.Min+choice, nil)

	case simcall.TargetArgs:
		k.handleTarget(a, sc, args.Target)

	case simcall.RPCArgs:
		sc.Answer(nil, nil)

	default:
		// Yield
		sc.Answer(nil, nil)
	}
}

// Starts an activity. The simcall is answered when it completes or fails.
func (k *Kernel) block(a *Actor, sc *simcall.Simcall, start func(done func(error)) error) {
	err := start(func(err error) {
		a.activity = nil
		sc.Answer(nil, err)
	})
	if err != nil {
		sc.Answer(nil, err)
	}
}

func (k *Kernel) handleTarget(a *Actor, sc *simcall.Simcall, pid int) {
	target, ok := k.actors[pid]
	if !ok {
		sc.Answer(nil, fmt.Errorf("%w: %v", ErrNoSuchActor, pid))
		return
	}
	switch sc.Kind {
	case simcall.KindKill:
		k.kill(target)
		if target != a {
			sc.Answer(nil, nil)
		}

	case simcall.KindSuspend:
		if target.terminated() {
			sc.Answer(nil, nil)
			return
		}
		target.suspended = true
		// An actor suspending itself stays blocked until it is resumed
		if target != a {
			sc.Answer(nil, nil)
		}

	case simcall.KindResume:
		target.suspended = false
		if ts := target.simcall; ts != nil && ts.Kind == simcall.KindSuspend && ts.Status() == simcall.Blocked {
			if args := ts.Args.(simcall.TargetArgs); args.Target == target.id {
				ts.Answer(nil, nil)
			}
		}
		sc.Answer(nil, nil)

	case simcall.KindJoin:
		sc.Answer(nil, nil)
	}
}
