package checking

import (
	"strings"
	"testing"

	"simkernel/kernel"
	"simkernel/simulator"
	"simkernel/trace"
)

func TestEventually(t *testing.T) {
	pred := Eventually(func(res kernel.Result) bool { return res.Clock > 1 })
	for i, test := range eventuallyTest {
		if out := pred(test.res); out != test.expected {
			t.Errorf("Received unexpected bool from predicate on test %v. Got %v", i, out)
		}
	}
}

var eventuallyTest = []struct {
	res      kernel.Result
	expected bool
}{
	{kernel.Result{Outcome: kernel.DepthExceeded, Clock: 0}, true},
	{kernel.Result{Outcome: kernel.Pruned, Clock: 0}, true},
	{kernel.Result{Outcome: kernel.Completed, Clock: 2}, true},
	{kernel.Result{Outcome: kernel.Completed, Clock: 0}, false},
	{kernel.Result{Outcome: kernel.Deadlock, Clock: 0}, false},
}

func TestForAllBlocked(t *testing.T) {
	cond := func(b kernel.BlockedActor) bool { return b.Name == "server" }
	for i, test := range forAllBlockedTest {
		if out := ForAllBlocked(cond, test.res); out != test.expected {
			t.Errorf("Received unexpected bool from predicate on test %v. Got %v", i, out)
		}
	}
}

var forAllBlockedTest = []struct {
	res      kernel.Result
	expected bool
}{
	{kernel.Result{}, true},
	{kernel.Result{Blocked: []kernel.BlockedActor{{ID: 1, Name: "server"}}}, true},
	{kernel.Result{Blocked: []kernel.BlockedActor{{ID: 1, Name: "server"}, {ID: 2, Name: "client"}}}, false},
}

func TestPredicateChecker(t *testing.T) {
	violation := kernel.Result{
		Outcome:   kernel.AssertionViolation,
		Trace:     trace.Trace{{Actor: 2}, {Actor: 1, Choice: 1}},
		Violation: &kernel.Violation{Actor: 1, Name: "server", Message: "boom"},
	}
	deadlock := kernel.Result{
		Outcome: kernel.Deadlock,
		Trace:   trace.Trace{{Actor: 1}},
		Blocked: []kernel.BlockedActor{{ID: 1, Name: "server", Reason: "receiving on empty mailbox x"}},
	}
	completed := kernel.Result{Outcome: kernel.Completed, Trace: trace.Trace{{Actor: 1}, {Actor: 2}}}

	for i, test := range []struct {
		checker  Checker
		runs     []kernel.Result
		expected bool
		export   trace.Trace
		contains string
	}{
		{NewOutcomeChecker(false), []kernel.Result{completed, deadlock}, true, trace.Trace{}, "All predicates hold for 2 runs"},
		{NewOutcomeChecker(true), []kernel.Result{completed, deadlock}, false, deadlock.Trace, "receiving on empty mailbox"},
		{NewOutcomeChecker(false), []kernel.Result{completed, violation, deadlock}, false, violation.Trace, "boom"},
		{NewPredicateChecker(Terminates), []kernel.Result{{Outcome: kernel.DepthExceeded}}, false, trace.Trace{}, "Predicate: 0"},
		{NewPredicateChecker(), []kernel.Result{violation}, true, trace.Trace{}, "All predicates hold"},
	} {
		resp := test.checker.Check(&simulator.Report{Runs: test.runs})
		ok, desc := resp.Response()
		if ok != test.expected {
			t.Errorf("Test %v: Expected result %v. Got %v: %v", i, test.expected, ok, desc)
		}
		if !strings.Contains(desc, test.contains) {
			t.Errorf("Test %v: Expected the description to contain %q. Got %v", i, test.contains, desc)
		}
		if export := resp.Export(); export.String() != test.export.String() {
			t.Errorf("Test %v: Unexpected exported trace. Got %v. Expected %v", i, export, test.export)
		}
	}
}
