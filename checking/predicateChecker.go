package checking

import (
	"bytes"
	"fmt"
	"text/tabwriter"

	"simkernel/kernel"
	"simkernel/simulator"
	"simkernel/trace"
)

type predicateCheckerResponse struct {
	Result bool           // True if all predicates hold. False otherwise
	Run    *kernel.Result // The run breaking a predicate. nil if Result is true
	Test   int            // The index of the failing predicate. -1 if Result is true
	Runs   int
}

// Generate a response
// Returns two parameters, result, and description.
// Result is true if all predicates hold, false otherwise.
// Description is a formatted string providing a detailed description of the result.
// If result is false the description contains the trace of the failing run and why it failed
func (pcr predicateCheckerResponse) Response() (bool, string) {
	if pcr.Result {
		return pcr.Result, fmt.Sprintf("All predicates hold for %v runs", pcr.Runs)
	}
	var buffer bytes.Buffer
	wrt := tabwriter.NewWriter(&buffer, 4, 4, 0, ' ', 0)
	out := fmt.Sprintf("Predicate broken. Predicate: %v. Run: \n", pcr.Test)
	fmt.Fprintf(wrt, "-> Outcome:\t%v \n", pcr.Run.Outcome)
	fmt.Fprintf(wrt, "-> Trace:\t%v \n", pcr.Run.Trace)
	fmt.Fprintf(wrt, "-> Clock:\t%v \n", pcr.Run.Clock)
	if err := pcr.Run.Error(); err != nil {
		fmt.Fprintf(wrt, "-> Error:\t%v \n", err)
	}
	for _, b := range pcr.Run.Blocked {
		fmt.Fprintf(wrt, "-> Blocked:\t%v \n", b)
	}
	wrt.Flush()
	out += buffer.String()
	return pcr.Result, out
}

// Export the trace of the failing run to be replayed by the replay guide
func (pcr predicateCheckerResponse) Export() trace.Trace {
	if pcr.Run == nil {
		return trace.Trace{}
	}
	return pcr.Run.Trace.Copy()
}

type PredicateChecker struct {
	// Predicates that return true if they hold for a run
	predicates []Predicate
}

func NewPredicateChecker(predicates ...Predicate) *PredicateChecker {
	return &PredicateChecker{
		predicates: predicates,
	}
}

// A checker verifying that no run ended with a violation or a fatal error.
// If deadlockIsFailure is true deadlocked runs are also failures.
func NewOutcomeChecker(deadlockIsFailure bool) *PredicateChecker {
	preds := []Predicate{NoFatal, NoViolation}
	if deadlockIsFailure {
		preds = append(preds, NoDeadlock)
	}
	return NewPredicateChecker(preds...)
}

// Checks the runs in the order they were simulated. Stops at the first run breaking a predicate
func (pc *PredicateChecker) Check(report *simulator.Report) CheckerResponse {
	for i := range report.Runs {
		run := report.Runs[i]
		if ok, index := pc.checkRun(run); !ok {
			return predicateCheckerResponse{
				Result: false,
				Run:    &run,
				Test:   index,
				Runs:   len(report.Runs),
			}
		}
	}
	return predicateCheckerResponse{
		Result: true,
		Test:   -1,
		Runs:   len(report.Runs),
	}
}

func (pc *PredicateChecker) checkRun(run kernel.Result) (bool, int) {
	for index, pred := range pc.predicates {
		if !pred(run) {
			return false, index
		}
	}
	return true, -1
}
