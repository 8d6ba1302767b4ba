// Package checking verifies properties over the runs of a simulation.
package checking

import (
	"simkernel/simulator"
	"simkernel/trace"
)

// The Checker verifies that properties hold for every simulated run.
type Checker interface {
	// Verify that the configured properties hold for the runs in the report
	Check(report *simulator.Report) CheckerResponse
}

// CheckerResponse is a response returned by a Checker
//
// Contains the result of checking the system.
type CheckerResponse interface {
	// Create a response.
	//
	// Returns a boolean that is true if all properties hold, false otherwise.
	// Returns a string describing the response.
	// This includes a description of which property is violated and the run which caused it to be violated.
	Response() (bool, string)

	// Export the run which caused a property to be violated
	//
	// If a property was violated it returns the trace of the run. It can be replayed with the replay guide.
	// Otherwise it returns an empty trace.
	Export() trace.Trace
}
