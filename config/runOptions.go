package config

import "io"

// Configures io.writers that the tree of explored runs will be exported to

// Can be applied multiple times to add multiple io.writers.
// Default value is no writers.
type ExportOption struct {
	W io.Writer
}

func (eo ExportOption) RunOpt() {}

// Configures io.writers that the trace of the first failing run is written to, as JSON lines.

// Default value is no writers.
type TraceOutputOption struct {
	W io.Writer
}

func (to TraceOutputOption) RunOpt() {}
