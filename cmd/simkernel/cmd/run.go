package cmd

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"simkernel"
	"simkernel/config"
	"simkernel/examples"
	"simkernel/kernel"
	"simkernel/trace"
)

// runCmd executes a single run of a scenario
var runCmd = &cobra.Command{
	Use:   "run <scenario>",
	Short: "Execute one run of a scenario, picking the first ready actor at every step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return single(cmd.OutOrStdout(), args[0], cfg, simkernel.Basic())
	},
}

// replayCmd executes a recorded run of a scenario
var replayCmd = &cobra.Command{
	Use:   "replay <scenario> <trace>",
	Short: "Replay a recorded run of a scenario. The trace is given in text form or as a file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		run, err := simkernel.ReadTrace(args[1])
		if err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return single(cmd.OutOrStdout(), args[0], cfg, simkernel.Replay(run))
	},
}

// Simulates a single run of the scenario with the provided guide and prints its outcome
func single(w io.Writer, name string, cfg *config.Config, g simkernel.SimulatorOption) error {
	s, err := lookup(name)
	if err != nil {
		return err
	}
	sim, err := simkernel.PrepareSimulation(scenarioOptions(s, cfg, g, simkernel.MaxRuns(1), simkernel.NumConcurrent(1), simkernel.IgnoreError())...)
	if err != nil {
		return err
	}
	_, report, err := sim.Run(s.Program, runOptions(s)...)
	if err != nil {
		return err
	}
	if len(report.Runs) == 0 {
		return fmt.Errorf("no run was simulated")
	}
	res := report.Runs[0]
	printResult(w, res)
	if tracePath != "" {
		if err := trace.Save(tracePath, res.Trace); err != nil {
			return err
		}
		logrus.Infof("Trace written to %v", tracePath)
	}
	return failure(s, res)
}

func printResult(w io.Writer, res kernel.Result) {
	fmt.Fprintf(w, "Outcome: %v\n", res.Outcome)
	fmt.Fprintf(w, "Trace: %v\n", res.Trace)
	fmt.Fprintf(w, "Clock: %v\n", res.Clock)
	if err := res.Error(); err != nil {
		fmt.Fprintf(w, "Error: %v\n", err)
	}
}

// Returns an error if the run is a failure of the scenario
func failure(s examples.Scenario, res kernel.Result) error {
	switch res.Outcome {
	case kernel.AssertionViolation, kernel.Fatal:
		return res.Error()
	case kernel.Deadlock:
		if s.DeadlockIsFailure {
			return res.Error()
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(replayCmd)
}
