package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"simkernel"
	"simkernel/config"
	"simkernel/trace"
)

var (
	exportTree  bool // Print the tree of explored runs
	stopAtFirst bool // Interrupt the exploration at the first failing run
)

// exploreCmd explores the runs of a scenario with the configured guide, dpor by default
var exploreCmd = &cobra.Command{
	Use:   "explore <scenario>",
	Short: "Explore the runs of a scenario and report every failing one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.KeyGuide + ":" + config.GuideDPOR)
		if err != nil {
			return err
		}
		s, err := lookup(args[0])
		if err != nil {
			return err
		}
		if stopAtFirst {
			cfg.StopAtFailure = true
		}
		sim, err := simkernel.PrepareSimulation(scenarioOptions(s, cfg)...)
		if err != nil {
			return err
		}

		opts := runOptions(s)
		if exportTree {
			opts = append(opts, simkernel.Export(cmd.OutOrStdout()))
		}
		resp, report, err := sim.Run(s.Program, opts...)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if exportTree {
			fmt.Fprintln(out)
		}
		fmt.Fprintln(out, report)

		ok, desc := resp.Response()
		fmt.Fprintln(out, desc)
		if ok {
			return nil
		}
		failures := report.Failures(cfg.DeadlockIsFailure || s.DeadlockIsFailure)
		if len(failures) > 0 {
			fmt.Fprintf(out, "%v failing runs:\n", len(failures))
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			for _, f := range failures {
				fmt.Fprintf(w, "  %v\t%v\n", f.Outcome, f.Trace)
			}
			w.Flush()
		}
		if tracePath != "" {
			if err := trace.Save(tracePath, resp.Export()); err != nil {
				return err
			}
			logrus.Infof("Trace of the failing run written to %v", tracePath)
		}
		return errors.New("a run of the scenario failed")
	},
}

func init() {
	exploreCmd.Flags().BoolVar(&exportTree, "tree", false, "print the tree of explored runs in Newick format")
	exploreCmd.Flags().BoolVar(&stopAtFirst, "stop-at-first", false, "interrupt the exploration at the first failing run")
	rootCmd.AddCommand(exploreCmd)
}
