package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"simkernel"
	"simkernel/config"
	"simkernel/examples"
)

var (
	cfgPairs  []string // key:value configuration pairs
	cfgFile   string   // YAML configuration file
	logLevel  string   // Log verbosity level
	tracePath string   // Where the trace of the run is saved
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:          "simkernel",
	Short:        "Run and explore simulated actor programs",
	SilenceUsage: true,
}

// Execute runs the root command and exits with a non zero status on error
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringArrayVar(&cfgPairs, "cfg", nil, "configuration pair key:value, can be repeated")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error), overrides log/level")
	rootCmd.PersistentFlags().StringVar(&tracePath, "trace", "", "file the trace of the run is written to (.json, .pb or text)")
}

// Builds the configuration from the defaults, the configuration file, and the --cfg pairs, in that order.
// The log level of logrus is set from the result.
func loadConfig(defaults ...string) (*config.Config, error) {
	cfg := config.Default()
	for _, pair := range defaults {
		if err := cfg.SetPair(pair); err != nil {
			return nil, err
		}
	}
	if cfgFile != "" {
		f, err := os.Open(cfgFile)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		if err := cfg.Load(f); err != nil {
			return nil, err
		}
	}
	for _, pair := range cfgPairs {
		if err := cfg.SetPair(pair); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		if err := cfg.Set(config.KeyLogLevel, logLevel); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel)
	logrus.SetLevel(level)
	return cfg, nil
}

func lookup(name string) (examples.Scenario, error) {
	s, ok := examples.Lookup(name)
	if !ok {
		return s, fmt.Errorf("unknown scenario %q, see simkernel scenarios", name)
	}
	return s, nil
}

// Options shared by all the commands simulating a scenario
func scenarioOptions(s examples.Scenario, cfg *config.Config, opts ...simkernel.SimulatorOption) []simkernel.SimulatorOption {
	out := []simkernel.SimulatorOption{simkernel.FromConfig(cfg)}
	if s.DeadlockIsFailure {
		out = append(out, simkernel.DeadlockIsFailure())
	}
	return append(out, opts...)
}

func runOptions(s examples.Scenario) []simkernel.RunOptions {
	if s.Failures == nil {
		return nil
	}
	return []simkernel.RunOptions{simkernel.WithFailureManager(s.Failures)}
}
