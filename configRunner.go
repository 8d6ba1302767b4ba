package simkernel

import (
	"simkernel/config"
	"simkernel/execution"
	"simkernel/guide"
	"simkernel/kernel"
	"simkernel/runner"
	"simkernel/simulator"
)

// Prepare a runner executing a single run of the program, one command at a time.
//
// g selects the transitions of the run. The runner is started and ready to receive commands.
func PrepareRunner(program simulator.Program, g guide.Global, opts ...RunnerOption) (*runner.Runner, error) {
	var (
		cfg = config.Default()

		recordChanBuffer = 100
	)

	for _, opt := range opts {
		switch t := opt.(type) {
		case config.RecordChanBufferOption:
			recordChanBuffer = t.Size
		case config.PairsOption:
			for _, pair := range t.Pairs {
				if err := cfg.SetPair(pair); err != nil {
					return nil, err
				}
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	factory, err := execution.NewFactory(cfg.Factory, cfg.IgnorePanics)
	if err != nil {
		return nil, err
	}

	r := runner.NewRunner(recordChanBuffer, nil)
	err = r.Start(
		kernel.Options{Factory: factory, StackSize: cfg.StackSizeBytes()},
		program,
		g,
		cfg.MaxDepth,
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

type RunnerOption interface {
	RunnerOpt()
}

func RecordChanSize(size int) RunnerOption {
	return config.RecordChanBufferOption{Size: size}
}

// Apply configuration pairs of the form "key:value" to the runner, e.g. "contexts/factory:thread"
func RunnerConfig(pairs ...string) RunnerOption {
	return config.PairsOption{Pairs: pairs}
}
