package config

import (
	"github.com/sirupsen/logrus"

	"simkernel/guide"
)

// Selects the guide deciding the order of the transitions in every run
type GuideOption struct {
	G guide.Global
}

func (gro GuideOption) SimOpt() {}

type MaxDepthOption struct{ MaxDepth int }

func (mdo MaxDepthOption) SimOpt() {}

type MaxRunsOption struct{ MaxRuns int }

func (mro MaxRunsOption) SimOpt() {}

type NumConcurrentOption struct{ N int }

func (nco NumConcurrentOption) SimOpt() {}

type IgnorePanicOption struct{}

func (ipo IgnorePanicOption) SimOpt() {}

type IgnoreErrorOption struct{}

func (ieo IgnoreErrorOption) SimOpt() {}

// Selects the backend of the actor contexts
type FactoryOption struct{ Name string }

func (fo FactoryOption) SimOpt() {}

// Stack size of the actor contexts in KiB
type StackSizeOption struct{ KiB int }

func (sso StackSizeOption) SimOpt() {}

type DeadlockIsFailureOption struct{}

func (dfo DeadlockIsFailureOption) SimOpt() {}

type StopAtFailureOption struct{}

func (sfo StopAtFailureOption) SimOpt() {}

// Key/value pairs applied on top of the configuration built from the other options
type PairsOption struct{ Pairs []string }

func (po PairsOption) SimOpt() {}

// The logger used by the simulation. Defaults to the standard logrus logger
type LoggerOption struct{ Log *logrus.Entry }

func (lo LoggerOption) SimOpt() {}

// The configuration the other options are applied to. Must come first
type BaseOption struct{ Cfg *Config }

func (bo BaseOption) SimOpt() {}
