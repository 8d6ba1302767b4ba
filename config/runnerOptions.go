package config

// Configures how many records can be buffered

// Default value is 100
type RecordChanBufferOption struct {
	Size int
}

func (opt RecordChanBufferOption) RunnerOpt() {}

func (po PairsOption) RunnerOpt() {}
