package config

import (
	"fmt"
	"io"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Names of the execution backends
const (
	FactoryCoroutine = "coroutine"
	FactoryGoroutine = "goroutine"
	FactoryThread    = "thread"
)

// Names of the exploration guides
const (
	GuideBasic  = "basic"
	GuideDPOR   = "dpor"
	GuideReplay = "replay"
	GuideRandom = "random"
)

// Configuration keys
const (
	KeyFactory           = "contexts/factory"
	KeyStackSize         = "contexts/stack-size"
	KeyGuide             = "model-check/guide"
	KeyMaxDepth          = "model-check/max-depth"
	KeyMaxRuns           = "model-check/max-runs"
	KeyReplay            = "model-check/replay"
	KeySeed              = "model-check/seed"
	KeyNumConcurrent     = "model-check/num-concurrent"
	KeyDeadlockIsFailure = "model-check/deadlock-is-failure"
	KeyStopAtFailure     = "model-check/stop-at-failure"
	KeyLogLevel          = "log/level"
	KeyIgnorePanics      = "debug/ignore-panics"
)

const (
	// Stack size given to every context when nothing else is configured. In bytes.
	DefaultStackSize = 8 << 20
	// Contexts can not be created with less stack than this. In bytes.
	MinStackSize = 16 << 10

	DefaultMaxRuns  = 10000
	DefaultMaxDepth = 1000
)

// Legacy backend names are accepted and mapped onto the stack switching backend.
var factoryAliases = map[string]string{
	"raw":      FactoryCoroutine,
	"ucontext": FactoryCoroutine,
	"boost":    FactoryCoroutine,
	"threads":  FactoryThread,
}

// Config holds the key/value configuration of a simulation.
//
// Values can be set one by one with Set, as "key:value" pairs with SetPair
// or read from a yaml document with Load.
type Config struct {
	Factory string
	// Stack size of the contexts in KiB
	StackSize int

	Guide             string
	MaxDepth          int
	MaxRuns           int
	Replay            string
	Seed              int64
	NumConcurrent     int
	DeadlockIsFailure bool
	// Interrupt the exploration at the first failing run instead of only ending its branch
	StopAtFailure bool

	LogLevel     string
	IgnorePanics bool
}

// Default returns a configuration with all default values
func Default() *Config {
	return &Config{
		Factory:       FactoryCoroutine,
		StackSize:     DefaultStackSize >> 10,
		Guide:         GuideBasic,
		MaxDepth:      DefaultMaxDepth,
		MaxRuns:       DefaultMaxRuns,
		NumConcurrent: runtime.GOMAXPROCS(0),
		LogLevel:      logrus.InfoLevel.String(),
	}
}

// StackSizeBytes returns the configured stack size in bytes
func (c *Config) StackSizeBytes() int {
	return c.StackSize << 10
}

// Set a single configuration key.
//
// Returns a ConfigurationError if the key is unknown or the value can not be parsed.
func (c *Config) Set(key, value string) error {
	value = strings.TrimSpace(value)
	var err error
	switch key {
	case KeyFactory:
		c.Factory = strings.ToLower(value)
		if alias, ok := factoryAliases[c.Factory]; ok {
			c.Factory = alias
		}
	case KeyStackSize:
		c.StackSize, err = strconv.Atoi(value)
	case KeyGuide:
		c.Guide = strings.ToLower(value)
	case KeyMaxDepth:
		c.MaxDepth, err = strconv.Atoi(value)
	case KeyMaxRuns:
		c.MaxRuns, err = strconv.Atoi(value)
	case KeyReplay:
		c.Replay = value
		if value != "" {
			c.Guide = GuideReplay
		}
	case KeySeed:
		c.Seed, err = strconv.ParseInt(value, 10, 64)
	case KeyNumConcurrent:
		c.NumConcurrent, err = strconv.Atoi(value)
	case KeyDeadlockIsFailure:
		c.DeadlockIsFailure, err = strconv.ParseBool(value)
	case KeyStopAtFailure:
		c.StopAtFailure, err = strconv.ParseBool(value)
	case KeyLogLevel:
		c.LogLevel = strings.ToLower(value)
	case KeyIgnorePanics:
		c.IgnorePanics, err = strconv.ParseBool(value)
	default:
		return &ConfigurationError{Key: key, Value: value, Reason: "unknown configuration key"}
	}
	if err != nil {
		return &ConfigurationError{Key: key, Value: value, Reason: err.Error()}
	}
	return nil
}

// SetPair sets a configuration key from a "key:value" string, the format used on the command line.
func (c *Config) SetPair(pair string) error {
	key, value, ok := strings.Cut(pair, ":")
	if !ok {
		return &ConfigurationError{Key: pair, Reason: "expected key:value"}
	}
	return c.Set(strings.TrimSpace(key), value)
}

// Load reads a yaml document and applies every key in it.
//
// Nested mappings are flattened with '/', so
//
//	contexts:
//	  factory: thread
//
// sets the contexts/factory key.
func (c *Config) Load(r io.Reader) error {
	doc := map[string]any{}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return fmt.Errorf("config: unable to decode configuration: %w", err)
	}
	flat := map[string]string{}
	flatten("", doc, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	// Keys are applied in sorted order so that model-check/replay always overrides model-check/guide
	sort.Strings(keys)
	for _, k := range keys {
		if err := c.Set(k, flat[k]); err != nil {
			return err
		}
	}
	return nil
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "/" + k
		}
		if nested, ok := v.(map[string]any); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = fmt.Sprint(v)
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Factory {
	case FactoryCoroutine, FactoryGoroutine, FactoryThread:
	default:
		return &ConfigurationError{Key: KeyFactory, Value: c.Factory, Reason: "unknown context factory"}
	}
	if err := CheckStackSize(c.StackSizeBytes()); err != nil {
		return err
	}
	switch c.Guide {
	case GuideBasic, GuideDPOR, GuideRandom:
	case GuideReplay:
		if c.Replay == "" {
			return &ConfigurationError{Key: KeyReplay, Reason: "the replay guide needs a trace"}
		}
	default:
		return &ConfigurationError{Key: KeyGuide, Value: c.Guide, Reason: "unknown exploration guide"}
	}
	if c.MaxDepth <= 0 {
		return &ConfigurationError{Key: KeyMaxDepth, Value: strconv.Itoa(c.MaxDepth), Reason: "must be positive"}
	}
	if c.MaxRuns <= 0 {
		return &ConfigurationError{Key: KeyMaxRuns, Value: strconv.Itoa(c.MaxRuns), Reason: "must be positive"}
	}
	if c.NumConcurrent < 0 {
		return &ConfigurationError{Key: KeyNumConcurrent, Value: strconv.Itoa(c.NumConcurrent), Reason: "can not be negative"}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return &ConfigurationError{Key: KeyLogLevel, Value: c.LogLevel, Reason: err.Error()}
	}
	return nil
}

// CheckStackSize returns a ConfigurationError if size bytes is not enough to run a context
func CheckStackSize(size int) error {
	if size < MinStackSize {
		return &ConfigurationError{
			Key:    KeyStackSize,
			Value:  strconv.Itoa(size >> 10),
			Reason: fmt.Sprintf("stack size must be at least %d KiB", MinStackSize>>10),
		}
	}
	return nil
}
