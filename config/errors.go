package config

import "fmt"

// ConfigurationError is returned when a configuration key holds a value the kernel can not use.
//
// It is always reported at startup, before any actor runs.
type ConfigurationError struct {
	Key    string
	Value  string
	Reason string
}

func (ce *ConfigurationError) Error() string {
	if ce.Value == "" {
		return fmt.Sprintf("config: invalid value for %q: %v", ce.Key, ce.Reason)
	}
	return fmt.Sprintf("config: invalid value %q for %q: %v", ce.Value, ce.Key, ce.Reason)
}
