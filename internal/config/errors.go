package config

import "fmt"

// ConfigError describes a missing or invalid configuration value. It is
// fatal at startup and never retried.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("config: %s", e.Message)
	}
	return fmt.Sprintf("config: field %q: %s", e.Field, e.Message)
}
