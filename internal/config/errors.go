package config

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrInvalidConfigPath is returned when the config file path is empty.
	ErrInvalidConfigPath = errors.New("invalid config file path")

	// ErrInvalidDuration is returned for a duration string time.ParseDuration rejects.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrInvalidValue is wrapped by every ValidationError.
	ErrInvalidValue = errors.New("invalid configuration value")
)

// ValidationError names the offending key.
type ValidationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s = %v: %s", e.Key, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidValue
}
