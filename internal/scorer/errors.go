package scorer

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrNoModel indicates Predict was called before a model was swapped in.
	ErrNoModel = errors.New("no model loaded")

	// ErrProbabilityOutOfRange indicates the classifier returned a benign
	// probability outside [0, 1].
	ErrProbabilityOutOfRange = errors.New("benign probability outside [0, 1]")
)

// ConfigurationError reports an unusable scorer option.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid scorer configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}
