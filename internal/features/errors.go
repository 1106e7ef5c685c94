package features

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrEmptyBatch indicates Fit was called without records.
	ErrEmptyBatch = errors.New("no records to fit")

	// ErrInvalidOptions indicates unusable fit options.
	ErrInvalidOptions = errors.New("invalid feature options")

	// ErrInvalidState indicates a persisted pipeline that is internally inconsistent.
	ErrInvalidState = errors.New("invalid pipeline state")
)

// DimensionMismatchError reports a feature row whose width differs from the
// width the pipeline was fitted with.
type DimensionMismatchError struct {
	Stage string
	Want  int
	Got   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("feature width mismatch at %s: expected %d columns, got %d", e.Stage, e.Want, e.Got)
}
