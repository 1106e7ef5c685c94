package classifier

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrNotFitted indicates PredictProba was called before Fit.
	ErrNotFitted = errors.New("classifier is not fitted")

	// ErrSingleClass indicates training labels that contain only one class.
	ErrSingleClass = errors.New("training labels contain a single class")

	// ErrEmptyInput indicates Fit was called without rows.
	ErrEmptyInput = errors.New("no training rows")

	// ErrLengthMismatch indicates a different number of rows and labels.
	ErrLengthMismatch = errors.New("row and label counts differ")

	// ErrInvalidLabel indicates a label other than 0 or 1.
	ErrInvalidLabel = errors.New("label must be 0 or 1")

	// ErrInvalidOptions indicates unusable hyperparameters.
	ErrInvalidOptions = errors.New("invalid classifier options")

	// ErrUnknownAlgorithm indicates an algorithm name with no registered implementation.
	ErrUnknownAlgorithm = errors.New("unknown classifier algorithm")

	// ErrInvalidState indicates persisted classifier state that is inconsistent.
	ErrInvalidState = errors.New("invalid classifier state")
)

// DimensionMismatchError reports a row whose feature count differs from the
// count the classifier was fitted on.
type DimensionMismatchError struct {
	Row  int
	Want int
	Got  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("row %d has %d features, classifier expects %d", e.Row, e.Got, e.Want)
}
