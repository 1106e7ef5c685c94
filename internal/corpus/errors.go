package corpus

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrMissingField indicates a required key is absent from a corpus record.
	ErrMissingField = errors.New("required field missing")

	// ErrWrongType indicates a key holds a value of an unexpected JSON type.
	ErrWrongType = errors.New("field has wrong type")

	// ErrMalformedRecord indicates a line that is not a JSON object.
	ErrMalformedRecord = errors.New("malformed corpus record")

	// ErrLineTooLong indicates a line longer than MaxLineSize.
	ErrLineTooLong = errors.New("corpus line too long")
)

// SchemaViolationError reports a corpus record that does not follow the
// EMBER feature layout. Line is 1-based and 0 when unknown.
type SchemaViolationError struct {
	Path  string
	Line  int
	Field string
	Err   error
}

func (e *SchemaViolationError) Error() string {
	loc := "record"
	switch {
	case e.Path != "" && e.Line > 0:
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	case e.Line > 0:
		loc = fmt.Sprintf("line %d", e.Line)
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %v", loc, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", loc, e.Field, e.Err)
}

func (e *SchemaViolationError) Unwrap() error {
	return e.Err
}
