package pefeatures

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrNotPE indicates the sample does not start with an MZ header
	// pointing at a PE signature.
	ErrNotPE = errors.New("sample is not a PE image")

	// ErrTruncated indicates a header or table runs past the end of the sample.
	ErrTruncated = errors.New("PE image is truncated")

	// ErrNoOptionalHeader indicates the image carries no optional header,
	// which every executable image must have.
	ErrNoOptionalHeader = errors.New("PE image has no optional header")

	// ErrBadRVA indicates a relative virtual address that maps to no file data.
	ErrBadRVA = errors.New("RVA does not map to file data")

	// ErrTableTooLarge indicates an import or export table exceeding the walker limits.
	ErrTableTooLarge = errors.New("PE table exceeds size limit")

	// ErrUnsupportedMachine indicates the entry point cannot be disassembled
	// for the image's machine type.
	ErrUnsupportedMachine = errors.New("unsupported machine for disassembly")
)

// Parse stages reported in ParseError.
const (
	StageSignature = "signature"
	StageHeaders   = "headers"
	StageImports   = "imports"
	StageExports   = "exports"
)

// ParseError reports that a sample could not be interpreted as a PE image.
type ParseError struct {
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("PE parse failed at %s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsParseFailure reports whether err originates from a sample that could not
// be parsed, as opposed to a caller or system error.
func IsParseFailure(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
