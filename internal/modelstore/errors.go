// Package modelstore persists trained models as single JSON artifacts.
package modelstore

import (
	"errors"
	"fmt"
)

// Static errors
var (
	// ErrArtifactNotFound indicates the model artifact file does not exist.
	ErrArtifactNotFound = errors.New("model artifact not found")

	// ErrArtifactDirNotDirectory indicates the artifact's parent path is not a directory.
	ErrArtifactDirNotDirectory = errors.New("model artifact parent is not a directory")
)

// SchemaVersionMismatchError indicates an artifact written by an
// incompatible version.
type SchemaVersionMismatchError struct {
	Expected int
	Actual   int
}

func (e *SchemaVersionMismatchError) Error() string {
	return fmt.Sprintf("schema version mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ArtifactCorruptedError indicates an artifact that cannot be decoded or is
// internally inconsistent.
type ArtifactCorruptedError struct {
	Path  string
	Cause error
}

func (e *ArtifactCorruptedError) Error() string {
	return fmt.Sprintf("model artifact corrupted at %s: %v", e.Path, e.Cause)
}

func (e *ArtifactCorruptedError) Unwrap() error {
	return e.Cause
}
