package modelstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/safefileio"
)

const (
	// filePermission is the permission mode for artifact files.
	filePermission = 0o640

	// dirPermission is the permission mode for a created artifact directory.
	dirPermission = 0o750

	// MaxArtifactSize bounds the artifact read by Load (512 MiB).
	MaxArtifactSize = 512 * 1024 * 1024
)

// featureCounter is implemented by classifiers that know their fitted width.
type featureCounter interface {
	Features() int
}

// Store reads and writes the model artifact at one path.
type Store struct {
	path string
}

// NewStore returns a Store for the artifact at path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the artifact path.
func (s *Store) Path() string { return s.path }

// Save writes m atomically: readers of the path see the previous artifact or
// the new one, never a partial file. The parent directory is created when
// missing.
func (s *Store) Save(m *model.Model) error {
	algorithm, state, err := classifier.Encode(m.Classifier)
	if err != nil {
		return fmt.Errorf("failed to encode classifier: %w", err)
	}

	data, err := json.Marshal(artifact{
		SchemaVersion:   CurrentSchemaVersion,
		ModelID:         m.ID,
		CreatedAt:       m.CreatedAt.UTC(),
		TrainingSamples: m.TrainingSamples,
		Pipeline:        m.Pipeline,
		Classifier:      classifierState{Algorithm: algorithm, State: state},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal model artifact: %w", err)
	}

	if err := ensureDir(filepath.Dir(s.path)); err != nil {
		return err
	}
	if err := safefileio.WriteFileAtomic(s.path, data, filePermission); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	return nil
}

// Load reads the artifact and rebuilds the model.
// Returns ErrArtifactNotFound if the file does not exist.
func (s *Store) Load() (*model.Model, error) {
	data, err := safefileio.ReadFile(s.path, MaxArtifactSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to read model artifact: %w", err)
	}

	var probe versionProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &ArtifactCorruptedError{Path: s.path, Cause: err}
	}
	if probe.SchemaVersion != CurrentSchemaVersion {
		return nil, &SchemaVersionMismatchError{Expected: CurrentSchemaVersion, Actual: probe.SchemaVersion}
	}

	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, &ArtifactCorruptedError{Path: s.path, Cause: err}
	}
	if a.ModelID == "" {
		return nil, &ArtifactCorruptedError{Path: s.path, Cause: errors.New("missing model_id")}
	}
	if a.Pipeline == nil {
		return nil, &ArtifactCorruptedError{Path: s.path, Cause: errors.New("missing pipeline")}
	}

	clf, err := classifier.Decode(a.Classifier.Algorithm, a.Classifier.State)
	if err != nil {
		return nil, &ArtifactCorruptedError{Path: s.path, Cause: err}
	}
	if fc, ok := clf.(featureCounter); ok && fc.Features() != a.Pipeline.Width() {
		return nil, &ArtifactCorruptedError{
			Path:  s.path,
			Cause: fmt.Errorf("pipeline produces %d features, classifier expects %d", a.Pipeline.Width(), fc.Features()),
		}
	}

	return &model.Model{
		ID:              a.ModelID,
		CreatedAt:       a.CreatedAt,
		TrainingSamples: a.TrainingSamples,
		Pipeline:        a.Pipeline,
		Classifier:      clf,
	}, nil
}

// ensureDir creates dir when it does not exist.
func ensureDir(dir string) error {
	info, err := os.Lstat(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to access model directory: %w", err)
		}
		if err := os.MkdirAll(dir, dirPermission); err != nil {
			return fmt.Errorf("failed to create model directory: %w", err)
		}
		return nil
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrArtifactDirNotDirectory, dir)
	}
	return nil
}
