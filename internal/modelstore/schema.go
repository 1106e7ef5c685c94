package modelstore

import (
	"encoding/json"
	"time"

	"github.com/isseis/go-pe-scorer/internal/features"
)

// CurrentSchemaVersion is bumped whenever the artifact layout or the meaning
// of a persisted field changes. Artifacts of other versions are rejected.
const CurrentSchemaVersion = 1

// artifact is the on-disk form of a model.
type artifact struct {
	SchemaVersion   int                `json:"schema_version"`
	ModelID         string             `json:"model_id"`
	CreatedAt       time.Time          `json:"created_at"`
	TrainingSamples int                `json:"training_samples"`
	Pipeline        *features.Pipeline `json:"pipeline"`
	Classifier      classifierState    `json:"classifier"`
}

type classifierState struct {
	Algorithm string          `json:"algorithm"`
	State     json.RawMessage `json:"state"`
}

// versionProbe decodes only the schema version, so a newer layout is
// reported as a version mismatch rather than as corruption.
type versionProbe struct {
	SchemaVersion int `json:"schema_version"`
}
