// Package classifier defines the binary classifier contract used by the
// scorer and ships a random forest as its default implementation.
//
// Implementations are registered by algorithm name so a persisted model can
// be restored without knowing its concrete type.
package classifier

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// Classifier is a binary probabilistic classifier over dense rows.
//
// PredictProba returns, per row, the probabilities of class 0 (benign) and
// class 1 (malicious); they sum to 1 and depend only on the input and the
// fitted state. Implementations must be safe for concurrent PredictProba
// calls once fitted.
type Classifier interface {
	Fit(x [][]float64, y []int) error
	PredictProba(x [][]float64) ([][2]float64, error)
	Algorithm() string
}

// Persistent is a Classifier whose fitted state round-trips through JSON.
type Persistent interface {
	Classifier
	json.Marshaler
	json.Unmarshaler
}

// Factory returns an empty classifier ready to be fitted or unmarshalled.
type Factory func() Persistent

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an algorithm available to New and Decode. It panics on a
// duplicate name, which is a programming error.
func Register(algorithm string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[algorithm]; dup {
		panic(fmt.Sprintf("classifier: algorithm %q registered twice", algorithm))
	}
	registry[algorithm] = factory
}

// Algorithms lists the registered algorithm names in sorted order.
func Algorithms() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New returns an unfitted classifier of the named algorithm with default
// settings.
func New(algorithm string) (Persistent, error) {
	registryMu.RLock()
	factory, ok := registry[algorithm]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algorithm)
	}
	return factory(), nil
}

// Encode returns the algorithm name and the JSON state of c.
func Encode(c Classifier) (string, json.RawMessage, error) {
	m, ok := c.(json.Marshaler)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s does not support persistence", ErrUnknownAlgorithm, c.Algorithm())
	}
	state, err := m.MarshalJSON()
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode %s: %w", c.Algorithm(), err)
	}
	return c.Algorithm(), state, nil
}

// Decode restores a classifier previously produced by Encode.
func Decode(algorithm string, state json.RawMessage) (Classifier, error) {
	c, err := New(algorithm)
	if err != nil {
		return nil, err
	}
	if err := c.UnmarshalJSON(state); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", algorithm, err)
	}
	return c, nil
}

// validateTraining checks the shape shared by every Fit implementation and
// returns the feature count.
func validateTraining(x [][]float64, y []int) (int, error) {
	if len(x) == 0 {
		return 0, ErrEmptyInput
	}
	if len(x) != len(y) {
		return 0, fmt.Errorf("%w: %d rows, %d labels", ErrLengthMismatch, len(x), len(y))
	}
	width := len(x[0])
	var seen [2]bool
	for i, row := range x {
		if len(row) != width {
			return 0, &DimensionMismatchError{Row: i, Want: width, Got: len(row)}
		}
		if y[i] != 0 && y[i] != 1 {
			return 0, fmt.Errorf("%w: row %d has label %d", ErrInvalidLabel, i, y[i])
		}
		seen[y[i]] = true
	}
	if !seen[0] || !seen[1] {
		return 0, ErrSingleClass
	}
	return width, nil
}
