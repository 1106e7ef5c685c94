// Package model bundles a fitted feature pipeline with a fitted classifier.
//
// A Model is built once by Train and never modified afterwards; retraining
// produces a new Model that servers swap in as a whole.
package model

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/isseis/go-pe-scorer/internal/attributes"
	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/features"
)

// Static errors
var (
	// ErrEmptyTrainingSet indicates Train was called without samples.
	ErrEmptyTrainingSet = errors.New("training set is empty")

	// ErrSingleClass indicates the training labels miss the benign or the malicious class.
	ErrSingleClass = errors.New("training set needs both benign and malicious samples")

	// ErrLabelCountMismatch indicates a different number of records and labels.
	ErrLabelCountMismatch = errors.New("record and label counts differ")

	// ErrInvalidLabel indicates a label other than 0 or 1.
	ErrInvalidLabel = errors.New("label must be 0 (benign) or 1 (malicious)")

	// ErrNoClassifier indicates Train options without a classifier.
	ErrNoClassifier = errors.New("no classifier configured")
)

// Model is an immutable fitted pipeline and classifier pair.
type Model struct {
	ID              string
	CreatedAt       time.Time
	TrainingSamples int
	Pipeline        *features.Pipeline
	Classifier      classifier.Classifier
}

// TrainOptions controls Train.
type TrainOptions struct {
	Features features.Options
	// Classifier is fitted in place and owned by the returned Model.
	Classifier classifier.Classifier
	Logger     *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Train fits the feature pipeline on records and the classifier on the
// resulting matrix. labels[i] is the label of records[i].
func Train(records []attributes.Record, labels []int, opts TrainOptions) (*Model, error) {
	if err := validateLabels(records, labels); err != nil {
		return nil, err
	}
	if opts.Classifier == nil {
		return nil, ErrNoClassifier
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	start := now()
	logger.Info("Fitting feature pipeline", slog.Int("samples", len(records)))
	pipeline, matrix, err := features.Fit(records, opts.Features)
	if err != nil {
		return nil, fmt.Errorf("failed to fit feature pipeline: %w", err)
	}

	logger.Info("Fitting classifier",
		slog.String("algorithm", opts.Classifier.Algorithm()),
		slog.Int("features", pipeline.Width()))
	if err := opts.Classifier.Fit(matrix, labels); err != nil {
		return nil, fmt.Errorf("failed to fit classifier: %w", err)
	}

	m := &Model{
		ID:              uuid.New().String(),
		CreatedAt:       now().UTC(),
		TrainingSamples: len(records),
		Pipeline:        pipeline,
		Classifier:      opts.Classifier,
	}
	logger.Info("Model trained",
		slog.String("model_id", m.ID),
		slog.Duration("elapsed", m.CreatedAt.Sub(start)))
	return m, nil
}

// PredictProba runs a record through the pipeline and the classifier.
func (m *Model) PredictProba(rec *attributes.Record) ([2]float64, error) {
	row, err := m.Pipeline.TransformOne(rec)
	if err != nil {
		return [2]float64{}, err
	}
	probs, err := m.Classifier.PredictProba([][]float64{row})
	if err != nil {
		return [2]float64{}, err
	}
	if len(probs) != 1 {
		return [2]float64{}, fmt.Errorf("classifier returned %d rows for 1", len(probs))
	}
	return probs[0], nil
}

func validateLabels(records []attributes.Record, labels []int) error {
	if len(records) == 0 {
		return ErrEmptyTrainingSet
	}
	if len(records) != len(labels) {
		return fmt.Errorf("%w: %d records, %d labels", ErrLabelCountMismatch, len(records), len(labels))
	}
	var seen [2]bool
	for i, l := range labels {
		if l != 0 && l != 1 {
			return fmt.Errorf("%w: sample %d has label %d", ErrInvalidLabel, i, l)
		}
		seen[l] = true
	}
	if !seen[0] || !seen[1] {
		return ErrSingleClass
	}
	return nil
}
