// Package scorer turns raw samples into calibrated malicious/benign verdicts.
//
// A Scorer holds the served model behind an atomic pointer. Predict never
// blocks on retraining: a new model is built separately and installed with
// Swap, and in-flight predictions finish on the model they started with.
package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/isseis/go-pe-scorer/internal/attributes"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/pefeatures"
)

// Verdict is the decision for one sample.
type Verdict struct {
	Label int     `json:"result"`
	Score float64 `json:"score"`
	// ParseFailed marks samples that are not valid PE images; they are
	// labelled malicious with score 1.
	ParseFailed bool `json:"parse_failed"`
	// Cached marks verdicts served from the Cache.
	Cached  bool   `json:"cached"`
	ModelID string `json:"model_id"`
}

// Cache stores verdicts by key. Errors are logged and otherwise ignored.
type Cache interface {
	Get(ctx context.Context, key string) (Verdict, bool, error)
	Put(ctx context.Context, key string, v Verdict) error
}

// Extractor parses a raw sample into an attribute record.
type Extractor func(sample []byte) (*attributes.Record, error)

// Options configures a Scorer.
type Options struct {
	// Threshold defaults to DefaultThreshold when zero.
	Threshold float64
	// Extractor defaults to pefeatures.Extract.
	Extractor Extractor
	Cache     Cache
	Metrics   *Metrics
	Logger    *slog.Logger
}

// Scorer produces verdicts. It is safe for concurrent use.
type Scorer struct {
	threshold float64
	extract   Extractor
	cache     Cache
	metrics   *Metrics
	logger    *slog.Logger
	model     atomic.Pointer[model.Model]
}

// New returns a Scorer without a model; call Swap before Predict.
func New(opts Options) (*Scorer, error) {
	t := opts.Threshold
	if t == 0 {
		t = DefaultThreshold
	}
	if err := ValidateThreshold(t); err != nil {
		return nil, err
	}
	s := &Scorer{
		threshold: t,
		extract:   opts.Extractor,
		cache:     opts.Cache,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
	}
	if s.extract == nil {
		s.extract = pefeatures.Extract
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Threshold returns the operating threshold.
func (s *Scorer) Threshold() float64 { return s.threshold }

// Swap installs m as the served model and returns the previous one.
func (s *Scorer) Swap(m *model.Model) *model.Model {
	old := s.model.Swap(m)
	if m != nil {
		s.logger.Info("Model installed", slog.String("model_id", m.ID))
	}
	return old
}

// Model returns the served model, or nil.
func (s *Scorer) Model() *model.Model {
	return s.model.Load()
}

// Predict scores one sample. A sample that cannot be parsed as a PE image
// is not an error: it yields a malicious verdict with score 1 and
// ParseFailed set.
func (s *Scorer) Predict(ctx context.Context, sample []byte) (Verdict, error) {
	start := time.Now()
	m := s.model.Load()
	if m == nil {
		return Verdict{}, ErrNoModel
	}

	var key string
	if s.cache != nil {
		key = CacheKey(m.ID, s.threshold, sample)
		v, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("Verdict cache lookup failed", slog.Any("error", err))
		case ok:
			v.Cached = true
			v.ModelID = m.ID
			s.metrics.observe(v, time.Since(start).Seconds())
			return v, nil
		}
	}

	v, err := s.score(m, sample)
	if err != nil {
		return Verdict{}, err
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, v); err != nil {
			s.logger.Warn("Verdict cache store failed", slog.Any("error", err))
		}
	}
	s.metrics.observe(v, time.Since(start).Seconds())
	return v, nil
}

func (s *Scorer) score(m *model.Model, sample []byte) (Verdict, error) {
	rec, err := s.extract(sample)
	if err != nil {
		if pefeatures.IsParseFailure(err) {
			s.logger.Debug("Sample is not a parsable PE image",
				slog.Int("size", len(sample)), slog.Any("error", err))
			return Verdict{Label: LabelMalicious, Score: 1, ParseFailed: true, ModelID: m.ID}, nil
		}
		return Verdict{}, err
	}

	probs, err := m.PredictProba(rec)
	if err != nil {
		return Verdict{}, err
	}
	label, score, err := Rescale(probs[0], s.threshold)
	if err != nil {
		return Verdict{}, err
	}
	return Verdict{Label: label, Score: score, ModelID: m.ID}, nil
}

// CacheKey identifies a sample scored by a given model at a given
// threshold. Labels and scores depend on both.
func CacheKey(modelID string, threshold float64, sample []byte) string {
	sum := sha256.Sum256(sample)
	return modelID + ":" + strconv.FormatFloat(threshold, 'g', -1, 64) + ":" + hex.EncodeToString(sum[:])
}
