//go:build test

package scorer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isseis/go-pe-scorer/internal/attributes"
	"github.com/isseis/go-pe-scorer/internal/features"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/pefeatures"
	pefeaturestesting "github.com/isseis/go-pe-scorer/internal/pefeatures/testing"
)

// fixedClassifier always returns the same benign probability.
type fixedClassifier struct {
	pBenign float64
}

func (c *fixedClassifier) Fit([][]float64, []int) error { return nil }

func (c *fixedClassifier) PredictProba(x [][]float64) ([][2]float64, error) {
	out := make([][2]float64, len(x))
	for i := range out {
		out[i] = [2]float64{c.pBenign, 1 - c.pBenign}
	}
	return out, nil
}

func (c *fixedClassifier) Algorithm() string { return "fixed" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newModel(t *testing.T, id string, pBenign float64) *model.Model {
	t.Helper()
	recs := []attributes.Record{
		{Size: 100, Machine: "I386", Magic: "PE32", Libraries: "KERNEL32.dll"},
		{Size: 900, Machine: "AMD64", Magic: "PE32+", Libraries: "WS2_32.dll"},
	}
	p, _, err := features.Fit(recs, features.Options{})
	require.NoError(t, err)
	return &model.Model{ID: id, Pipeline: p, Classifier: &fixedClassifier{pBenign: pBenign}}
}

func newScorer(t *testing.T, opts Options) *Scorer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = quietLogger()
	}
	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func samplePE() []byte {
	return pefeaturestesting.Builder{}.Build()
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]Verdict
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache { return &memCache{entries: map[string]Verdict{}} }

func (c *memCache) Get(_ context.Context, key string) (Verdict, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Verdict{}, false, c.getErr
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Put(_ context.Context, key string, v Verdict) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	if c.putErr != nil {
		return c.putErr
	}
	c.entries[key] = v
	return nil
}

func TestNew_Threshold(t *testing.T) {
	s := newScorer(t, Options{})
	assert.Equal(t, DefaultThreshold, s.Threshold())

	s = newScorer(t, Options{Threshold: 0.3})
	assert.Equal(t, 0.3, s.Threshold())

	for _, bad := range []float64{1, -0.1, 2} {
		_, err := New(Options{Threshold: bad})
		var cfgErr *ConfigurationError
		assert.ErrorAs(t, err, &cfgErr, "threshold=%v", bad)
	}
}

func TestPredict_NoModel(t *testing.T) {
	s := newScorer(t, Options{})
	_, err := s.Predict(context.Background(), samplePE())
	assert.ErrorIs(t, err, ErrNoModel)
}

func TestPredict_ThresholdBoundaries(t *testing.T) {
	tests := []struct {
		name      string
		pBenign   float64
		wantLabel int
		wantScore float64
	}{
		{"exactly at threshold", 0.8, LabelBenign, 0.5},
		{"certainly malicious", 0, LabelMalicious, 1.0},
		{"certainly benign", 1, LabelBenign, 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScorer(t, Options{Threshold: 0.8})
			s.Swap(newModel(t, "m1", tt.pBenign))

			v, err := s.Predict(context.Background(), samplePE())
			require.NoError(t, err)
			assert.Equal(t, tt.wantLabel, v.Label)
			assert.InDelta(t, tt.wantScore, v.Score, 1e-12)
			assert.False(t, v.ParseFailed)
			assert.Equal(t, "m1", v.ModelID)
		})
	}
}

func TestPredict_UnparsableSamples(t *testing.T) {
	corrupt := samplePE()
	corrupt[0] = 'Z'
	for name, sample := range map[string][]byte{
		"empty":     {},
		"not PE":    []byte("#!/bin/sh\necho hi\n"),
		"corrupt":   corrupt,
		"truncated": samplePE()[:0x50],
	} {
		t.Run(name, func(t *testing.T) {
			s := newScorer(t, Options{})
			s.Swap(newModel(t, "m1", 1))

			v, err := s.Predict(context.Background(), sample)
			require.NoError(t, err)
			assert.Equal(t, Verdict{Label: LabelMalicious, Score: 1, ParseFailed: true, ModelID: "m1"}, v)
		})
	}
}

func TestPredict_ExtractorErrorsThatAreNotParseFailuresPropagate(t *testing.T) {
	boom := errors.New("boom")
	s := newScorer(t, Options{Extractor: func([]byte) (*attributes.Record, error) { return nil, boom }})
	s.Swap(newModel(t, "m1", 1))

	_, err := s.Predict(context.Background(), samplePE())
	assert.ErrorIs(t, err, boom)
}

func TestPredict_CustomExtractorParseFailure(t *testing.T) {
	s := newScorer(t, Options{Extractor: func([]byte) (*attributes.Record, error) {
		return nil, &pefeatures.ParseError{Stage: pefeatures.StageHeaders, Err: pefeatures.ErrTruncated}
	}})
	s.Swap(newModel(t, "m1", 1))

	v, err := s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	assert.True(t, v.ParseFailed)
}

func TestPredict_ProbabilityOutOfRange(t *testing.T) {
	s := newScorer(t, Options{})
	s.Swap(newModel(t, "m1", 1.5))

	_, err := s.Predict(context.Background(), samplePE())
	assert.ErrorIs(t, err, ErrProbabilityOutOfRange)
}

func TestSwap(t *testing.T) {
	s := newScorer(t, Options{Threshold: 0.5})
	assert.Nil(t, s.Model())

	first := newModel(t, "first", 0.9)
	assert.Nil(t, s.Swap(first))
	v, err := s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	assert.Equal(t, LabelBenign, v.Label)

	second := newModel(t, "second", 0.1)
	assert.Same(t, first, s.Swap(second))
	v, err = s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	assert.Equal(t, LabelMalicious, v.Label)
	assert.Equal(t, "second", v.ModelID)
}

func TestPredict_ConcurrentWithSwap(t *testing.T) {
	s := newScorer(t, Options{})
	models := []*model.Model{newModel(t, "a", 0.1), newModel(t, "b", 0.95)}
	s.Swap(models[0])
	sample := samplePE()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				if i == 0 {
					s.Swap(models[j%2])
					continue
				}
				v, err := s.Predict(context.Background(), sample)
				if !assert.NoError(t, err) {
					return
				}
				switch v.ModelID {
				case "a":
					assert.Equal(t, LabelMalicious, v.Label)
				case "b":
					assert.Equal(t, LabelBenign, v.Label)
				default:
					t.Errorf("unexpected model %q", v.ModelID)
				}
			}
		}()
	}
	wg.Wait()
}

func TestPredict_Cache(t *testing.T) {
	cache := newMemCache()
	s := newScorer(t, Options{Cache: cache})
	s.Swap(newModel(t, "m1", 0.2))
	sample := samplePE()

	first, err := s.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Contains(t, cache.entries, CacheKey("m1", DefaultThreshold, sample))

	second, err := s.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Label, second.Label)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 1, cache.puts)

	// A new model never sees the old model's entries.
	s.Swap(newModel(t, "m2", 0.2))
	third, err := s.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 2, cache.puts)
}

func TestPredict_CacheErrorsAreIgnored(t *testing.T) {
	cache := newMemCache()
	cache.getErr = errors.New("connection refused")
	cache.putErr = errors.New("connection refused")
	s := newScorer(t, Options{Cache: cache})
	s.Swap(newModel(t, "m1", 0.2))

	v, err := s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	assert.Equal(t, LabelMalicious, v.Label)
	assert.False(t, v.Cached)
}

func TestCacheKey(t *testing.T) {
	key := CacheKey("model", 0.8, []byte("abc"))
	assert.Equal(t, "model:0.8:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", key)
	assert.NotEqual(t, key, CacheKey("other", 0.8, []byte("abc")))
	assert.NotEqual(t, key, CacheKey("model", 0.5, []byte("abc")))
}

func TestPredict_CacheIsKeyedByThreshold(t *testing.T) {
	cache := newMemCache()
	strict := newScorer(t, Options{Threshold: 0.8, Cache: cache})
	lenient := newScorer(t, Options{Threshold: 0.5, Cache: cache})
	m := newModel(t, "m1", 0.6)
	strict.Swap(m)
	lenient.Swap(m)
	sample := samplePE()

	v, err := strict.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.Equal(t, LabelMalicious, v.Label)
	assert.InDelta(t, 0.625, v.Score, 1e-12)

	v, err = lenient.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.False(t, v.Cached)
	assert.Equal(t, LabelBenign, v.Label)
	assert.InDelta(t, 0.6, v.Score, 1e-12)
	assert.Equal(t, 2, cache.puts)

	v, err = lenient.Predict(context.Background(), sample)
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, LabelBenign, v.Label)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	s := newScorer(t, Options{Metrics: metrics, Cache: newMemCache()})
	s.Swap(newModel(t, "m1", 0.95))

	_, err := s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	_, err = s.Predict(context.Background(), samplePE())
	require.NoError(t, err)
	_, err = s.Predict(context.Background(), []byte("garbage"))
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.verdicts.WithLabelValues("benign")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.verdicts.WithLabelValues("malicious")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.parseFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
}
