package classifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// RandomForestAlgorithm is the registered name of RandomForest.
const RandomForestAlgorithm = "random_forest"

// Forest defaults.
const (
	DefaultTrees          = 100
	DefaultMinSamplesLeaf = 1
	DefaultSeed           = 1
)

func init() {
	Register(RandomForestAlgorithm, func() Persistent { return NewRandomForest(ForestOptions{}) })
}

// ForestOptions configures a RandomForest. Zero values select defaults.
type ForestOptions struct {
	// Trees is the ensemble size.
	Trees int `json:"trees"`
	// MaxDepth limits tree depth; 0 means unlimited.
	MaxDepth int `json:"max_depth"`
	// MinSamplesLeaf is the minimum number of rows in a leaf.
	MinSamplesLeaf int `json:"min_samples_leaf"`
	// MaxFeatures is the number of features tried per split; 0 means
	// the square root of the feature count.
	MaxFeatures int `json:"max_features"`
	// Seed makes training reproducible.
	Seed uint64 `json:"seed"`
	// Workers bounds parallel tree building; 0 means GOMAXPROCS. It does
	// not affect the fitted model.
	Workers int `json:"-"`
}

func (o ForestOptions) withDefaults() ForestOptions {
	if o.Trees == 0 {
		o.Trees = DefaultTrees
	}
	if o.MinSamplesLeaf == 0 {
		o.MinSamplesLeaf = DefaultMinSamplesLeaf
	}
	if o.Seed == 0 {
		o.Seed = DefaultSeed
	}
	if o.Workers == 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	return o
}

func (o ForestOptions) validate() error {
	switch {
	case o.Trees < 1:
		return fmt.Errorf("%w: trees must be at least 1, got %d", ErrInvalidOptions, o.Trees)
	case o.MaxDepth < 0:
		return fmt.Errorf("%w: max depth must not be negative, got %d", ErrInvalidOptions, o.MaxDepth)
	case o.MinSamplesLeaf < 1:
		return fmt.Errorf("%w: min samples per leaf must be at least 1, got %d", ErrInvalidOptions, o.MinSamplesLeaf)
	case o.MaxFeatures < 0:
		return fmt.Errorf("%w: max features must not be negative, got %d", ErrInvalidOptions, o.MaxFeatures)
	case o.Workers < 1:
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

// RandomForest is an ensemble of CART trees, each grown on a bootstrap
// sample with a random feature subset tried at every split. The
// probability of a row is the mean over trees of the malicious fraction in
// the leaf it reaches.
//
// Each tree draws from its own PCG stream seeded with (Seed, tree index), so
// a fit is reproducible regardless of how many workers build it.
type RandomForest struct {
	opts     ForestOptions
	features int
	trees    []*tree
}

// NewRandomForest returns an unfitted forest.
func NewRandomForest(opts ForestOptions) *RandomForest {
	return &RandomForest{opts: opts.withDefaults()}
}

// Algorithm implements Classifier.
func (f *RandomForest) Algorithm() string { return RandomForestAlgorithm }

// Options returns the effective options.
func (f *RandomForest) Options() ForestOptions { return f.opts }

// Fit grows the ensemble on x and y. The previous state, if any, is kept
// when Fit fails.
func (f *RandomForest) Fit(x [][]float64, y []int) error {
	if err := f.opts.validate(); err != nil {
		return err
	}
	width, err := validateTraining(x, y)
	if err != nil {
		return err
	}

	maxFeatures := f.opts.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Sqrt(float64(width)))
	}
	maxFeatures = max(1, min(maxFeatures, width))

	trees := make([]*tree, f.opts.Trees)
	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(f.opts.Seed, uint64(i)))
			sample := make([]int, len(x))
			for j := range sample {
				sample[j] = rng.IntN(len(x))
			}
			b := &treeBuilder{
				x:              x,
				y:              y,
				maxDepth:       f.opts.MaxDepth,
				minSamplesLeaf: f.opts.MinSamplesLeaf,
				maxFeatures:    maxFeatures,
				rng:            rng,
			}
			trees[i] = b.build(sample)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	f.features = width
	f.trees = trees
	return nil
}

// PredictProba implements Classifier.
func (f *RandomForest) PredictProba(x [][]float64) ([][2]float64, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	out := make([][2]float64, len(x))
	for i, row := range x {
		if len(row) != f.features {
			return nil, &DimensionMismatchError{Row: i, Want: f.features, Got: len(row)}
		}
		var sum float64
		for _, t := range f.trees {
			sum += t.leafP1(row)
		}
		p1 := sum / float64(len(f.trees))
		out[i] = [2]float64{1 - p1, p1}
	}
	return out, nil
}

// Features returns the feature count seen at fit time, or 0 if unfitted.
func (f *RandomForest) Features() int { return f.features }

type forestState struct {
	Options  ForestOptions `json:"options"`
	Features int           `json:"features"`
	Trees    [][]node      `json:"trees"`
}

// MarshalJSON implements json.Marshaler.
func (f *RandomForest) MarshalJSON() ([]byte, error) {
	if len(f.trees) == 0 {
		return nil, ErrNotFitted
	}
	st := forestState{Options: f.opts, Features: f.features, Trees: make([][]node, len(f.trees))}
	for i, t := range f.trees {
		st.Trees[i] = t.nodes
	}
	return json.Marshal(st)
}

// UnmarshalJSON implements json.Unmarshaler and validates the tree
// structure so a corrupted artifact cannot index out of range or loop.
func (f *RandomForest) UnmarshalJSON(data []byte) error {
	var st forestState
	if err := json.Unmarshal(data, &st); err != nil {
		return err
	}
	if st.Features < 1 {
		return fmt.Errorf("%w: feature count %d", ErrInvalidState, st.Features)
	}
	if len(st.Trees) == 0 {
		return fmt.Errorf("%w: no trees", ErrInvalidState)
	}

	trees := make([]*tree, len(st.Trees))
	for i, nodes := range st.Trees {
		if err := validateNodes(nodes, st.Features); err != nil {
			return fmt.Errorf("%w: tree %d: %v", ErrInvalidState, i, err)
		}
		trees[i] = &tree{nodes: nodes}
	}

	opts := st.Options
	opts.Workers = f.opts.Workers
	f.opts = opts.withDefaults()
	f.features = st.Features
	f.trees = trees
	return nil
}

var errEmptyTree = errors.New("empty tree")

func validateNodes(nodes []node, features int) error {
	if len(nodes) == 0 {
		return errEmptyTree
	}
	for i, n := range nodes {
		if n.Feature == leafFeature {
			if math.IsNaN(n.P1) || n.P1 < 0 || n.P1 > 1 {
				return fmt.Errorf("node %d: leaf probability %v", i, n.P1)
			}
			continue
		}
		if n.Feature < 0 || n.Feature >= features {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
		if math.IsNaN(n.Threshold) {
			return fmt.Errorf("node %d: NaN threshold", i)
		}
		// Children after their parent keeps every walk finite.
		if n.Left <= i || n.Right <= i || n.Left >= len(nodes) || n.Right >= len(nodes) {
			return fmt.Errorf("node %d: child index out of range", i)
		}
	}
	return nil
}
