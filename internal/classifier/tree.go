package classifier

import (
	"math/rand/v2"
	"slices"
)

const leafFeature = -1

// node is one node of a flattened decision tree. Leaves have Feature set to
// leafFeature and carry the fraction of malicious training rows in P1.
type node struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	P1        float64 `json:"p,omitempty"`
}

// tree is a CART classification tree stored as a node slice; node 0 is the
// root and children always follow their parent.
type tree struct {
	nodes []node
}

// leafP1 walks x down the tree and returns the leaf's malicious fraction.
func (t *tree) leafP1(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.Feature == leafFeature {
			return n.P1
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on a bootstrap sample.
type treeBuilder struct {
	x              [][]float64
	y              []int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	rng            *rand.Rand
	nodes          []node

	// scratch reused across nodes
	order    []int
	features []int
}

func (b *treeBuilder) build(sample []int) *tree {
	b.features = make([]int, len(b.x[0]))
	for i := range b.features {
		b.features[i] = i
	}
	b.order = make([]int, len(sample))
	b.grow(sample, 0)
	return &tree{nodes: b.nodes}
}

// grow appends the subtree for rows and returns its node index.
func (b *treeBuilder) grow(rows []int, depth int) int {
	var counts [2]int
	for _, r := range rows {
		counts[b.y[r]]++
	}
	idx := len(b.nodes)
	b.nodes = append(b.nodes, node{Feature: leafFeature, P1: float64(counts[1]) / float64(len(rows))})

	if counts[0] == 0 || counts[1] == 0 ||
		(b.maxDepth > 0 && depth >= b.maxDepth) ||
		len(rows) < 2*b.minSamplesLeaf {
		return idx
	}

	feature, threshold, ok := b.bestSplit(rows, counts)
	if !ok {
		return idx
	}

	var left, right []int
	for _, r := range rows {
		if b.x[r][feature] <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[idx] = node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return idx
}

// bestSplit draws features in random order until maxFeatures non-constant
// ones have been evaluated and returns the split with the lowest weighted
// Gini impurity.
func (b *treeBuilder) bestSplit(rows []int, counts [2]int) (int, float64, bool) {
	order := b.order[:len(rows)]
	n := float64(len(rows))

	bestFeature, bestThreshold := -1, 0.0
	bestImpurity := 0.0
	visited := 0

	for k := 0; k < len(b.features) && visited < b.maxFeatures; k++ {
		// Partial Fisher-Yates shuffle.
		j := k + b.rng.IntN(len(b.features)-k)
		b.features[k], b.features[j] = b.features[j], b.features[k]
		f := b.features[k]

		copy(order, rows)
		slices.SortFunc(order, func(p, q int) int {
			a, c := b.x[p][f], b.x[q][f]
			switch {
			case a < c:
				return -1
			case a > c:
				return 1
			default:
				return 0
			}
		})
		if b.x[order[0]][f] == b.x[order[len(order)-1]][f] {
			continue
		}
		visited++

		var left [2]int
		for i := 0; i < len(order)-1; i++ {
			left[b.y[order[i]]]++
			nLeft := i + 1
			nRight := len(order) - nLeft
			if nLeft < b.minSamplesLeaf {
				continue
			}
			if nRight < b.minSamplesLeaf {
				break
			}
			lo, hi := b.x[order[i]][f], b.x[order[i+1]][f]
			if lo == hi {
				continue
			}
			right := [2]int{counts[0] - left[0], counts[1] - left[1]}
			impurity := (float64(nLeft)*gini(left, nLeft) + float64(nRight)*gini(right, nRight)) / n
			if bestFeature < 0 || impurity < bestImpurity {
				bestFeature = f
				bestImpurity = impurity
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}

func gini(counts [2]int, n int) float64 {
	p0 := float64(counts[0]) / float64(n)
	p1 := float64(counts[1]) / float64(n)
	return 1 - p0*p0 - p1*p1
}
