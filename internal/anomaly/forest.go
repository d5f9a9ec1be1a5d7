// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package anomaly

import (
	"math"
	"math/rand"
)

// leaf marks a terminal node in the flattened tree representation.
const leaf = int32(-1)

// treeNode is one node of an isolation tree. Nodes are stored in a flat
// slice with child indexes, which keeps the serialized model compact and
// traversal allocation-free.
type treeNode struct {
	Feature int     `json:"f"`
	Split   float64 `json:"s"`
	Left    int32   `json:"l"`
	Right   int32   `json:"r"`
	// Size is the number of baseline points that reached this node; used
	// to extend path length estimates below the depth cap.
	Size int `json:"n"`
}

// isoTree is a single isolation tree.
type isoTree struct {
	Nodes []treeNode `json:"nodes"`
}

// forest is an ensemble of isolation trees over vectors of one dimension.
type forest struct {
	Trees      []isoTree `json:"trees"`
	SampleSize int       `json:"sample_size"`
	Dim        int       `json:"dim"`
}

// buildForest fits an isolation forest over the baseline vectors using the
// given deterministic RNG. Each tree is grown on a random subsample with
// random axis-aligned splits; anomalous points isolate in fewer splits.
func buildForest(vectors [][]float64, dim, trees, sampleSize int, rng *rand.Rand) *forest {
	if sampleSize > len(vectors) {
		sampleSize = len(vectors)
	}
	maxDepth := int(math.Ceil(math.Log2(float64(sampleSize)))) + 1

	f := &forest{
		Trees:      make([]isoTree, trees),
		SampleSize: sampleSize,
		Dim:        dim,
	}

	sample := make([][]float64, sampleSize)
	for t := 0; t < trees; t++ {
		perm := rng.Perm(len(vectors))
		for i := 0; i < sampleSize; i++ {
			sample[i] = vectors[perm[i]]
		}

		builder := &treeBuilder{rng: rng, dim: dim, maxDepth: maxDepth}
		builder.grow(sample, 0)
		f.Trees[t] = isoTree{Nodes: builder.nodes}
	}
	return f
}

type treeBuilder struct {
	rng      *rand.Rand
	dim      int
	maxDepth int
	nodes    []treeNode
}

// grow recursively partitions points and returns the node index.
func (b *treeBuilder) grow(points [][]float64, depth int) int32 {
	idx := int32(len(b.nodes))
	b.nodes = append(b.nodes, treeNode{Left: leaf, Right: leaf, Size: len(points)})

	if depth >= b.maxDepth || len(points) <= 1 {
		return idx
	}

	// Pick a split dimension with spread; give up after a bounded number
	// of attempts so constant subsamples terminate as leaves.
	for attempt := 0; attempt < b.dim; attempt++ {
		feature := b.rng.Intn(b.dim)
		lo, hi := points[0][feature], points[0][feature]
		for _, p := range points[1:] {
			if p[feature] < lo {
				lo = p[feature]
			}
			if p[feature] > hi {
				hi = p[feature]
			}
		}
		if hi <= lo {
			continue
		}

		split := lo + b.rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, p := range points {
			if p[feature] < split {
				left = append(left, p)
			} else {
				right = append(right, p)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}

		b.nodes[idx].Feature = feature
		b.nodes[idx].Split = split
		b.nodes[idx].Left = b.grow(left, depth+1)
		b.nodes[idx].Right = b.grow(right, depth+1)
		return idx
	}
	return idx
}

// pathLength traverses one tree and returns the adjusted path length for
// the point: depth reached plus the average-path correction for the leaf's
// residual population.
func (t *isoTree) pathLength(vec []float64) float64 {
	depth := 0.0
	node := &t.Nodes[0]
	for node.Left != leaf {
		if vec[node.Feature] < node.Split {
			node = &t.Nodes[node.Left]
		} else {
			node = &t.Nodes[node.Right]
		}
		depth++
	}
	return depth + avgPathLength(node.Size)
}

// rawScore is the standard isolation score s = 2^(-E[h]/c(n)), in (0, 1];
// shorter average paths (easier isolation) give scores closer to 1.
func (f *forest) rawScore(vec []float64) float64 {
	if len(f.Trees) == 0 {
		return 0
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].pathLength(vec)
	}
	avg := sum / float64(len(f.Trees))
	return math.Exp2(-avg / avgPathLength(f.SampleSize))
}

// avgPathLength is c(n), the average unsuccessful-search path length of a
// binary search tree over n points.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// eulerGamma is the Euler-Mascheroni constant used by c(n).
const eulerGamma = 0.5772156649015329
