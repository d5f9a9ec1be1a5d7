// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"math"

	"github.com/unmasklabs/unmask/internal/frame"
)

const (
	// asymmetryThreshold is the per-pixel luma difference above which a
	// pixel pair counts as asymmetric.
	asymmetryThreshold = 50.0

	// symmetryCells is the per-half cell grid for the structural score.
	symmetryCells = 4
)

// SymmetryExtractor compares the left face half against the mirrored
// right half. Faces are broadly bilateral; splice and reenactment
// artifacts usually land on one side and break that symmetry.
type SymmetryExtractor struct{}

var _ Extractor = SymmetryExtractor{}

// Name implements Extractor.
func (SymmetryExtractor) Name() string { return "symmetry" }

// Length implements Extractor.
func (SymmetryExtractor) Length() int { return 5 }

// Extract implements Extractor.
func (e SymmetryExtractor) Extract(face *frame.Frame) []float64 {
	if degenerate(face, symmetryCells*2) {
		return zeroVector(e.Length())
	}

	w, h := face.Width(), face.Height()
	gray := face.Gray()
	half := w / 2

	// Pixel-wise |left - mirrored right| over the comparable width.
	diffs := make([]float64, 0, half*h)
	maxDiff := 0.0
	asymmetric := 0
	for y := 0; y < h; y++ {
		for x := 0; x < half; x++ {
			left := gray[y*w+x]
			right := gray[y*w+(w-1-x)]
			d := math.Abs(left - right)
			diffs = append(diffs, d)
			if d > maxDiff {
				maxDiff = d
			}
			if d > asymmetryThreshold {
				asymmetric++
			}
		}
	}

	var sum float64
	for _, d := range diffs {
		sum += d
	}
	mean := sum / float64(len(diffs))

	// Structural score: mean absolute difference between cell-mean lumas
	// of the two halves, normalized to [0, 1]. Less sensitive to noise
	// than the pixel-wise stats, more sensitive to shifted regions.
	structural := e.structuralScore(gray, w, h, half)

	return []float64{
		mean,
		variance(diffs),
		maxDiff,
		float64(asymmetric) / float64(len(diffs)),
		structural,
	}
}

func (SymmetryExtractor) structuralScore(gray []float64, w, h, half int) float64 {
	cellW, cellH := half/symmetryCells, h/symmetryCells
	if cellW == 0 || cellH == 0 {
		return 0
	}

	var total float64
	for cy := 0; cy < symmetryCells; cy++ {
		for cx := 0; cx < symmetryCells; cx++ {
			var leftSum, rightSum float64
			count := 0
			for y := cy * cellH; y < (cy+1)*cellH; y++ {
				for x := cx * cellW; x < (cx+1)*cellW; x++ {
					leftSum += gray[y*w+x]
					rightSum += gray[y*w+(w-1-x)]
					count++
				}
			}
			total += math.Abs(leftSum-rightSum) / float64(count)
		}
	}
	return total / float64(symmetryCells*symmetryCells) / 255
}
