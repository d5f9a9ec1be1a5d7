// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/unmasklabs/unmask/internal/frame"
)

const (
	// sobelStrongEdge is the gradient magnitude above which a pixel counts
	// toward edge density.
	sobelStrongEdge = 100.0

	// laplacianStrongEdge is the absolute response above which a pixel
	// counts toward second-derivative edge density.
	laplacianStrongEdge = 30.0
)

// EdgeExtractor computes gradient statistics from two edge operators.
// Blending seams and re-encoded regions show up as inconsistent
// first-derivative (Sobel) and second-derivative (Laplacian) responses,
// so both are measured: mean, variance and strong-edge density each.
type EdgeExtractor struct{}

var _ Extractor = EdgeExtractor{}

// Name implements Extractor.
func (EdgeExtractor) Name() string { return "edges" }

// Length implements Extractor.
func (EdgeExtractor) Length() int { return 6 }

// Extract implements Extractor.
func (e EdgeExtractor) Extract(face *frame.Frame) []float64 {
	if degenerate(face, 3) {
		return zeroVector(e.Length())
	}

	w, h := face.Width(), face.Height()
	gray := face.Gray()

	interior := (w - 2) * (h - 2)
	sobel := make([]float64, 0, interior)
	laplacian := make([]float64, 0, interior)

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl := gray[(y-1)*w+x-1]
			tc := gray[(y-1)*w+x]
			tr := gray[(y-1)*w+x+1]
			ml := gray[y*w+x-1]
			mc := gray[y*w+x]
			mr := gray[y*w+x+1]
			bl := gray[(y+1)*w+x-1]
			bc := gray[(y+1)*w+x]
			br := gray[(y+1)*w+x+1]

			gx := (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy := (bl + 2*bc + br) - (tl + 2*tc + tr)
			sobel = append(sobel, math.Hypot(gx, gy))

			laplacian = append(laplacian, math.Abs(tc+bc+ml+mr-4*mc))
		}
	}

	return []float64{
		stat.Mean(sobel, nil),
		variance(sobel),
		densityAbove(sobel, sobelStrongEdge),
		stat.Mean(laplacian, nil),
		variance(laplacian),
		densityAbove(laplacian, laplacianStrongEdge),
	}
}

// variance is population variance; gonum's stat.Variance is the unbiased
// sample estimator, which is undefined for a single value.
func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mean := stat.Mean(xs, nil)
	var sum float64
	for _, x := range xs {
		d := x - mean
		sum += d * d
	}
	return sum / float64(len(xs))
}

// densityAbove returns the fraction of values strictly above the threshold.
func densityAbove(xs []float64, threshold float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	count := 0
	for _, x := range xs {
		if x > threshold {
			count++
		}
	}
	return float64(count) / float64(len(xs))
}
