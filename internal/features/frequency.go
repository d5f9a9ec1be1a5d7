// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/stat"

	"github.com/unmasklabs/unmask/internal/frame"
)

const (
	// dctBlock is the side length of the DCT analysis blocks.
	dctBlock = 16

	// dctLowBand is the maximum u+v index (DC excluded) counted as
	// low-frequency energy.
	dctLowBand = 4

	// dctHighBand is the minimum u+v index counted as high-frequency
	// energy, where re-compression and synthesis artifacts concentrate.
	dctHighBand = 16
)

// FrequencyExtractor measures block-wise DCT energy distribution.
// Re-encoded or synthesized content carries a high/low frequency energy
// profile shaped by the compression grid rather than by the scene.
type FrequencyExtractor struct{}

var _ Extractor = FrequencyExtractor{}

// Name implements Extractor.
func (FrequencyExtractor) Name() string { return "frequency" }

// Length implements Extractor.
func (FrequencyExtractor) Length() int { return 6 }

// Extract implements Extractor.
func (e FrequencyExtractor) Extract(face *frame.Frame) []float64 {
	if degenerate(face, dctBlock) {
		return zeroVector(e.Length())
	}

	w, h := face.Width(), face.Height()
	gray := face.Gray()
	dct := fourier.NewDCT(dctBlock)

	blocksX, blocksY := w/dctBlock, h/dctBlock
	nBlocks := blocksX * blocksY

	lows := make([]float64, 0, nBlocks)
	highs := make([]float64, 0, nBlocks)
	ratios := make([]float64, 0, nBlocks)
	hotFractions := make([]float64, 0, nBlocks)
	maxHigh := 0.0

	coeffs := make([]float64, dctBlock*dctBlock)
	row := make([]float64, dctBlock)
	col := make([]float64, dctBlock)

	for by := 0; by < blocksY; by++ {
		for bx := 0; bx < blocksX; bx++ {
			// 2D DCT-II: rows first, then columns of the row-transformed block.
			for y := 0; y < dctBlock; y++ {
				src := gray[(by*dctBlock+y)*w+bx*dctBlock:]
				dct.Transform(coeffs[y*dctBlock:(y+1)*dctBlock], src[:dctBlock])
			}
			for x := 0; x < dctBlock; x++ {
				for y := 0; y < dctBlock; y++ {
					col[y] = coeffs[y*dctBlock+x]
				}
				dct.Transform(row, col)
				for y := 0; y < dctBlock; y++ {
					coeffs[y*dctBlock+x] = row[y]
				}
			}

			low, high, total := 0.0, 0.0, 0.0
			hot := 0
			highCount := 0
			for v := 0; v < dctBlock; v++ {
				for u := 0; u < dctBlock; u++ {
					if u == 0 && v == 0 {
						continue // DC carries brightness, not artifact signal
					}
					c := math.Abs(coeffs[v*dctBlock+u])
					total += c
					switch {
					case u+v <= dctLowBand:
						low += c
					case u+v >= dctHighBand:
						high += c
						highCount++
						if c > maxHigh {
							maxHigh = c
						}
					}
				}
			}

			meanCoeff := total / float64(dctBlock*dctBlock-1)
			hotInBlock := 0.0
			if highCount > 0 {
				for v := 0; v < dctBlock; v++ {
					for u := 0; u < dctBlock; u++ {
						if u+v >= dctHighBand && math.Abs(coeffs[v*dctBlock+u]) > meanCoeff {
							hot++
						}
					}
				}
				hotInBlock = float64(hot) / float64(highCount)
			}

			lows = append(lows, low)
			highs = append(highs, high)
			ratios = append(ratios, high/(low+1e-7))
			hotFractions = append(hotFractions, hotInBlock)
		}
	}

	return []float64{
		stat.Mean(lows, nil),
		stat.Mean(highs, nil),
		stat.Mean(ratios, nil),
		variance(ratios),
		maxHigh,
		stat.Mean(hotFractions, nil),
	}
}
