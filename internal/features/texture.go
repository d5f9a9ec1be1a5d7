// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"math/bits"

	"github.com/unmasklabs/unmask/internal/frame"
)

const (
	// lbpBins is the number of uniform LBP classes: 58 uniform 8-bit
	// patterns plus one bucket for all non-uniform patterns.
	lbpBins = 59

	// lbpGrid is the cell grid size; the crop is divided into
	// lbpGrid x lbpGrid non-overlapping cells, each histogrammed
	// independently so the descriptor keeps spatial layout.
	lbpGrid = 2
)

// lbpUniform maps each 8-bit LBP code to its histogram bin. Uniform
// patterns (at most two 0/1 transitions around the ring) get their own
// bins in ascending code order; everything else shares the last bin.
var lbpUniform = buildUniformTable()

func buildUniformTable() [256]int {
	var table [256]int
	next := 0
	for code := 0; code < 256; code++ {
		ring := uint8(code)
		transitions := bits.OnesCount8(ring ^ ((ring << 1) | (ring >> 7)))
		if transitions <= 2 {
			table[code] = next
			next++
		} else {
			table[code] = lbpBins - 1
		}
	}
	return table
}

// TextureExtractor computes uniform Local Binary Pattern histograms over
// non-overlapping cells. Texture statistics are the strongest single cue
// for re-synthesized skin: generative pipelines smooth the micro-texture
// that LBP codes capture.
type TextureExtractor struct{}

var _ Extractor = TextureExtractor{}

// Name implements Extractor.
func (TextureExtractor) Name() string { return "texture" }

// Length implements Extractor.
func (TextureExtractor) Length() int { return lbpGrid * lbpGrid * lbpBins }

// Extract implements Extractor.
func (e TextureExtractor) Extract(face *frame.Frame) []float64 {
	if degenerate(face, lbpGrid*2+2) {
		return zeroVector(e.Length())
	}

	w, h := face.Width(), face.Height()
	gray := face.Gray()

	// LBP code per interior pixel: each of the 8 neighbours contributes a
	// bit set when the neighbour is >= the center, clockwise from the
	// top-left.
	codes := make([]uint8, w*h)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			center := gray[y*w+x]
			var code uint8
			neighbors := [8]float64{
				gray[(y-1)*w+x-1], gray[(y-1)*w+x], gray[(y-1)*w+x+1],
				gray[y*w+x+1], gray[(y+1)*w+x+1], gray[(y+1)*w+x],
				gray[(y+1)*w+x-1], gray[y*w+x-1],
			}
			for bit, n := range neighbors {
				if n >= center {
					code |= 1 << uint(bit)
				}
			}
			codes[y*w+x] = code
		}
	}

	// Per-cell normalized histograms, concatenated row-major.
	out := make([]float64, 0, e.Length())
	cellW, cellH := w/lbpGrid, h/lbpGrid
	for cy := 0; cy < lbpGrid; cy++ {
		for cx := 0; cx < lbpGrid; cx++ {
			hist := make([]float64, lbpBins)
			count := 0.0
			for y := cy * cellH; y < (cy+1)*cellH; y++ {
				if y == 0 || y == h-1 {
					continue
				}
				for x := cx * cellW; x < (cx+1)*cellW; x++ {
					if x == 0 || x == w-1 {
						continue
					}
					hist[lbpUniform[codes[y*w+x]]]++
					count++
				}
			}
			if count > 0 {
				for i := range hist {
					hist[i] /= count
				}
			}
			out = append(out, hist...)
		}
	}
	return out
}
