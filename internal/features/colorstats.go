// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/stat"

	"github.com/unmasklabs/unmask/internal/frame"
)

// colorSpaces is the number of color representations analyzed (BGR, HSV, Lab).
const colorSpaces = 3

// ColorExtractor computes per-channel mean, variance and skew in three
// color representations. Synthesis pipelines tend to produce channel
// statistics (saturation spread, chroma skew) that natural camera output
// does not, and those show differently per space.
type ColorExtractor struct{}

var _ Extractor = ColorExtractor{}

// Name implements Extractor.
func (ColorExtractor) Name() string { return "color" }

// Length implements Extractor.
func (ColorExtractor) Length() int { return colorSpaces * frame.Channels * 3 }

// Extract implements Extractor.
func (e ColorExtractor) Extract(face *frame.Frame) []float64 {
	if degenerate(face, 2) {
		return zeroVector(e.Length())
	}

	w, h := face.Width(), face.Height()
	n := w * h

	// Channel series per space: BGR raw bytes, HSV and CIE Lab via
	// go-colorful. Hue is divided by 360 so every channel sits in a
	// comparable range.
	channels := make([][]float64, colorSpaces*frame.Channels)
	for i := range channels {
		channels[i] = make([]float64, 0, n)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			b, g, r := face.BGR(x, y)
			channels[0] = append(channels[0], float64(b))
			channels[1] = append(channels[1], float64(g))
			channels[2] = append(channels[2], float64(r))

			c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
			hue, sat, val := c.Hsv()
			channels[3] = append(channels[3], hue/360)
			channels[4] = append(channels[4], sat)
			channels[5] = append(channels[5], val)

			l, labA, labB := c.Lab()
			channels[6] = append(channels[6], l)
			channels[7] = append(channels[7], labA)
			channels[8] = append(channels[8], labB)
		}
	}

	out := make([]float64, 0, e.Length())
	for _, series := range channels {
		mean := stat.Mean(series, nil)
		out = append(out, mean, variance(series), skew(series, mean))
	}
	return out
}

// skew is the population skewness; zero for flat series where the standard
// deviation vanishes, keeping the sub-vector neutral for degenerate crops.
func skew(xs []float64, mean float64) float64 {
	v := variance(xs)
	if v == 0 {
		return 0
	}
	sigma := math.Sqrt(v)
	var sum float64
	for _, x := range xs {
		d := (x - mean) / sigma
		sum += d * d * d
	}
	return sum / float64(len(xs))
}
