// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import "github.com/unmasklabs/unmask/internal/frame"

// CropSize is the side length the aligned face crop is normalized to
// before extraction. All extractor cell geometry assumes this size.
const CropSize = 128

// Extractor computes one fixed-length numeric sub-vector from an aligned
// face crop.
//
// Contract: Extract is a pure function — deterministic for identical input
// pixels — and always returns exactly Length() values. When an intermediate
// computation degenerates (flat image, insufficient contrast) the extractor
// returns a zero-filled sub-vector of the correct length so downstream
// assembly never branches on shape.
type Extractor interface {
	// Name identifies the extractor's category in the feature schema.
	Name() string

	// Length is the sub-vector length, constant for the process lifetime.
	Length() int

	// Extract computes the sub-vector from the face crop.
	Extract(face *frame.Frame) []float64
}

// zeroVector returns the neutral sub-vector for a degenerate input.
func zeroVector(n int) []float64 {
	return make([]float64, n)
}

// degenerate reports whether a crop is too small for cell-based analysis.
func degenerate(face *frame.Frame, minSide int) bool {
	return face == nil || face.Width() < minSide || face.Height() < minSide
}
