// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package facedet

import (
	"image"

	"github.com/unmasklabs/unmask/internal/frame"
)

// FaceRegion is an axis-aligned face bounding box inside a frame, with the
// detector's confidence for it.
type FaceRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Rect returns the region as a stdlib rectangle for cropping.
func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Area returns the bounding-box area in pixels.
func (r FaceRegion) Area() int {
	return r.Width * r.Height
}

// Locator finds the primary face in a frame.
//
// The boolean result is false when no face is found; that is a normal,
// reportable outcome and never an error. Implementations must be
// deterministic for identical input pixels.
type Locator interface {
	Locate(f *frame.Frame) (FaceRegion, bool)
}

// selectPrimary picks the primary region from candidates: highest
// confidence, ties broken by larger area, then by top-left position.
// The fixed ordering keeps detection results reproducible when the
// underlying detector reports candidates in arbitrary order.
func selectPrimary(candidates []FaceRegion) (FaceRegion, bool) {
	if len(candidates) == 0 {
		return FaceRegion{}, false
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if betterCandidate(c, best) {
			best = c
		}
	}
	return best, true
}

func betterCandidate(a, b FaceRegion) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.Area() != b.Area() {
		return a.Area() > b.Area()
	}
	if a.Y != b.Y {
		return a.Y < b.Y
	}
	return a.X < b.X
}
