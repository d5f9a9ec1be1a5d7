// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package features turns an aligned 128x128 face crop into a fixed-schema
// feature vector.
//
// Five independent extractors each emit a fixed-length sub-vector:
//
//	texture    (236)  uniform LBP histograms over a 2x2 cell grid
//	edges      (6)    Sobel and Laplacian gradient statistics
//	color      (27)   mean/variance/skew per channel in BGR, HSV, Lab
//	frequency  (6)    16x16 block DCT energy distribution
//	symmetry   (5)    left half vs mirrored right half differences
//
// The Assembler concatenates them in that fixed order into a 280-value
// vector described by a versioned Schema. Extractors are pure functions:
// deterministic for identical pixels, and zero-filled (never shorter) on
// degenerate input, so vector shape is invariant.
package features
