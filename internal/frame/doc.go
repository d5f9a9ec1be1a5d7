// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package frame defines the decoded raster representation shared by the
// face locator and the feature extractors.
//
// A Frame is an 8-bit BGR image with interleaved pixels. BGR ordering
// (rather than the stdlib's RGBA) matches the channel ordering the color
// extractor and the fitted anomaly model expect; conversions from stdlib
// images happen exactly once at the transport boundary via FromImage.
//
// Frames are ephemeral: the core never retains one past a single
// detection call.
package frame
