// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package facedet locates the primary face region in a frame.
//
// The production Locator wraps the pigo pixel-intensity-comparison cascade
// (pure Go, no OpenCV dependency). When several candidates survive the
// confidence cutoff, selection is deterministic: highest confidence, then
// largest area, then top-left position. "No face found" is a normal
// outcome reported through the boolean return, never an error.
package facedet
