// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package detect orchestrates the detection pipeline: face location,
// feature extraction, anomaly scoring, per-stream sessions with rolling
// window smoothing, and process-wide statistics.
//
// The Engine is transport-agnostic; HTTP and WebSocket layers sit on top
// of it. All model state lives behind an atomic pointer so retraining
// never disturbs in-flight detections.
package detect
