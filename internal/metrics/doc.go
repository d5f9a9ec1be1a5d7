// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package metrics exposes Prometheus instrumentation for the detection
// pipeline, sessions, model lifecycle, API and WebSocket layers.
//
// Metrics are package-level promauto collectors registered with the
// default registry; the HTTP layer serves them at /metrics via promhttp.
// These complement (not replace) the engine's own stats aggregator, which
// backs the public /api/v1/stats endpoint.
package metrics
