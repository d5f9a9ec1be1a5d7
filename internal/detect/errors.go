// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import "errors"

var (
	// ErrSessionNotFound indicates an unknown session handle.
	ErrSessionNotFound = errors.New("invalid session: not found")

	// ErrSessionClosed indicates a frame was submitted to a session that
	// has already been closed (explicitly or by idle timeout).
	ErrSessionClosed = errors.New("invalid session: closed")

	// ErrModelNotReady indicates no anomaly model has been fitted or
	// loaded yet; detection cannot run without one.
	ErrModelNotReady = errors.New("anomaly model not ready")
)
