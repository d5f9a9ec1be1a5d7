// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package supervisor builds the suture supervision tree: a root with a
// detection layer (websocket hub, session reaper, stats pusher) and an
// API layer (HTTP server), so failures restart in isolation.
package supervisor
