// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package websocket implements the dashboard push channel: a hub that
// fans detection alerts, stats updates and model events out to connected
// clients, with per-client read/write pumps and ping/pong keepalive.
package websocket
