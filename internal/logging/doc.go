// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package logging provides centralized zerolog-based logging for Unmask.
//
// It exposes a single global logger configured at startup:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("component", "engine").Msg("ready")
//
// Request and detection-session IDs can be propagated through context and
// picked up with logging.Ctx(ctx). An slog adapter is provided for
// libraries that only speak log/slog (suture event hooks).
//
// Environment configuration is handled by the config package; this package
// only knows about the resolved Config values.
//
// Always terminate log chains with .Msg() or .Send(); an unterminated
// chain is silently dropped by zerolog.
package logging
