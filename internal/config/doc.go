// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package config loads and validates application configuration with
// layered precedence: built-in defaults, then an optional YAML file,
// then UNMASK_* environment variables.
package config
