// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Detection DetectionConfig `koanf:"detection"`
	Model     ModelConfig     `koanf:"model"`
	Face      FaceConfig      `koanf:"face"`
	Security  SecurityConfig  `koanf:"security"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gte=1,lte=65535"`
	Timeout time.Duration `koanf:"timeout" validate:"gt=0"`
}

// DetectionConfig configures the detection engine.
type DetectionConfig struct {
	// Extractors selects the enabled feature extractors in canonical
	// order. An empty list means the full default set.
	Extractors []string `koanf:"extractors" validate:"dive,oneof=texture edges color frequency symmetry"`

	// WindowSize is the rolling window length for stream sessions.
	WindowSize int `koanf:"window_size" validate:"gte=1,lte=1000"`

	// Threshold is the decision threshold on calibrated confidence.
	Threshold float64 `koanf:"threshold" validate:"gte=0,lte=1"`

	// SessionIdleTimeout closes sessions with no activity for this long.
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout" validate:"gt=0"`

	// StatsBroadcastInterval is how often stats snapshots are pushed to
	// WebSocket dashboard clients. Zero disables the pusher.
	StatsBroadcastInterval time.Duration `koanf:"stats_broadcast_interval" validate:"gte=0"`
}

// ModelConfig configures anomaly model fitting and persistence.
type ModelConfig struct {
	// Path is where the fitted model is persisted; empty disables
	// load-on-start and save-after-fit.
	Path string `koanf:"path"`

	Trees         int     `koanf:"trees" validate:"gte=1,lte=10000"`
	SampleSize    int     `koanf:"sample_size" validate:"gte=2,lte=65536"`
	Contamination float64 `koanf:"contamination" validate:"gt=0,lt=1"`
	Seed          int64   `koanf:"seed"`
	Slope         float64 `koanf:"slope" validate:"gt=0"`
}

// FaceConfig configures the face locator.
type FaceConfig struct {
	// CascadePath points at the binary pico cascade file.
	CascadePath string `koanf:"cascade_path" validate:"required"`

	// MinConfidence is the cascade score floor for accepting a detection.
	MinConfidence float64 `koanf:"min_confidence" validate:"gte=0"`

	// MinSize is the smallest face side length considered, in pixels.
	MinSize int `koanf:"min_size" validate:"gte=8"`
}

// SecurityConfig configures CORS and rate limiting on the API.
type SecurityConfig struct {
	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gte=1"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// MaxUploadBytes bounds detect/image request bodies.
	MaxUploadBytes int64 `koanf:"max_upload_bytes" validate:"gte=1024"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration against its struct tags plus the
// cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	seen := make(map[string]bool, len(c.Detection.Extractors))
	for _, name := range c.Detection.Extractors {
		if seen[name] {
			return fmt.Errorf("invalid configuration: duplicate extractor %q", name)
		}
		seen[name] = true
	}

	if c.Model.SampleSize > 0 && c.Model.SampleSize < 8 {
		return fmt.Errorf("invalid configuration: model sample_size %d is below the minimum baseline of 8", c.Model.SampleSize)
	}

	return nil
}
