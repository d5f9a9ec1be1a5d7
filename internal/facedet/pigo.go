// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package facedet

import (
	"fmt"
	"os"

	pigo "github.com/esimov/pigo/core"

	"github.com/unmasklabs/unmask/internal/frame"
)

// PigoConfig configures the pigo cascade locator.
type PigoConfig struct {
	// CascadePath is the path to the binary facefinder cascade file.
	CascadePath string

	// MinConfidence is the minimum cascade quality for a candidate to be
	// considered a face. Candidates below it are discarded, which yields
	// the "no face" outcome rather than a low-quality region.
	MinConfidence float64

	// MinSize is the smallest face size in pixels the cascade scans for.
	MinSize int

	// ShiftFactor controls detection window shift as a fraction of size.
	ShiftFactor float64

	// ScaleFactor controls the scan scale pyramid step.
	ScaleFactor float64
}

// DefaultPigoConfig returns sensible defaults for frontal face detection.
func DefaultPigoConfig() PigoConfig {
	return PigoConfig{
		CascadePath:   "cascade/facefinder",
		MinConfidence: 5.0,
		MinSize:       40,
		ShiftFactor:   0.1,
		ScaleFactor:   1.1,
	}
}

// PigoLocator locates faces with the pigo pixel-intensity-comparison
// cascade. It is safe for concurrent use: the unpacked classifier is
// read-only after construction.
type PigoLocator struct {
	classifier *pigo.Pigo
	cfg        PigoConfig
}

var _ Locator = (*PigoLocator)(nil)

// NewPigoLocator loads and unpacks the cascade file.
func NewPigoLocator(cfg PigoConfig) (*PigoLocator, error) {
	cascade, err := os.ReadFile(cfg.CascadePath)
	if err != nil {
		return nil, fmt.Errorf("read cascade %s: %w", cfg.CascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("unpack cascade %s: %w", cfg.CascadePath, err)
	}

	if cfg.MinSize <= 0 {
		cfg.MinSize = DefaultPigoConfig().MinSize
	}
	if cfg.ShiftFactor <= 0 {
		cfg.ShiftFactor = DefaultPigoConfig().ShiftFactor
	}
	if cfg.ScaleFactor <= 1 {
		cfg.ScaleFactor = DefaultPigoConfig().ScaleFactor
	}

	return &PigoLocator{classifier: classifier, cfg: cfg}, nil
}

// Locate runs the cascade over the frame's luma plane and returns the
// primary face region, or false when nothing above MinConfidence is found.
// Frames smaller than the minimum scan size are treated as "no face".
func (l *PigoLocator) Locate(f *frame.Frame) (FaceRegion, bool) {
	if f == nil || f.Width() < l.cfg.MinSize || f.Height() < l.cfg.MinSize {
		return FaceRegion{}, false
	}

	maxSize := f.Width()
	if f.Height() < maxSize {
		maxSize = f.Height()
	}

	params := pigo.CascadeParams{
		MinSize:     l.cfg.MinSize,
		MaxSize:     maxSize,
		ShiftFactor: l.cfg.ShiftFactor,
		ScaleFactor: l.cfg.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: f.GrayBytes(),
			Rows:   f.Height(),
			Cols:   f.Width(),
			Dim:    f.Width(),
		},
	}

	dets := l.classifier.RunCascade(params, 0.0)
	dets = l.classifier.ClusterDetections(dets, 0.2)

	candidates := make([]FaceRegion, 0, len(dets))
	for _, d := range dets {
		if float64(d.Q) < l.cfg.MinConfidence {
			continue
		}
		half := d.Scale / 2
		candidates = append(candidates, FaceRegion{
			X:          d.Col - half,
			Y:          d.Row - half,
			Width:      d.Scale,
			Height:     d.Scale,
			Confidence: float64(d.Q),
		})
	}

	return selectPrimary(candidates)
}
