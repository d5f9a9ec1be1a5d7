// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package anomaly

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"

	"github.com/unmasklabs/unmask/internal/features"
)

// formatVersion is the on-disk model format. Bumped whenever the
// serialized layout changes; older files are rejected at load time.
const formatVersion = 1

// ErrBadModelFile indicates a model file that cannot be parsed or carries
// an unknown format version.
var ErrBadModelFile = errors.New("unreadable model file")

// modelFile is the serialized form of a fitted Model.
type modelFile struct {
	FormatVersion int                       `json:"format_version"`
	SchemaVersion string                    `json:"schema_version"`
	VectorLength  int                       `json:"vector_length"`
	Categories    []string                  `json:"categories"`
	Ranges        map[string]features.Range `json:"ranges"`
	Options       Options                   `json:"options"`
	Pivot         float64                   `json:"pivot"`
	Threshold     float64                   `json:"threshold"`
	FittedAt      time.Time                 `json:"fitted_at"`
	FeatureLow    []float64                 `json:"feature_low"`
	FeatureHigh   []float64                 `json:"feature_high"`
	Forest        *forest                   `json:"forest"`
	SubForests    map[string]*forest        `json:"sub_forests"`
}

// Save writes the model to path atomically (temp file + rename), so a
// crash mid-write never leaves a truncated model behind.
func (m *Model) Save(path string) error {
	doc := modelFile{
		FormatVersion: formatVersion,
		SchemaVersion: m.schemaVersion,
		VectorLength:  m.vectorLength,
		Categories:    m.categories,
		Ranges:        m.ranges,
		Options:       m.opts,
		Pivot:         m.pivot,
		Threshold:     m.threshold,
		FittedAt:      m.fittedAt,
		FeatureLow:    m.featLow,
		FeatureHigh:   m.featHigh,
		Forest:        m.full,
		SubForests:    m.subs,
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".model-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp model file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write model: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close model file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("install model file: %w", err)
	}
	return nil
}

// Load reads a model from path and verifies it against the expected
// feature schema. A schema or format mismatch is rejected here rather
// than silently mis-scoring live traffic.
func Load(path string, expected features.Schema) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model %s: %w", path, err)
	}

	var doc modelFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBadModelFile, path, err)
	}
	if doc.FormatVersion != formatVersion {
		return nil, fmt.Errorf("%w: %s: format version %d, supported %d",
			ErrBadModelFile, path, doc.FormatVersion, formatVersion)
	}
	if doc.Forest == nil || len(doc.Forest.Trees) == 0 {
		return nil, fmt.Errorf("%w: %s: empty forest", ErrBadModelFile, path)
	}
	if len(doc.FeatureLow) != doc.VectorLength || len(doc.FeatureHigh) != doc.VectorLength {
		return nil, fmt.Errorf("%w: %s: baseline envelope length %d/%d, expected %d",
			ErrBadModelFile, path, len(doc.FeatureLow), len(doc.FeatureHigh), doc.VectorLength)
	}

	if doc.SchemaVersion != expected.Version() || doc.VectorLength != expected.Length() {
		return nil, fmt.Errorf("%w: model fitted for schema %s (length %d), runtime schema is %s (length %d)",
			ErrSchemaMismatch, doc.SchemaVersion, doc.VectorLength, expected.Version(), expected.Length())
	}
	for _, name := range doc.Categories {
		r, ok := expected.Range(name)
		if !ok || r != doc.Ranges[name] {
			return nil, fmt.Errorf("%w: category %q layout differs from runtime schema", ErrSchemaMismatch, name)
		}
		if doc.SubForests[name] == nil {
			return nil, fmt.Errorf("%w: %s: missing sub-forest for category %q", ErrBadModelFile, path, name)
		}
	}

	return &Model{
		schemaVersion: doc.SchemaVersion,
		vectorLength:  doc.VectorLength,
		categories:    doc.Categories,
		ranges:        doc.Ranges,
		opts:          withDefaults(doc.Options),
		pivot:         doc.Pivot,
		threshold:     doc.Threshold,
		fittedAt:      doc.FittedAt,
		featLow:       doc.FeatureLow,
		featHigh:      doc.FeatureHigh,
		full:          doc.Forest,
		subs:          doc.SubForests,
	}, nil
}
