// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package anomaly

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/unmasklabs/unmask/internal/features"
)

func TestPersistRoundTrip(t *testing.T) {
	t.Parallel()

	schema := testSchema(t)
	vectors := baselineVectors(t, 40, schema.Length())
	probe := vectors[3]

	model, err := Fit(vectors, schema, 0.7, testOptions())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path, schema)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.SchemaVersion() != model.SchemaVersion() {
		t.Errorf("loaded schema = %q, want %q", loaded.SchemaVersion(), model.SchemaVersion())
	}
	if loaded.VectorLength() != model.VectorLength() {
		t.Errorf("loaded vector length = %d, want %d", loaded.VectorLength(), model.VectorLength())
	}
	if loaded.Threshold() != 0.7 {
		t.Errorf("loaded threshold = %f, want 0.7", loaded.Threshold())
	}

	want, err := model.Score(probe)
	if err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	got, err := loaded.Score(probe)
	if err != nil {
		t.Fatalf("loaded Score() error = %v", err)
	}
	if got.Raw != want.Raw || got.Confidence != want.Confidence {
		t.Errorf("loaded model scores differ: %+v vs %+v", got, want)
	}
	for name, v := range want.SubScores {
		if got.SubScores[name] != v {
			t.Errorf("loaded sub-score %q = %f, want %f", name, got.SubScores[name], v)
		}
	}
}

func TestLoadRejectsSchemaMismatch(t *testing.T) {
	t.Parallel()

	fullSchema := testSchema(t)
	subsetSchema := features.NewSchema([]features.Extractor{
		features.TextureExtractor{},
		features.ColorExtractor{},
	})

	model, err := Fit(baselineVectors(t, 16, fullSchema.Length()), fullSchema, 0.6, testOptions())
	if err != nil {
		t.Fatalf("Fit() error = %v", err)
	}

	path := filepath.Join(t.TempDir(), "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	if _, err := Load(path, subsetSchema); !errors.Is(err, ErrSchemaMismatch) {
		t.Errorf("Load() with different schema error = %v, want ErrSchemaMismatch", err)
	}
}

func TestLoadRejectsCorruptFiles(t *testing.T) {
	t.Parallel()

	schema := testSchema(t)
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"not json", "not a model"},
		{"wrong format version", `{"format_version": 99}`},
		{"empty forest", `{"format_version": 1, "forest": {"trees": []}}`},
		{"missing baseline envelope", `{"format_version": 1, "vector_length": 280, "forest": {"trees": [{"nodes": []}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, tt.name+".json")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			if _, err := Load(path, schema); !errors.Is(err, ErrBadModelFile) {
				t.Errorf("Load(%q) error = %v, want ErrBadModelFile", tt.name, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "nope.json"), testSchema(t)); err == nil {
		t.Error("Load() of missing file should error")
	}
}
