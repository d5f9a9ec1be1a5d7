// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"errors"
	"fmt"
	"time"

	"github.com/unmasklabs/unmask/internal/frame"
)

// ErrSchemaViolation indicates an extractor produced a sub-vector whose
// length disagrees with the declared schema. This is a programming or
// configuration error, never a runtime data error, and is surfaced
// immediately instead of letting a mis-shaped vector reach the scorer.
var ErrSchemaViolation = errors.New("feature schema violation")

// DefaultExtractors returns the full extractor set in canonical assembly
// order: texture, edges, color, frequency, symmetry.
func DefaultExtractors() []Extractor {
	return []Extractor{
		TextureExtractor{},
		EdgeExtractor{},
		ColorExtractor{},
		FrequencyExtractor{},
		SymmetryExtractor{},
	}
}

// ExtractorsFor resolves extractor names to instances, preserving the
// canonical order regardless of the order names are given in. An empty
// list yields the full default set.
func ExtractorsFor(names []string) ([]Extractor, error) {
	all := DefaultExtractors()
	if len(names) == 0 {
		return all, nil
	}

	enabled := make(map[string]bool, len(names))
	for _, name := range names {
		enabled[name] = true
	}

	selected := make([]Extractor, 0, len(names))
	for _, ex := range all {
		if enabled[ex.Name()] {
			selected = append(selected, ex)
			delete(enabled, ex.Name())
		}
	}
	for name := range enabled {
		return nil, fmt.Errorf("%w: unknown extractor %q", ErrSchemaViolation, name)
	}
	return selected, nil
}

// Assembler concatenates extractor sub-vectors into one fixed-dimension
// feature vector and owns the canonical ordering and schema.
type Assembler struct {
	extractors []Extractor
	schema     Schema

	// observer, when set, receives per-category extraction timings. Keeps
	// this package free of any metrics dependency.
	observer func(category string, elapsed time.Duration)
}

// NewAssembler builds an assembler over the given ordered extractors.
func NewAssembler(extractors ...Extractor) (*Assembler, error) {
	if len(extractors) == 0 {
		return nil, fmt.Errorf("%w: no extractors enabled", ErrSchemaViolation)
	}

	seen := make(map[string]bool, len(extractors))
	for _, ex := range extractors {
		if ex.Length() <= 0 {
			return nil, fmt.Errorf("%w: extractor %q declares length %d",
				ErrSchemaViolation, ex.Name(), ex.Length())
		}
		if seen[ex.Name()] {
			return nil, fmt.Errorf("%w: duplicate extractor %q", ErrSchemaViolation, ex.Name())
		}
		seen[ex.Name()] = true
	}

	return &Assembler{
		extractors: extractors,
		schema:     NewSchema(extractors),
	}, nil
}

// Schema returns the vector layout this assembler produces.
func (a *Assembler) Schema() Schema { return a.schema }

// SetObserver installs a per-category timing callback. Must be called
// before the assembler is shared across goroutines.
func (a *Assembler) SetObserver(fn func(category string, elapsed time.Duration)) {
	a.observer = fn
}

// Assemble runs every extractor over the face crop and concatenates the
// sub-vectors in schema order. Sub-vector and total lengths are verified
// against the schema on every call; a mismatch means an extractor broke
// its contract.
func (a *Assembler) Assemble(face *frame.Frame) ([]float64, error) {
	vec := make([]float64, 0, a.schema.Length())
	for _, ex := range a.extractors {
		start := time.Now()
		sub := ex.Extract(face)
		if a.observer != nil {
			a.observer(ex.Name(), time.Since(start))
		}
		if len(sub) != ex.Length() {
			return nil, fmt.Errorf("%w: extractor %q returned %d values, declared %d",
				ErrSchemaViolation, ex.Name(), len(sub), ex.Length())
		}
		vec = append(vec, sub...)
	}

	if len(vec) != a.schema.Length() {
		return nil, fmt.Errorf("%w: assembled %d values, schema declares %d",
			ErrSchemaViolation, len(vec), a.schema.Length())
	}
	return vec, nil
}
