// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package features

import (
	"strings"
)

// baseSchemaVersion identifies the current extractor generation. Any
// change to an extractor's output (length, ordering, semantics) must bump
// this constant so stale models are rejected at load time.
const baseSchemaVersion = "v1"

// Range locates one extractor's sub-vector inside an assembled vector.
type Range struct {
	Offset int `json:"offset"`
	Length int `json:"length"`
}

// Schema is the canonical layout of an assembled feature vector: the
// ordered extractor categories, their index ranges and a version string
// that ties fitted models to the exact layout they were fitted against.
type Schema struct {
	version string
	names   []string
	ranges  map[string]Range
	length  int
}

// NewSchema builds the schema for an ordered extractor set.
//
// The version is the base generation for the full default extractor set;
// a reduced set (extractor toggles) yields a distinct version embedding
// the enabled categories, so a model fitted with a subset can never be
// scored against vectors from a different subset.
func NewSchema(extractors []Extractor) Schema {
	names := make([]string, 0, len(extractors))
	ranges := make(map[string]Range, len(extractors))
	offset := 0
	for _, ex := range extractors {
		names = append(names, ex.Name())
		ranges[ex.Name()] = Range{Offset: offset, Length: ex.Length()}
		offset += ex.Length()
	}

	version := baseSchemaVersion
	if !isDefaultSet(names) {
		version = baseSchemaVersion + "[" + strings.Join(names, ",") + "]"
	}

	return Schema{version: version, names: names, ranges: ranges, length: offset}
}

func isDefaultSet(names []string) bool {
	defaults := []string{"texture", "edges", "color", "frequency", "symmetry"}
	if len(names) != len(defaults) {
		return false
	}
	for i, n := range names {
		if n != defaults[i] {
			return false
		}
	}
	return true
}

// Version returns the schema version string.
func (s Schema) Version() string { return s.version }

// Length returns the total assembled vector length.
func (s Schema) Length() int { return s.length }

// Categories returns the extractor names in assembly order.
func (s Schema) Categories() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Range returns the index range for a category.
func (s Schema) Range(name string) (Range, bool) {
	r, ok := s.ranges[name]
	return r, ok
}

// Slice returns the sub-vector for a category from an assembled vector.
func (s Schema) Slice(vec []float64, name string) ([]float64, bool) {
	r, ok := s.ranges[name]
	if !ok || len(vec) < r.Offset+r.Length {
		return nil, false
	}
	return vec[r.Offset : r.Offset+r.Length], true
}
