// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package anomaly

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/unmasklabs/unmask/internal/features"
)

// ErrSchemaMismatch indicates a vector or persisted model whose feature
// schema disagrees with the expected one. Scoring across schemas would be
// silently wrong, so this is surfaced as a configuration error.
var ErrSchemaMismatch = errors.New("feature schema mismatch")

// ErrInsufficientBaseline indicates too few baseline vectors to fit.
var ErrInsufficientBaseline = errors.New("insufficient baseline vectors")

// minBaseline is the smallest baseline population a forest can be fitted
// over; below this the pivot quantile is meaningless.
const minBaseline = 8

// Options configures isolation forest fitting and score calibration.
type Options struct {
	// Trees is the ensemble size.
	Trees int `json:"trees" validate:"gt=0"`

	// SampleSize is the per-tree subsample size.
	SampleSize int `json:"sample_size" validate:"gt=1"`

	// Contamination is the assumed fraction of manipulated content in the
	// baseline; the calibration pivot is the (1-Contamination) quantile of
	// baseline raw scores.
	Contamination float64 `json:"contamination" validate:"gt=0,lt=1"`

	// Seed feeds the deterministic RNG used for subsampling and splits.
	Seed int64 `json:"seed"`

	// Slope is the logistic calibration slope; larger values sharpen the
	// transition around the pivot.
	Slope float64 `json:"slope" validate:"gt=0"`
}

// DefaultOptions returns the fitting defaults.
func DefaultOptions() Options {
	return Options{
		Trees:         100,
		SampleSize:    256,
		Contamination: 0.1,
		Seed:          42,
		Slope:         12,
	}
}

// Score is the outcome of scoring one feature vector.
type Score struct {
	// Confidence is the calibrated manipulation confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Raw is the uncalibrated isolation score in (0, 1].
	Raw float64 `json:"raw"`

	// SubScores holds the per-category calibrated confidences, keyed by
	// extractor name.
	SubScores map[string]float64 `json:"sub_scores"`
}

// Model is a fitted one-class anomaly scorer bound to a feature schema.
//
// A Model is immutable after Fit and safe for unsynchronized concurrent
// reads; retraining produces a new Model which callers install atomically
// (install-then-swap, never mutate in place).
type Model struct {
	schemaVersion string
	vectorLength  int
	categories    []string
	ranges        map[string]features.Range

	opts      Options
	pivot     float64
	threshold float64
	fittedAt  time.Time

	// featLow/featHigh is the per-feature baseline envelope. Splits are
	// only ever drawn inside the training range, so the forest alone
	// cannot distinguish a coordinate just past the baseline maximum from
	// one a thousand times beyond it; scoring folds in how far the vector
	// leaves the envelope.
	featLow  []float64
	featHigh []float64

	full *forest
	subs map[string]*forest
}

// Fit builds a Model from a baseline population of feature vectors,
// assumed to be mostly non-manipulated content.
//
// Per-category sub-forests are fitted over each category's index range so
// sub-scores are computed the same way as the overall score, just over the
// category's slice. This is the documented attribution method; it is
// consistent across Fit, Score and persistence.
func Fit(vectors [][]float64, schema features.Schema, threshold float64, opts Options) (*Model, error) {
	if len(vectors) < minBaseline {
		return nil, fmt.Errorf("%w: got %d, need at least %d", ErrInsufficientBaseline, len(vectors), minBaseline)
	}
	for i, v := range vectors {
		if len(v) != schema.Length() {
			return nil, fmt.Errorf("%w: baseline vector %d has length %d, schema declares %d",
				ErrSchemaMismatch, i, len(v), schema.Length())
		}
	}
	opts = withDefaults(opts)

	featLow := make([]float64, schema.Length())
	featHigh := make([]float64, schema.Length())
	copy(featLow, vectors[0])
	copy(featHigh, vectors[0])
	for _, v := range vectors[1:] {
		for j, x := range v {
			if x < featLow[j] {
				featLow[j] = x
			}
			if x > featHigh[j] {
				featHigh[j] = x
			}
		}
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	full := buildForest(vectors, schema.Length(), opts.Trees, opts.SampleSize, rng)

	subs := make(map[string]*forest, len(schema.Categories()))
	for _, name := range schema.Categories() {
		r, _ := schema.Range(name)
		slices := make([][]float64, len(vectors))
		for i, v := range vectors {
			slices[i] = v[r.Offset : r.Offset+r.Length]
		}
		subs[name] = buildForest(slices, r.Length, opts.Trees, opts.SampleSize, rng)
	}

	// Calibration pivot: the (1-contamination) quantile of baseline raw
	// scores. A vector scoring at the pivot maps to confidence 0.5.
	raws := make([]float64, len(vectors))
	for i, v := range vectors {
		raws[i] = full.rawScore(v)
	}
	sort.Float64s(raws)
	pivot := quantile(raws, 1-opts.Contamination)

	ranges := make(map[string]features.Range, len(schema.Categories()))
	for _, name := range schema.Categories() {
		r, _ := schema.Range(name)
		ranges[name] = r
	}

	return &Model{
		schemaVersion: schema.Version(),
		vectorLength:  schema.Length(),
		categories:    schema.Categories(),
		ranges:        ranges,
		opts:          opts,
		pivot:         pivot,
		threshold:     threshold,
		fittedAt:      time.Now().UTC(),
		featLow:       featLow,
		featHigh:      featHigh,
		full:          full,
		subs:          subs,
	}, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Trees <= 0 {
		opts.Trees = def.Trees
	}
	if opts.SampleSize <= 1 {
		opts.SampleSize = def.SampleSize
	}
	if opts.Contamination <= 0 || opts.Contamination >= 1 {
		opts.Contamination = def.Contamination
	}
	if opts.Slope <= 0 {
		opts.Slope = def.Slope
	}
	return opts
}

// quantile returns the q quantile of sorted values by nearest-rank.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// calibrate maps a raw isolation score to [0, 1] confidence with a fixed
// logistic centered at the fitted pivot. Monotonic by construction.
func (m *Model) calibrate(raw float64) float64 {
	return 1 / (1 + math.Exp(-m.opts.Slope*(raw-m.pivot)))
}

// rangeExtremity measures how far the most extreme coordinate of vec sits
// outside the baseline envelope [lo, hi], squashed to [0, 1). In-envelope
// vectors score exactly 0, so calibration of baseline traffic is
// unaffected. The most extreme coordinate is used because a point far
// outside the training range on any single axis would isolate almost
// immediately if splits could be drawn out there.
func rangeExtremity(vec, lo, hi []float64) float64 {
	var worst float64
	for j, v := range vec {
		span := hi[j] - lo[j]
		if span <= 0 {
			span = 1
		}
		var d float64
		switch {
		case v < lo[j]:
			d = (lo[j] - v) / span
		case v > hi[j]:
			d = (v - hi[j]) / span
		}
		if o := d / (1 + d); o > worst {
			worst = o
		}
	}
	return worst
}

// adjusted pulls a raw isolation score toward 1 by the vector's
// out-of-envelope extremity. Strictly increasing in both arguments.
func adjusted(raw, extremity float64) float64 {
	return raw + (1-raw)*extremity
}

// Score computes the calibrated confidence, raw score and per-category
// sub-scores for one feature vector. Confidence is the calibrated,
// range-adjusted isolation score; Raw is the unadjusted forest score.
func (m *Model) Score(vec []float64) (Score, error) {
	if len(vec) != m.vectorLength {
		return Score{}, fmt.Errorf("%w: vector length %d, model fitted for %d (schema %s)",
			ErrSchemaMismatch, len(vec), m.vectorLength, m.schemaVersion)
	}

	raw := m.full.rawScore(vec)
	subScores := make(map[string]float64, len(m.categories))
	for _, name := range m.categories {
		r := m.ranges[name]
		slice := vec[r.Offset : r.Offset+r.Length]
		subRaw := m.subs[name].rawScore(slice)
		subExt := rangeExtremity(slice, m.featLow[r.Offset:r.Offset+r.Length], m.featHigh[r.Offset:r.Offset+r.Length])
		subScores[name] = m.calibrate(adjusted(subRaw, subExt))
	}

	return Score{
		Confidence: m.calibrate(adjusted(raw, rangeExtremity(vec, m.featLow, m.featHigh))),
		Raw:        raw,
		SubScores:  subScores,
	}, nil
}

// Decide applies the model's decision threshold to a confidence.
func (m *Model) Decide(confidence float64) bool {
	return confidence >= m.threshold
}

// Threshold returns the decision threshold.
func (m *Model) Threshold() float64 { return m.threshold }

// SchemaVersion returns the feature schema version the model was fit against.
func (m *Model) SchemaVersion() string { return m.schemaVersion }

// VectorLength returns the expected feature vector length.
func (m *Model) VectorLength() int { return m.vectorLength }

// FittedAt returns when the model was fitted.
func (m *Model) FittedAt() time.Time { return m.fittedAt }

// WithThreshold returns a copy of the model with a different decision
// threshold. The fitted parameters are shared; callers install the copy
// atomically, keeping the immutable-model discipline.
func (m *Model) WithThreshold(threshold float64) *Model {
	clone := *m
	clone.threshold = threshold
	return &clone
}
