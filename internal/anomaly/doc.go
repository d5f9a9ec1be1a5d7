// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package anomaly implements the unsupervised one-class scorer that turns
// a feature vector into a calibrated manipulation confidence.
//
// The scorer is an isolation forest: an ensemble of trees built by random
// recursive partitioning of a baseline population assumed to be mostly
// genuine content. Points that isolate in few splits are unusual relative
// to that population; the raw score is 2^(-E[pathLength]/c(n)).
//
// Calibration maps the raw score to [0, 1] through a fixed logistic
// centered at the (1-contamination) quantile of the baseline's own raw
// scores. Tree splits only exist inside the training range, so before
// calibration the score is lifted by how far the vector leaves the
// baseline's per-feature envelope; in-envelope vectors are unaffected.
// Per-category sub-scores come from sub-forests fitted over each
// schema category's index range, so attribution uses the same scoring
// machinery as the overall verdict.
//
// A fitted Model is immutable and safe for unsynchronized concurrent
// reads. The serialized form is versioned and schema-bound; loading a
// model fitted against a different feature schema fails loudly.
package anomaly
