// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"time"

	"github.com/unmasklabs/unmask/internal/facedet"
)

// Result is the outcome of analyzing one frame. It is produced once and
// never mutated afterward.
type Result struct {
	// Suspicious is the thresholded per-frame verdict.
	Suspicious bool `json:"is_suspicious"`

	// Confidence is the calibrated manipulation confidence in [0, 1].
	// Zero when no face was found or the frame failed.
	Confidence float64 `json:"confidence"`

	// RawScore is the uncalibrated isolation score, kept for debugging
	// and calibration analysis.
	RawScore float64 `json:"raw_score,omitempty"`

	// SubScores holds per-category confidences keyed by extractor name
	// (texture, edges, color, frequency, symmetry) for explainability.
	SubScores map[string]float64 `json:"sub_scores,omitempty"`

	// FaceFound reports whether a face was located. False is a normal
	// outcome, not an error.
	FaceFound bool `json:"face_found"`

	// Face is the located region, present only when FaceFound.
	Face *facedet.FaceRegion `json:"face,omitempty"`

	// Failed marks a frame that errored inside a stream session; the
	// session continues past it.
	Failed bool `json:"failed,omitempty"`

	// SmoothedConfidence is the windowed mean over the session's recent
	// results. For single-image requests (window size 1) it equals
	// Confidence.
	SmoothedConfidence float64 `json:"smoothed_confidence"`

	// Message is the user-facing verdict line.
	Message string `json:"message"`

	// LatencyMS is the end-to-end processing time for this frame.
	LatencyMS float64 `json:"latency_ms"`

	// Timestamp is when the result was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Verdict messages, rotated deterministically by the process-wide attempt
// counter so repeated identical requests still feel alive in the demo UI.
var (
	caughtMessages = []string{
		"Caught you cheating! Nice try though.",
		"Your deepfake skills need work.",
		"Manipulation detected - better luck next time!",
		"AI: 1, Cheater: 0",
		"Your fake is no match for our detection!",
	}

	cleanMessages = []string{
		"Looks real to me... for now.",
		"You passed this time, but we're watching!",
		"Clean image detected - or are you just that good?",
		"No cheating detected... yet.",
		"Impressive! Either real or very well done.",
	}
)

// verdictMessage picks the message for an attempt.
func verdictMessage(suspicious bool, attempt int64) string {
	if suspicious {
		return caughtMessages[attempt%int64(len(caughtMessages))]
	}
	return cleanMessages[attempt%int64(len(cleanMessages))]
}

// noFaceMessage is returned when the locator finds nothing.
const noFaceMessage = "No face detected - nice try hiding!"
