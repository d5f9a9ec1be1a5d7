// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"sync"
	"time"
)

// Stats aggregates process-wide detection counters. Updates come from
// many sessions completing concurrently, so all access goes through the
// mutex. Counters live for the process lifetime and reset only on restart.
type Stats struct {
	mu sync.RWMutex

	totalRequests int64
	totalFlagged  int64
	noFace        int64
	failed        int64

	latencySum    time.Duration
	confidenceSum float64
	scoredFrames  int64
}

// StatsSnapshot is a read-only copy of the aggregate counters.
type StatsSnapshot struct {
	TotalRequests int64 `json:"total_requests"`
	TotalFlagged  int64 `json:"total_flagged"`
	NoFaceCount   int64 `json:"no_face_count"`
	FailedCount   int64 `json:"failed_count"`

	// AvgLatencyMS is the running mean latency over all requests.
	AvgLatencyMS float64 `json:"avg_latency_ms"`

	// AvgConfidence is the running mean confidence over frames that were
	// actually scored (face found, not failed).
	AvgConfidence float64 `json:"avg_confidence"`

	// CatchRate is flagged/requests in [0, 1].
	CatchRate float64 `json:"catch_rate"`
}

// NewStats creates an empty aggregator.
func NewStats() *Stats {
	return &Stats{}
}

// recordResult posts one completed detection to the aggregate counters.
func (s *Stats) recordResult(r *Result, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalRequests++
	s.latencySum += latency

	switch {
	case r.Failed:
		s.failed++
	case !r.FaceFound:
		s.noFace++
	default:
		s.scoredFrames++
		s.confidenceSum += r.Confidence
		if r.Suspicious {
			s.totalFlagged++
		}
	}
}

// attempts returns the total request count, used for message rotation.
func (s *Stats) attempts() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalRequests
}

// Snapshot returns a consistent copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StatsSnapshot{
		TotalRequests: s.totalRequests,
		TotalFlagged:  s.totalFlagged,
		NoFaceCount:   s.noFace,
		FailedCount:   s.failed,
	}
	if s.totalRequests > 0 {
		snap.AvgLatencyMS = float64(s.latencySum.Microseconds()) / 1000 / float64(s.totalRequests)
		snap.CatchRate = float64(s.totalFlagged) / float64(s.totalRequests)
	}
	if s.scoredFrames > 0 {
		snap.AvgConfidence = s.confidenceSum / float64(s.scoredFrames)
	}
	return snap
}
