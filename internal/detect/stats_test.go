// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestStatsSnapshot(t *testing.T) {
	t.Parallel()

	s := NewStats()

	s.recordResult(&Result{FaceFound: true, Suspicious: true, Confidence: 0.9}, 10*time.Millisecond)
	s.recordResult(&Result{FaceFound: true, Confidence: 0.3}, 20*time.Millisecond)
	s.recordResult(&Result{FaceFound: false}, 6*time.Millisecond)
	s.recordResult(&Result{Failed: true}, 4*time.Millisecond)

	snap := s.Snapshot()
	if snap.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", snap.TotalRequests)
	}
	if snap.TotalFlagged != 1 {
		t.Errorf("TotalFlagged = %d, want 1", snap.TotalFlagged)
	}
	if snap.NoFaceCount != 1 {
		t.Errorf("NoFaceCount = %d, want 1", snap.NoFaceCount)
	}
	if snap.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1", snap.FailedCount)
	}

	if want := 10.0; math.Abs(snap.AvgLatencyMS-want) > 1e-9 {
		t.Errorf("AvgLatencyMS = %f, want %f", snap.AvgLatencyMS, want)
	}
	// Confidence averages only over scored frames (face found, not failed).
	if want := (0.9 + 0.3) / 2; math.Abs(snap.AvgConfidence-want) > 1e-12 {
		t.Errorf("AvgConfidence = %f, want %f", snap.AvgConfidence, want)
	}
	if want := 0.25; math.Abs(snap.CatchRate-want) > 1e-12 {
		t.Errorf("CatchRate = %f, want %f", snap.CatchRate, want)
	}
}

func TestStatsEmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := NewStats().Snapshot()
	if snap.TotalRequests != 0 || snap.AvgLatencyMS != 0 || snap.AvgConfidence != 0 || snap.CatchRate != 0 {
		t.Errorf("empty snapshot should be all zero, got %+v", snap)
	}
}

func TestStatsConcurrentUpdates(t *testing.T) {
	t.Parallel()

	s := NewStats()
	const goroutines = 8
	const perGoroutine = 100

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				s.recordResult(&Result{FaceFound: true, Confidence: 0.5}, time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	if want := int64(goroutines * perGoroutine); snap.TotalRequests != want {
		t.Errorf("TotalRequests = %d, want %d", snap.TotalRequests, want)
	}
}
