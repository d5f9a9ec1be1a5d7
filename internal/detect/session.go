// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"sync"
	"time"
)

// SessionState is the lifecycle state of a detection session.
type SessionState int

const (
	// StateIdle means the session exists but has processed no frames.
	StateIdle SessionState = iota

	// StateActive means at least one frame has been processed.
	StateActive

	// StateClosed means the session ended; further frames are rejected.
	StateClosed
)

// String implements fmt.Stringer.
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is the per-stream detection context: a bounded rolling window of
// recent results with a windowed-mean smoothed confidence.
//
// Frames within one session are processed strictly sequentially; the
// session mutex is held for the whole frame pipeline, so two frames of the
// same stream can never interleave. Independent sessions run concurrently.
type Session struct {
	id string

	mu           sync.Mutex
	state        SessionState
	window       []Result
	windowSize   int
	lastActivity time.Time
	createdAt    time.Time
}

func newSession(id string, windowSize int) *Session {
	if windowSize < 1 {
		windowSize = 1
	}
	now := time.Now()
	return &Session{
		id:           id,
		state:        StateIdle,
		window:       make([]Result, 0, windowSize),
		windowSize:   windowSize,
		lastActivity: now,
		createdAt:    now,
	}
}

// ID returns the session handle.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// append records a result in the rolling window (oldest evicted) and
// returns the smoothed confidence. Caller must hold s.mu.
func (s *Session) append(r Result) float64 {
	if len(s.window) == s.windowSize {
		copy(s.window, s.window[1:])
		s.window = s.window[:s.windowSize-1]
	}
	s.window = append(s.window, r)
	s.state = StateActive
	s.lastActivity = time.Now()
	return s.smoothedLocked()
}

// smoothedLocked is the windowed mean confidence over non-failed results.
// Caller must hold s.mu.
func (s *Session) smoothedLocked() float64 {
	var sum float64
	n := 0
	for i := range s.window {
		if s.window[i].Failed {
			continue
		}
		sum += s.window[i].Confidence
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// SmoothedConfidence returns the windowed mean confidence.
func (s *Session) SmoothedConfidence() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.smoothedLocked()
}

// Results returns a copy of the rolling window in submission order.
func (s *Session) Results() []Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Result, len(s.window))
	copy(out, s.window)
	return out
}

// close transitions to CLOSED. Idempotent; returns false if already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return false
	}
	s.state = StateClosed
	return true
}

// idleSince reports the last activity time.
func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// SessionInfo is a read-only view of a session for API responses.
type SessionInfo struct {
	ID                 string       `json:"id"`
	State              string       `json:"state"`
	FramesInWindow     int          `json:"frames_in_window"`
	WindowSize         int          `json:"window_size"`
	SmoothedConfidence float64      `json:"smoothed_confidence"`
	CreatedAt          time.Time    `json:"created_at"`
	LastActivity       time.Time    `json:"last_activity"`
}

// Info returns a snapshot view of the session.
func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:                 s.id,
		State:              s.state.String(),
		FramesInWindow:     len(s.window),
		WindowSize:         s.windowSize,
		SmoothedConfidence: s.smoothedLocked(),
		CreatedAt:          s.createdAt,
		LastActivity:       s.lastActivity,
	}
}
