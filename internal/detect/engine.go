// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/unmasklabs/unmask/internal/anomaly"
	"github.com/unmasklabs/unmask/internal/facedet"
	"github.com/unmasklabs/unmask/internal/features"
	"github.com/unmasklabs/unmask/internal/frame"
	"github.com/unmasklabs/unmask/internal/logging"
	"github.com/unmasklabs/unmask/internal/metrics"
)

// Broadcaster pushes detection events to WebSocket dashboard clients.
type Broadcaster interface {
	BroadcastJSON(messageType string, data interface{})
}

// Config configures the detection engine. All values are validated at
// construction rather than scattered as magic constants.
type Config struct {
	// WindowSize is the rolling window length for stream sessions.
	WindowSize int

	// Threshold is the decision threshold on calibrated confidence.
	Threshold float64

	// SessionIdleTimeout closes sessions with no frames for this long.
	SessionIdleTimeout time.Duration

	// FitOptions configures anomaly model fitting.
	FitOptions anomaly.Options
}

// DefaultConfig returns engine defaults matching the demo deployment.
func DefaultConfig() Config {
	return Config{
		WindowSize:         10,
		Threshold:          0.6,
		SessionIdleTimeout: 2 * time.Minute,
		FitOptions:         anomaly.DefaultOptions(),
	}
}

func (c Config) validate() error {
	if c.WindowSize < 1 {
		return fmt.Errorf("window size must be >= 1, got %d", c.WindowSize)
	}
	if c.Threshold < 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %f", c.Threshold)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("session idle timeout must be positive, got %s", c.SessionIdleTimeout)
	}
	return nil
}

// Engine is the detection orchestrator: locator, extractors, anomaly
// scorer, sessions and stats behind one transport-agnostic API.
//
// The anomaly model is held in an atomic pointer. Fitting or loading
// builds a complete new model and installs it with a single swap, so an
// in-flight detection observes either the old or the new model, never a
// partially updated one.
type Engine struct {
	cfg       Config
	locator   facedet.Locator
	assembler *features.Assembler

	model atomic.Pointer[anomaly.Model]
	stats *Stats

	broadcaster Broadcaster

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewEngine creates a detection engine. The broadcaster may be nil when
// no dashboard push channel exists (tests, CLI tools).
func NewEngine(cfg Config, locator facedet.Locator, assembler *features.Assembler, broadcaster Broadcaster) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if locator == nil {
		return nil, fmt.Errorf("engine config: nil face locator")
	}
	if assembler == nil {
		return nil, fmt.Errorf("engine config: nil feature assembler")
	}

	assembler.SetObserver(func(category string, elapsed time.Duration) {
		metrics.ExtractionDuration.WithLabelValues(category).Observe(elapsed.Seconds())
	})

	return &Engine{
		cfg:         cfg,
		locator:     locator,
		assembler:   assembler,
		stats:       NewStats(),
		broadcaster: broadcaster,
		sessions:    make(map[string]*Session),
	}, nil
}

// Schema returns the feature schema the engine assembles vectors with.
func (e *Engine) Schema() features.Schema { return e.assembler.Schema() }

// Stats returns a snapshot of the process-wide counters.
func (e *Engine) Stats() StatsSnapshot { return e.stats.Snapshot() }

// Ready reports whether an anomaly model is installed.
func (e *Engine) Ready() bool { return e.model.Load() != nil }

// Model returns the currently installed model, or nil.
func (e *Engine) Model() *anomaly.Model { return e.model.Load() }

// install swaps in a new model atomically.
func (e *Engine) install(m *anomaly.Model) {
	e.model.Store(m)
	metrics.ModelSwaps.Inc()
	metrics.ModelTrees.Set(float64(e.cfg.FitOptions.Trees))
	logging.Info().
		Str("schema", m.SchemaVersion()).
		Float64("threshold", m.Threshold()).
		Time("fitted_at", m.FittedAt()).
		Msg("anomaly model installed")
}

// DetectFrame analyzes one frame.
//
// With a sessionID, the frame is processed strictly in order within that
// session and the result is appended to its rolling window. With an empty
// sessionID an ephemeral window-1 session is used: the IDLE, ACTIVE and
// CLOSED transitions all happen within this call and no state survives it.
func (e *Engine) DetectFrame(ctx context.Context, f *frame.Frame, sessionID string) (*Result, error) {
	var sess *Session
	if sessionID != "" {
		var err error
		sess, err = e.session(sessionID)
		if err != nil {
			return nil, err
		}
		// Hold the session lock for the whole pipeline: frames of one
		// stream never interleave. Cancellation is honored between
		// frames only, never mid-frame.
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.state == StateClosed {
			return nil, fmt.Errorf("%w: %s", ErrSessionClosed, sessionID)
		}
	} else {
		sess = newSession("", 1)
		sess.mu.Lock()
		defer sess.mu.Unlock()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := e.analyze(f)
	latency := time.Since(start)

	if err != nil {
		// Frame-level input errors are recorded so the stream continues;
		// configuration errors (schema, missing model) are not counted
		// against the window.
		if isFrameError(err) {
			failed := Result{Failed: true, Timestamp: time.Now().UTC(), LatencyMS: ms(latency)}
			failed.SmoothedConfidence = sess.append(failed)
			e.stats.recordResult(&failed, latency)
			metrics.RecordFrame("failed", latency)
		}
		return nil, err
	}

	result.LatencyMS = ms(latency)
	result.SmoothedConfidence = sess.append(*result)
	e.stats.recordResult(result, latency)
	metrics.RecordFrame(outcome(result), latency)

	if result.Suspicious && e.broadcaster != nil {
		e.broadcaster.BroadcastJSON("detection_alert", result)
	}

	return result, nil
}

// analyze runs the stateless pipeline: validate, locate, crop, extract,
// score. Session and stats bookkeeping stay in DetectFrame.
func (e *Engine) analyze(f *frame.Frame) (*Result, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	model := e.model.Load()
	if model == nil {
		return nil, ErrModelNotReady
	}

	now := time.Now().UTC()

	region, found := e.locator.Locate(f)
	if !found {
		// Idempotent no-op path: no extractor or scorer runs.
		return &Result{
			FaceFound: false,
			Message:   noFaceMessage,
			Timestamp: now,
		}, nil
	}

	face, err := f.Crop(region.Rect())
	if err != nil {
		return nil, err
	}
	face, err = face.Resize(features.CropSize, features.CropSize)
	if err != nil {
		return nil, err
	}

	vec, err := e.assembler.Assemble(face)
	if err != nil {
		return nil, err
	}

	score, err := model.Score(vec)
	if err != nil {
		return nil, err
	}

	suspicious := model.Decide(score.Confidence)
	return &Result{
		Suspicious: suspicious,
		Confidence: score.Confidence,
		RawScore:   score.Raw,
		SubScores:  score.SubScores,
		FaceFound:  true,
		Face:       &region,
		Message:    verdictMessage(suspicious, e.stats.attempts()),
		Timestamp:  now,
	}, nil
}

func isFrameError(err error) bool {
	return errors.Is(err, frame.ErrInvalidFrame)
}

func outcome(r *Result) string {
	switch {
	case !r.FaceFound:
		return "no_face"
	case r.Suspicious:
		return "suspicious"
	default:
		return "clean"
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// OpenSession creates a new stream session and returns its handle.
func (e *Engine) OpenSession() string {
	id := uuid.New().String()
	sess := newSession(id, e.cfg.WindowSize)

	e.mu.Lock()
	e.sessions[id] = sess
	e.mu.Unlock()

	metrics.ActiveSessions.Inc()
	logging.Info().Str("session_id", id).Int("window", e.cfg.WindowSize).Msg("session opened")
	return id
}

// CloseSession ends a stream session. The closed session stays in the
// registry as a tombstone until the idle reaper removes it, so frames
// arriving after the close are rejected with ErrSessionClosed while a
// handle that never existed reports ErrSessionNotFound. Closing twice is
// an ErrSessionClosed error.
func (e *Engine) CloseSession(id string) error {
	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if !sess.close() {
		return fmt.Errorf("%w: %s", ErrSessionClosed, id)
	}
	metrics.ActiveSessions.Dec()
	metrics.SessionsClosed.WithLabelValues("explicit").Inc()
	logging.Info().Str("session_id", id).Msg("session closed")
	return nil
}

// SessionInfo returns a read-only view of a session.
func (e *Engine) SessionInfo(id string) (SessionInfo, error) {
	sess, err := e.session(id)
	if err != nil {
		return SessionInfo{}, err
	}
	return sess.Info(), nil
}

func (e *Engine) session(id string) (*Session, error) {
	e.mu.RLock()
	sess, ok := e.sessions[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sess, nil
}

// RunWithContext reaps idle sessions until the context is canceled. It is
// designed to run under suture supervision.
func (e *Engine) RunWithContext(ctx context.Context) error {
	interval := e.cfg.SessionIdleTimeout / 2
	if interval < time.Second {
		interval = time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Info().Dur("idle_timeout", e.cfg.SessionIdleTimeout).Msg("session reaper started")
	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("session reaper stopped")
			return ctx.Err()
		case <-ticker.C:
			e.reapIdle()
		}
	}
}

// reapIdle removes sessions with no recent activity. Closed tombstones
// left behind by CloseSession age out here the same way; close() is a
// no-op for them so they are not double-counted.
func (e *Engine) reapIdle() {
	cutoff := time.Now().Add(-e.cfg.SessionIdleTimeout)

	e.mu.Lock()
	var expired []*Session
	for id, sess := range e.sessions {
		if sess.idleSince().Before(cutoff) {
			delete(e.sessions, id)
			expired = append(expired, sess)
		}
	}
	e.mu.Unlock()

	for _, sess := range expired {
		if sess.close() {
			metrics.ActiveSessions.Dec()
			metrics.SessionsClosed.WithLabelValues("idle_timeout").Inc()
			logging.Info().Str("session_id", sess.ID()).Msg("session reaped after idle timeout")
		}
	}
}

// FitVectors fits a new anomaly model from pre-assembled baseline vectors
// and installs it atomically.
func (e *Engine) FitVectors(vectors [][]float64) error {
	model, err := anomaly.Fit(vectors, e.assembler.Schema(), e.cfg.Threshold, e.cfg.FitOptions)
	if err != nil {
		return err
	}
	e.install(model)
	return nil
}

// FitBaseline extracts feature vectors from baseline frames (skipping
// frames without a detectable face) and fits a new model from them.
// Returns how many frames contributed.
func (e *Engine) FitBaseline(ctx context.Context, frames []*frame.Frame) (int, error) {
	vectors := make([][]float64, 0, len(frames))
	for _, f := range frames {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := f.Validate(); err != nil {
			continue
		}
		region, found := e.locator.Locate(f)
		if !found {
			continue
		}
		face, err := f.Crop(region.Rect())
		if err != nil {
			continue
		}
		face, err = face.Resize(features.CropSize, features.CropSize)
		if err != nil {
			continue
		}
		vec, err := e.assembler.Assemble(face)
		if err != nil {
			return 0, err // schema violation is fatal, not skippable
		}
		vectors = append(vectors, vec)
	}

	if err := e.FitVectors(vectors); err != nil {
		return 0, err
	}
	return len(vectors), nil
}

// LoadModel reads a persisted model, verifies its schema against the
// engine's assembler and installs it atomically.
func (e *Engine) LoadModel(path string) error {
	model, err := anomaly.Load(path, e.assembler.Schema())
	if err != nil {
		return err
	}
	e.install(model)
	return nil
}

// SaveModel persists the installed model.
func (e *Engine) SaveModel(path string) error {
	model := e.model.Load()
	if model == nil {
		return ErrModelNotReady
	}
	return model.Save(path)
}

// SetThreshold installs a copy of the current model with a new decision
// threshold, clamped to [0, 1].
func (e *Engine) SetThreshold(threshold float64) error {
	model := e.model.Load()
	if model == nil {
		return ErrModelNotReady
	}
	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}
	e.model.Store(model.WithThreshold(threshold))
	logging.Info().Float64("threshold", threshold).Msg("decision threshold updated")
	return nil
}
