// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package detect

import (
	"context"
	"errors"
	"math/rand"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/unmasklabs/unmask/internal/anomaly"
	"github.com/unmasklabs/unmask/internal/facedet"
	"github.com/unmasklabs/unmask/internal/features"
	"github.com/unmasklabs/unmask/internal/frame"
)

// stubLocator returns a fixed region for every frame.
type stubLocator struct {
	region facedet.FaceRegion
	found  bool
}

func (s stubLocator) Locate(*frame.Frame) (facedet.FaceRegion, bool) {
	return s.region, s.found
}

// recordingBroadcaster captures broadcast message types.
type recordingBroadcaster struct {
	mu    sync.Mutex
	types []string
}

func (b *recordingBroadcaster) BroadcastJSON(messageType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.types = append(b.types, messageType)
}

func (b *recordingBroadcaster) sawType(messageType string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.types {
		if t == messageType {
			return true
		}
	}
	return false
}

const testFrameSide = 64

// testFrame builds a deterministic patterned frame; the seed varies the
// pattern so different frames produce different feature vectors.
func testFrame(t *testing.T, seed int) *frame.Frame {
	t.Helper()

	pix := make([]uint8, testFrameSide*testFrameSide*frame.Channels)
	i := 0
	for y := 0; y < testFrameSide; y++ {
		for x := 0; x < testFrameSide; x++ {
			pix[i] = uint8((x*3 + seed*11) % 256)
			pix[i+1] = uint8((y*5 + seed*7) % 256)
			pix[i+2] = uint8((x*7 + y*13 + seed*17) % 256)
			i += frame.Channels
		}
	}
	f, err := frame.New(testFrameSide, testFrameSide, pix)
	if err != nil {
		t.Fatalf("frame.New() error = %v", err)
	}
	return f
}

func fullFrameLocator() stubLocator {
	return stubLocator{
		region: facedet.FaceRegion{X: 0, Y: 0, Width: testFrameSide, Height: testFrameSide, Confidence: 10},
		found:  true,
	}
}

func newTestEngine(t *testing.T, locator facedet.Locator, broadcaster Broadcaster) *Engine {
	t.Helper()

	assembler, err := features.NewAssembler(features.DefaultExtractors()...)
	if err != nil {
		t.Fatalf("NewAssembler() error = %v", err)
	}

	engine, err := NewEngine(Config{
		WindowSize:         3,
		Threshold:          0.6,
		SessionIdleTimeout: time.Minute,
		FitOptions:         anomaly.Options{Trees: 25, SampleSize: 32, Contamination: 0.1, Seed: 42, Slope: 12},
	}, locator, assembler, broadcaster)
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return engine
}

// fitClusterAt installs a model over a tight synthetic baseline drawn
// with the given seed and scale.
func fitClusterAt(t *testing.T, e *Engine, seed int64, scale float64) {
	t.Helper()

	rng := rand.New(rand.NewSource(seed))
	dim := e.Schema().Length()
	vectors := make([][]float64, 40)
	for i := range vectors {
		v := make([]float64, dim)
		for j := range v {
			v[j] = rng.Float64() * scale
		}
		vectors[i] = v
	}
	if err := e.FitVectors(vectors); err != nil {
		t.Fatalf("FitVectors() error = %v", err)
	}
}

// fitCluster installs a model over a tight synthetic baseline, far away
// from anything real frames produce, so detections come back suspicious.
func fitCluster(t *testing.T, e *Engine) {
	t.Helper()
	fitClusterAt(t, e, 3, 0.01)
}

func TestDetectFrameModelNotReady(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)
	if engine.Ready() {
		t.Error("Ready() = true before any fit, want false")
	}

	_, err := engine.DetectFrame(context.Background(), testFrame(t, 1), "")
	if !errors.Is(err, ErrModelNotReady) {
		t.Errorf("DetectFrame() error = %v, want ErrModelNotReady", err)
	}
}

func TestDetectFrameNoFace(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, stubLocator{found: false}, nil)
	fitCluster(t, engine)

	result, err := engine.DetectFrame(context.Background(), testFrame(t, 1), "")
	if err != nil {
		t.Fatalf("DetectFrame() error = %v", err)
	}
	if result.FaceFound {
		t.Error("FaceFound = true, want false")
	}
	if result.Confidence != 0 || result.Suspicious {
		t.Errorf("no-face result should be neutral, got confidence %f suspicious %v",
			result.Confidence, result.Suspicious)
	}
	if result.Message == "" {
		t.Error("no-face result missing message")
	}

	snap := engine.Stats()
	if snap.NoFaceCount != 1 || snap.TotalRequests != 1 {
		t.Errorf("stats = %+v, want one no-face request", snap)
	}
}

func TestDetectFrameEphemeral(t *testing.T) {
	t.Parallel()

	broadcaster := &recordingBroadcaster{}
	engine := newTestEngine(t, fullFrameLocator(), broadcaster)
	fitCluster(t, engine)

	result, err := engine.DetectFrame(context.Background(), testFrame(t, 1), "")
	if err != nil {
		t.Fatalf("DetectFrame() error = %v", err)
	}

	if !result.FaceFound || result.Face == nil {
		t.Fatal("expected a located face")
	}
	if result.Confidence < 0 || result.Confidence > 1 {
		t.Errorf("Confidence = %f, want in [0, 1]", result.Confidence)
	}
	// A real frame is far outside the synthetic baseline cluster.
	if !result.Suspicious {
		t.Errorf("Suspicious = false for out-of-distribution frame (confidence %f)", result.Confidence)
	}
	// Ephemeral requests smooth over a window of one.
	if result.SmoothedConfidence != result.Confidence {
		t.Errorf("SmoothedConfidence = %f, want Confidence %f", result.SmoothedConfidence, result.Confidence)
	}
	if len(result.SubScores) != 5 {
		t.Errorf("SubScores has %d categories, want 5", len(result.SubScores))
	}
	if result.Message == "" {
		t.Error("result missing verdict message")
	}

	if !broadcaster.sawType("detection_alert") {
		t.Error("suspicious detection did not broadcast detection_alert")
	}
}

func TestSessionFlow(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)
	fitCluster(t, engine)

	id := engine.OpenSession()
	info, err := engine.SessionInfo(id)
	if err != nil {
		t.Fatalf("SessionInfo() error = %v", err)
	}
	if info.State != "idle" {
		t.Errorf("new session state = %q, want idle", info.State)
	}

	var confidences []float64
	for i := 0; i < 5; i++ {
		result, err := engine.DetectFrame(context.Background(), testFrame(t, i), id)
		if err != nil {
			t.Fatalf("DetectFrame(%d) error = %v", i, err)
		}
		confidences = append(confidences, result.Confidence)
	}

	info, err = engine.SessionInfo(id)
	if err != nil {
		t.Fatalf("SessionInfo() error = %v", err)
	}
	if info.State != "active" {
		t.Errorf("session state = %q, want active", info.State)
	}
	if info.FramesInWindow != 3 {
		t.Errorf("FramesInWindow = %d, want 3 (window size)", info.FramesInWindow)
	}
	wantSmoothed := (confidences[2] + confidences[3] + confidences[4]) / 3
	if diff := info.SmoothedConfidence - wantSmoothed; diff > 1e-12 || diff < -1e-12 {
		t.Errorf("SmoothedConfidence = %f, want %f (mean of last 3)", info.SmoothedConfidence, wantSmoothed)
	}

	requestsBefore := engine.Stats().TotalRequests
	if err := engine.CloseSession(id); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	// The closed session remains visible as a tombstone until reaped.
	info, err = engine.SessionInfo(id)
	if err != nil {
		t.Fatalf("SessionInfo() after close error = %v", err)
	}
	if info.State != "closed" {
		t.Errorf("session state after close = %q, want closed", info.State)
	}
	if _, err := engine.DetectFrame(context.Background(), testFrame(t, 9), id); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("DetectFrame on closed session error = %v, want ErrSessionClosed", err)
	}
	if got := engine.Stats().TotalRequests; got != requestsBefore {
		t.Errorf("rejected frame changed stats: %d -> %d", requestsBefore, got)
	}
}

func TestCloseSessionErrors(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	if err := engine.CloseSession("missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("CloseSession(unknown) error = %v, want ErrSessionNotFound", err)
	}

	id := engine.OpenSession()
	if err := engine.CloseSession(id); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	if err := engine.CloseSession(id); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("second CloseSession() error = %v, want ErrSessionClosed", err)
	}
}

func TestDetectFrameInvalidInput(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)
	fitCluster(t, engine)

	_, err := engine.DetectFrame(context.Background(), nil, "")
	if !errors.Is(err, frame.ErrInvalidFrame) {
		t.Fatalf("DetectFrame(nil) error = %v, want ErrInvalidFrame", err)
	}

	snap := engine.Stats()
	if snap.FailedCount != 1 {
		t.Errorf("FailedCount = %d, want 1 (invalid frame recorded, stream continues)", snap.FailedCount)
	}
}

func TestSetThreshold(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	if err := engine.SetThreshold(0.8); !errors.Is(err, ErrModelNotReady) {
		t.Errorf("SetThreshold() before fit error = %v, want ErrModelNotReady", err)
	}

	fitCluster(t, engine)
	before := engine.Model()

	if err := engine.SetThreshold(0.95); err != nil {
		t.Fatalf("SetThreshold() error = %v", err)
	}
	after := engine.Model()
	if after.Threshold() != 0.95 {
		t.Errorf("Threshold() = %f, want 0.95", after.Threshold())
	}
	if before == after {
		t.Error("SetThreshold should install a copy, not mutate in place")
	}
	if before.Threshold() != 0.6 {
		t.Errorf("previous model threshold changed to %f", before.Threshold())
	}

	// Out-of-range values clamp rather than error.
	if err := engine.SetThreshold(7); err != nil {
		t.Fatalf("SetThreshold(7) error = %v", err)
	}
	if got := engine.Model().Threshold(); got != 1 {
		t.Errorf("Threshold() after clamp = %f, want 1", got)
	}
}

// TestModelSwapConcurrentDetect exercises the install-then-swap contract:
// detections racing a model load observe either the old or the new model,
// never a partially installed one. Scoring is deterministic per model, so
// every confidence must exactly match one of the two fitted models.
func TestModelSwapConcurrentDetect(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)
	f := testFrame(t, 1)
	dir := t.TempDir()
	pathA := filepath.Join(dir, "a.json")
	pathB := filepath.Join(dir, "b.json")

	fitClusterAt(t, engine, 3, 0.01)
	if err := engine.SaveModel(pathA); err != nil {
		t.Fatalf("SaveModel(a) error = %v", err)
	}
	fitClusterAt(t, engine, 99, 0.5)
	if err := engine.SaveModel(pathB); err != nil {
		t.Fatalf("SaveModel(b) error = %v", err)
	}

	if err := engine.LoadModel(pathA); err != nil {
		t.Fatalf("LoadModel(a) error = %v", err)
	}
	resultA, err := engine.DetectFrame(context.Background(), f, "")
	if err != nil {
		t.Fatalf("DetectFrame() error = %v", err)
	}
	if err := engine.LoadModel(pathB); err != nil {
		t.Fatalf("LoadModel(b) error = %v", err)
	}
	resultB, err := engine.DetectFrame(context.Background(), f, "")
	if err != nil {
		t.Fatalf("DetectFrame() error = %v", err)
	}
	confA, confB := resultA.Confidence, resultB.Confidence
	if confA == confB {
		t.Fatalf("both models score %f; cannot distinguish swap states", confA)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if err := engine.LoadModel(pathA); err != nil {
				t.Errorf("LoadModel(a) error = %v", err)
				return
			}
			if err := engine.LoadModel(pathB); err != nil {
				t.Errorf("LoadModel(b) error = %v", err)
				return
			}
		}
	}()

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				result, err := engine.DetectFrame(context.Background(), f, "")
				if err != nil {
					t.Errorf("DetectFrame() error = %v", err)
					return
				}
				if result.Confidence != confA && result.Confidence != confB {
					t.Errorf("confidence %v matches neither installed model (%v / %v)",
						result.Confidence, confA, confB)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestFitBaselineFromFrames(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	frames := make([]*frame.Frame, 12)
	for i := range frames {
		frames[i] = testFrame(t, i)
	}

	n, err := engine.FitBaseline(context.Background(), frames)
	if err != nil {
		t.Fatalf("FitBaseline() error = %v", err)
	}
	if n != len(frames) {
		t.Errorf("FitBaseline() used %d frames, want %d", n, len(frames))
	}
	if !engine.Ready() {
		t.Fatal("Ready() = false after FitBaseline")
	}

	// Frames drawn from the baseline distribution should mostly pass.
	flagged := 0
	for i := range frames {
		result, err := engine.DetectFrame(context.Background(), frames[i], "")
		if err != nil {
			t.Fatalf("DetectFrame(%d) error = %v", i, err)
		}
		if result.Suspicious {
			flagged++
		}
	}
	if flagged > len(frames)/2 {
		t.Errorf("%d of %d baseline frames flagged, want at most half", flagged, len(frames))
	}
}

func TestFitBaselineNoFaces(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, stubLocator{found: false}, nil)

	frames := []*frame.Frame{testFrame(t, 0), testFrame(t, 1)}
	if _, err := engine.FitBaseline(context.Background(), frames); !errors.Is(err, anomaly.ErrInsufficientBaseline) {
		t.Errorf("FitBaseline() with no detectable faces error = %v, want ErrInsufficientBaseline", err)
	}
}

func TestReapIdleSessions(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	id := engine.OpenSession()
	engine.mu.RLock()
	sess := engine.sessions[id]
	engine.mu.RUnlock()

	sess.mu.Lock()
	sess.lastActivity = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	engine.reapIdle()

	if _, err := engine.SessionInfo(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SessionInfo() after reap error = %v, want ErrSessionNotFound", err)
	}
	if sess.State() != StateClosed {
		t.Errorf("reaped session state = %v, want closed", sess.State())
	}
}

func TestReapRemovesClosedTombstones(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	id := engine.OpenSession()
	if err := engine.CloseSession(id); err != nil {
		t.Fatalf("CloseSession() error = %v", err)
	}
	// Still resolvable while the tombstone lives.
	if _, err := engine.SessionInfo(id); err != nil {
		t.Fatalf("SessionInfo() on tombstone error = %v", err)
	}

	engine.mu.RLock()
	sess := engine.sessions[id]
	engine.mu.RUnlock()
	sess.mu.Lock()
	sess.lastActivity = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	engine.reapIdle()

	if _, err := engine.SessionInfo(id); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("SessionInfo() after tombstone reap error = %v, want ErrSessionNotFound", err)
	}
}

func TestReaperStopsOnCancel(t *testing.T) {
	t.Parallel()

	engine := newTestEngine(t, fullFrameLocator(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- engine.RunWithContext(ctx)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunWithContext did not stop after cancel")
	}
}
