// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package main is the entry point for the Unmask detection server.
//
// Unmask analyzes facial imagery for manipulation artifacts: texture,
// edge, color, frequency and symmetry features are scored by an
// isolation-forest anomaly model calibrated against a baseline of
// authentic faces.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered Koanf v2 loading (defaults, YAML, UNMASK_* env)
//  2. Face locator: pigo cascade for face detection
//  3. Feature assembler: configured extractor set with a versioned schema
//  4. Detection engine: sessions, stats and the anomaly model
//  5. WebSocket hub: real-time alerts and stats for dashboards
//  6. HTTP server: REST API plus streaming detection WebSocket
//
// All long-running components run under a suture supervision tree and
// restart independently on failure.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the listener
// stops accepting connections, in-flight requests get a 10s drain
// window, and open detection sessions are discarded.
//
// # Example Usage
//
//	export UNMASK_FACE_CASCADE_PATH=cascade/facefinder
//	export UNMASK_MODEL_PATH=/data/unmask/model.json
//	export UNMASK_DETECTION_THRESHOLD=0.6
//	./unmask-server
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unmasklabs/unmask/internal/anomaly"
	"github.com/unmasklabs/unmask/internal/api"
	"github.com/unmasklabs/unmask/internal/config"
	"github.com/unmasklabs/unmask/internal/detect"
	"github.com/unmasklabs/unmask/internal/facedet"
	"github.com/unmasklabs/unmask/internal/features"
	"github.com/unmasklabs/unmask/internal/logging"
	"github.com/unmasklabs/unmask/internal/supervisor"
	"github.com/unmasklabs/unmask/internal/supervisor/services"
	ws "github.com/unmasklabs/unmask/internal/websocket"
)

func main() {
	cfg, err := config.LoadWithKoanf()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("cascade", cfg.Face.CascadePath).
		Str("model_path", cfg.Model.Path).
		Float64("threshold", cfg.Detection.Threshold).
		Msg("starting unmask")

	locator, err := facedet.NewPigoLocator(facedet.PigoConfig{
		CascadePath:   cfg.Face.CascadePath,
		MinConfidence: cfg.Face.MinConfidence,
		MinSize:       cfg.Face.MinSize,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize face locator")
	}

	extractors, err := features.ExtractorsFor(cfg.Detection.Extractors)
	if err != nil {
		logging.Fatal().Err(err).Msg("invalid extractor configuration")
	}
	assembler, err := features.NewAssembler(extractors...)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to build feature assembler")
	}
	logging.Info().
		Str("schema", assembler.Schema().Version()).
		Int("dimensions", assembler.Schema().Length()).
		Msg("feature schema ready")

	wsHub := ws.NewHub()

	engine, err := detect.NewEngine(detect.Config{
		WindowSize:         cfg.Detection.WindowSize,
		Threshold:          cfg.Detection.Threshold,
		SessionIdleTimeout: cfg.Detection.SessionIdleTimeout,
		FitOptions: anomaly.Options{
			Trees:         cfg.Model.Trees,
			SampleSize:    cfg.Model.SampleSize,
			Contamination: cfg.Model.Contamination,
			Seed:          cfg.Model.Seed,
			Slope:         cfg.Model.Slope,
		},
	}, locator, assembler, wsHub)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create detection engine")
	}

	if cfg.Model.Path != "" {
		if _, statErr := os.Stat(cfg.Model.Path); statErr == nil {
			if err := engine.LoadModel(cfg.Model.Path); err != nil {
				logging.Fatal().Err(err).Str("path", cfg.Model.Path).Msg("failed to load persisted model")
			}
		} else {
			logging.Warn().Str("path", cfg.Model.Path).
				Msg("no persisted model found; detection unavailable until a model is fitted")
		}
	}

	handler := api.NewHandler(engine, wsHub, cfg.Model.Path, cfg.Security.MaxUploadBytes, cfg.Security.CORSOrigins)
	router := api.NewRouter(handler, cfg.Security)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	tree.AddDetectionService(services.NewRunnerService("websocket-hub", wsHub))
	tree.AddDetectionService(services.NewRunnerService("session-reaper", engine))
	if cfg.Detection.StatsBroadcastInterval > 0 {
		tree.AddDetectionService(services.NewStatsPusher(
			cfg.Detection.StatsBroadcastInterval,
			func() interface{} { return engine.Stats() },
			wsHub.BroadcastStatsUpdate,
		))
	}
	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("application stopped gracefully")
}
