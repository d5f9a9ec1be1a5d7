// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

// Package services wraps application components as suture services.
// Each wrapper adapts a RunWithContext-style loop to suture.Service
// without the component importing suture itself.
package services

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Runner matches components exposing a supervised run loop. Satisfied by
// the websocket hub and the detection engine's session reaper.
type Runner interface {
	RunWithContext(ctx context.Context) error
}

// RunnerService wraps a Runner as a named suture service.
type RunnerService struct {
	runner Runner
	name   string
}

// NewRunnerService wraps a run loop under the given service name.
func NewRunnerService(name string, runner Runner) *RunnerService {
	return &RunnerService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *RunnerService) Serve(ctx context.Context) error {
	return s.runner.RunWithContext(ctx)
}

// String implements fmt.Stringer for supervisor logs.
func (s *RunnerService) String() string {
	return s.name
}

// HTTPService runs an http.Server under supervision, shutting it down
// gracefully when the context is canceled.
type HTTPService struct {
	server          *http.Server
	shutdownTimeout time.Duration
}

// NewHTTPService wraps an HTTP server as a suture service.
func NewHTTPService(server *http.Server, shutdownTimeout time.Duration) *HTTPService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service. ListenAndServe runs until Shutdown;
// ErrServerClosed on a canceled context is reported as ctx.Err() so the
// supervisor treats it as a normal stop rather than a crash.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return ctx.Err()
		}
		return err
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *HTTPService) String() string {
	return "http-server"
}

// StatsPusher periodically pushes a stats snapshot to dashboard clients.
type StatsPusher struct {
	interval time.Duration
	snapshot func() interface{}
	push     func(stats interface{})
}

// NewStatsPusher creates a pusher that calls snapshot every interval and
// hands the result to push.
func NewStatsPusher(interval time.Duration, snapshot func() interface{}, push func(stats interface{})) *StatsPusher {
	return &StatsPusher{interval: interval, snapshot: snapshot, push: push}
}

// Serve implements suture.Service.
func (s *StatsPusher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.push(s.snapshot())
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *StatsPusher) String() string {
	return "stats-pusher"
}
