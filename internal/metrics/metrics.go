// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Detection pipeline metrics
	FramesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmask_frames_processed_total",
			Help: "Total frames processed, by outcome (clean, suspicious, no_face, failed)",
		},
		[]string{"outcome"},
	)

	DetectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "unmask_detection_duration_seconds",
			Help:    "End-to-end duration of a single frame detection",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmask_feature_extraction_duration_seconds",
			Help:    "Duration of feature extraction per category",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
		[]string{"category"},
	)

	// Session metrics
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmask_active_sessions",
			Help: "Currently open detection sessions",
		},
	)

	SessionsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmask_sessions_closed_total",
			Help: "Sessions closed, by reason (explicit, idle_timeout)",
		},
		[]string{"reason"},
	)

	// Model metrics
	ModelSwaps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "unmask_model_swaps_total",
			Help: "Number of anomaly model installs (fit or load)",
		},
	)

	ModelTrees = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmask_model_trees",
			Help: "Isolation trees in the currently installed model",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmask_api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "unmask_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// WebSocket metrics
	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unmask_websocket_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	WebSocketMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unmask_websocket_messages_total",
			Help: "WebSocket messages, by direction and type",
		},
		[]string{"direction", "type"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordFrame records one frame detection outcome with its latency.
func RecordFrame(outcome string, duration time.Duration) {
	FramesProcessed.WithLabelValues(outcome).Inc()
	DetectionDuration.Observe(duration.Seconds())
}
