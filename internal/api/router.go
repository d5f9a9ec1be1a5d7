// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/unmasklabs/unmask/internal/config"
	"github.com/unmasklabs/unmask/internal/logging"
	"github.com/unmasklabs/unmask/internal/metrics"
)

// Router assembles the HTTP routing tree.
type Router struct {
	handler  *Handler
	security config.SecurityConfig
}

// NewRouter creates a router over the given handler set.
func NewRouter(handler *Handler, security config.SecurityConfig) *Router {
	return &Router{handler: handler, security: security}
}

// Setup configures all HTTP routes.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   router.security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints get permissive rate limiting for monitoring.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", router.handler.Health)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		if !router.security.RateLimitDisabled {
			r.Use(httprate.LimitByIP(router.security.RateLimitReqs, router.security.RateLimitWindow))
		}
		r.Use(prometheusMetrics)

		r.Post("/detect/image", router.handler.DetectImage)
		r.Get("/stats", router.handler.Stats)

		r.Post("/sessions", router.handler.SessionOpen)
		r.Get("/sessions/{sessionID}", router.handler.SessionInfo)
		r.Delete("/sessions/{sessionID}", router.handler.SessionClose)

		r.Get("/model", router.handler.ModelInfo)
		r.Post("/model/fit", router.handler.ModelFit)
		r.Post("/model/load", router.handler.ModelLoad)
		r.Post("/model/save", router.handler.ModelSave)
		r.Post("/model/threshold", router.handler.ModelThreshold)

		r.Get("/ws", router.handler.WebSocket)
		r.Get("/ws/detect", router.handler.WebSocketDetect)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// requestID assigns every request a UUID, exposed via X-Request-ID and
// the logging context.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = logging.GenerateRequestID()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithRequestID(r.Context(), id)))
	})
}

// prometheusMetrics records request counts and durations per route
// pattern, using chi's pattern rather than the raw path to bound label
// cardinality.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		metrics.RecordAPIRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}
