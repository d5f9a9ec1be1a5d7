// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/unmasklabs/unmask/internal/anomaly"
	"github.com/unmasklabs/unmask/internal/detect"
	"github.com/unmasklabs/unmask/internal/frame"
	"github.com/unmasklabs/unmask/internal/logging"
	ws "github.com/unmasklabs/unmask/internal/websocket"
)

// Handler holds the dependencies for all API endpoints.
type Handler struct {
	engine      *detect.Engine
	wsHub       *ws.Hub
	validate    *validator.Validate
	modelPath   string
	maxUpload   int64
	corsOrigins []string
	startTime   time.Time
}

// NewHandler creates the API handler set.
func NewHandler(engine *detect.Engine, hub *ws.Hub, modelPath string, maxUpload int64, corsOrigins []string) *Handler {
	return &Handler{
		engine:      engine,
		wsHub:       hub,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		modelPath:   modelPath,
		maxUpload:   maxUpload,
		corsOrigins: corsOrigins,
		startTime:   time.Now(),
	}
}

// Health reports liveness plus model readiness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status":         "ok",
		"model_ready":    h.engine.Ready(),
		"schema":         h.engine.Schema().Version(),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}

// HealthReady returns 503 until a model is installed, for readiness probes.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.engine.Ready() {
		NewResponseWriter(w, r).ServiceUnavailable(ErrCodeModelNotReady, "no anomaly model installed")
		return
	}
	WriteSuccess(w, r, map[string]string{"status": "ready"})
}

// readFrame decodes the request body (raw image bytes or a multipart
// "image" field) into a frame.
func (h *Handler) readFrame(w http.ResponseWriter, r *http.Request) (*frame.Frame, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var reader io.Reader = r.Body
	if mf, _, err := r.FormFile("image"); err == nil {
		defer mf.Close()
		reader = mf
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return frame.FromImage(img)
}

// DetectImage analyzes a single uploaded image. An optional session_id
// query parameter routes the frame through an open stream session.
func (h *Handler) DetectImage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	f, err := h.readFrame(w, r)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			rw.PayloadTooLarge("image exceeds upload limit")
			return
		}
		rw.UnsupportedMedia("could not decode image: JPEG, PNG and GIF are supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	ctx := r.Context()
	if sessionID != "" {
		ctx = logging.ContextWithSessionID(ctx, sessionID)
	}

	result, err := h.engine.DetectFrame(ctx, f, sessionID)
	if err != nil {
		h.writeDetectError(rw, err)
		return
	}
	rw.Success(result)
}

func (h *Handler) writeDetectError(rw *ResponseWriter, err error) {
	switch {
	case errors.Is(err, detect.ErrModelNotReady):
		rw.ServiceUnavailable(ErrCodeModelNotReady, "no anomaly model installed; fit or load one first")
	case errors.Is(err, detect.ErrSessionNotFound):
		rw.NotFound("session not found")
	case errors.Is(err, detect.ErrSessionClosed):
		rw.Conflict("session is closed")
	case errors.Is(err, frame.ErrInvalidFrame):
		rw.BadRequest("invalid frame: " + err.Error())
	default:
		logging.Error().Err(err).Msg("detection failed")
		rw.InternalError("detection failed")
	}
}

// Stats returns the process-wide detection counters.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	snap := h.engine.Stats()
	WriteSuccess(w, r, map[string]interface{}{
		"stats":             snap,
		"catch_rate":        fmt.Sprintf("%.1f%%", snap.CatchRate*100),
		"websocket_clients": h.wsHub.GetClientCount(),
	})
}

// SessionOpen creates a new stream detection session.
func (h *Handler) SessionOpen(w http.ResponseWriter, r *http.Request) {
	id := h.engine.OpenSession()
	NewResponseWriter(w, r).Created(map[string]string{"session_id": id})
}

// SessionInfo returns the current state of a session.
func (h *Handler) SessionInfo(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "sessionID")

	info, err := h.engine.SessionInfo(id)
	if err != nil {
		rw.NotFound("session not found")
		return
	}
	rw.Success(info)
}

// SessionClose ends a stream detection session.
func (h *Handler) SessionClose(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id := chi.URLParam(r, "sessionID")

	if err := h.engine.CloseSession(id); err != nil {
		if errors.Is(err, detect.ErrSessionClosed) {
			rw.Conflict("session is already closed")
			return
		}
		rw.NotFound("session not found")
		return
	}
	rw.NoContent()
}

// thresholdRequest is the body of POST /model/threshold.
type thresholdRequest struct {
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}

// ModelThreshold updates the decision threshold of the installed model.
func (h *Handler) ModelThreshold(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req thresholdRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationError("threshold must be in [0, 1]", err.Error())
		return
	}

	if err := h.engine.SetThreshold(req.Threshold); err != nil {
		rw.ServiceUnavailable(ErrCodeModelNotReady, "no anomaly model installed")
		return
	}
	h.notifyModelUpdated()
	rw.Success(map[string]float64{"threshold": req.Threshold})
}

// fitRequest is the body of POST /model/fit: pre-assembled baseline
// feature vectors matching the engine's schema.
type fitRequest struct {
	Vectors [][]float64 `json:"vectors" validate:"required,min=8"`
}

// ModelFit fits a new anomaly model from baseline vectors and installs
// it atomically. In-flight detections keep using the previous model.
func (h *Handler) ModelFit(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	body := http.MaxBytesReader(w, r.Body, h.maxUpload)
	var req fitRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		rw.BadRequest("invalid JSON body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		rw.ValidationError("at least 8 baseline vectors are required", err.Error())
		return
	}

	if err := h.engine.FitVectors(req.Vectors); err != nil {
		switch {
		case errors.Is(err, anomaly.ErrSchemaMismatch):
			rw.BadRequest(err.Error())
		case errors.Is(err, anomaly.ErrInsufficientBaseline):
			rw.BadRequest(err.Error())
		default:
			logging.Error().Err(err).Msg("model fit failed")
			rw.InternalError("model fit failed")
		}
		return
	}

	if h.modelPath != "" {
		if err := h.engine.SaveModel(h.modelPath); err != nil {
			logging.Error().Err(err).Str("path", h.modelPath).Msg("failed to persist model after fit")
		}
	}
	h.notifyModelUpdated()

	rw.Success(map[string]interface{}{
		"fitted":    true,
		"vectors":   len(req.Vectors),
		"schema":    h.engine.Schema().Version(),
		"threshold": h.engine.Model().Threshold(),
	})
}

// ModelLoad re-reads the persisted model from disk and installs it.
func (h *Handler) ModelLoad(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.modelPath == "" {
		rw.BadRequest("no model path configured")
		return
	}

	if err := h.engine.LoadModel(h.modelPath); err != nil {
		switch {
		case errors.Is(err, anomaly.ErrSchemaMismatch):
			rw.Conflict("persisted model does not match the configured feature schema")
		default:
			logging.Error().Err(err).Str("path", h.modelPath).Msg("model load failed")
			rw.InternalError("model load failed")
		}
		return
	}
	h.notifyModelUpdated()
	rw.Success(map[string]string{"status": "loaded", "path": h.modelPath})
}

// ModelSave persists the installed model to the configured path.
func (h *Handler) ModelSave(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.modelPath == "" {
		rw.BadRequest("no model path configured")
		return
	}

	if err := h.engine.SaveModel(h.modelPath); err != nil {
		switch {
		case errors.Is(err, detect.ErrModelNotReady):
			rw.ServiceUnavailable(ErrCodeModelNotReady, "no anomaly model installed")
		default:
			logging.Error().Err(err).Str("path", h.modelPath).Msg("model save failed")
			rw.InternalError("model save failed")
		}
		return
	}
	rw.Success(map[string]string{"status": "saved", "path": h.modelPath})
}

// ModelInfo describes the installed model.
func (h *Handler) ModelInfo(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	model := h.engine.Model()
	if model == nil {
		rw.ServiceUnavailable(ErrCodeModelNotReady, "no anomaly model installed")
		return
	}
	rw.Success(map[string]interface{}{
		"schema":        model.SchemaVersion(),
		"vector_length": model.VectorLength(),
		"threshold":     model.Threshold(),
		"fitted_at":     model.FittedAt(),
	})
}

func (h *Handler) notifyModelUpdated() {
	if model := h.engine.Model(); model != nil {
		h.wsHub.BroadcastModelUpdated(model.SchemaVersion(), model.Threshold())
	}
}
