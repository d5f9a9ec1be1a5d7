// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unmasklabs/unmask/internal/frame"
	"github.com/unmasklabs/unmask/internal/logging"
	"github.com/unmasklabs/unmask/internal/metrics"
	ws "github.com/unmasklabs/unmask/internal/websocket"
)

// getUpgrader creates a WebSocket upgrader with origin checking and a
// handshake timeout against slow clients.
func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates connection origins against the
// configured CORS origins. Requests without an Origin header (native
// clients, curl) are allowed; browsers always send one.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	for _, allowed := range h.corsOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", origin).Msg("websocket connection rejected: origin not allowed")
	return false
}

// WebSocket upgrades a dashboard connection and registers it with the
// hub. The client receives detection alerts, stats updates and model
// events; it sends nothing but pings.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn)
	h.wsHub.Register <- client
	client.Start()
}

const (
	detectWriteWait = 10 * time.Second
	detectReadWait  = 90 * time.Second
)

// WebSocketDetect upgrades a streaming detection connection. Each
// connection owns one session: frames sent as base64 images come back as
// detection_result messages with window-smoothed confidence, and the
// session is closed when the connection ends.
func (h *Handler) WebSocketDetect(w http.ResponseWriter, r *http.Request) {
	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error().Err(err).Msg("websocket upgrade error")
		return
	}
	defer conn.Close()

	sessionID := h.engine.OpenSession()
	defer func() {
		if err := h.engine.CloseSession(sessionID); err != nil {
			logging.Warn().Err(err).Str("session_id", sessionID).Msg("failed to close detect session")
		}
	}()

	ctx := logging.ContextWithSessionID(r.Context(), sessionID)
	log := logging.Ctx(ctx)

	writeMsg := func(msg ws.Message) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(detectWriteWait)); err != nil {
			return false
		}
		if err := conn.WriteJSON(msg); err != nil {
			return false
		}
		metrics.WebSocketMessages.WithLabelValues("out", msg.Type).Inc()
		return true
	}

	if !writeMsg(ws.Message{Type: "session_opened", Data: map[string]string{"session_id": sessionID}}) {
		return
	}
	log.Info().Msg("detect websocket connected")

	for {
		if err := conn.SetReadDeadline(time.Now().Add(detectReadWait)); err != nil {
			return
		}

		var msg ws.Message
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("detect websocket closed unexpectedly")
			}
			return
		}
		metrics.WebSocketMessages.WithLabelValues("in", msg.Type).Inc()

		switch msg.Type {
		case ws.MessageTypePing:
			if !writeMsg(ws.Message{Type: ws.MessageTypePong}) {
				return
			}

		case ws.MessageTypeFrame:
			f, err := decodeFramePayload(msg.Data)
			if err != nil {
				if !writeMsg(ws.Message{Type: ws.MessageTypeError, Data: map[string]string{"message": err.Error()}}) {
					return
				}
				continue
			}

			result, err := h.engine.DetectFrame(ctx, f, sessionID)
			if err != nil {
				if !writeMsg(ws.Message{Type: ws.MessageTypeError, Data: map[string]string{"message": err.Error()}}) {
					return
				}
				continue
			}
			if !writeMsg(ws.Message{Type: ws.MessageTypeDetectionResult, Data: result}) {
				return
			}

		default:
			if !writeMsg(ws.Message{Type: ws.MessageTypeError, Data: map[string]string{"message": "unknown message type: " + msg.Type}}) {
				return
			}
		}
	}
}

// decodeFramePayload converts a frame message payload, an object with a
// base64-encoded "image" field, into a Frame.
func decodeFramePayload(data interface{}) (*frame.Frame, error) {
	payload, ok := data.(map[string]interface{})
	if !ok {
		return nil, errors.New("frame message requires an object payload")
	}
	encoded, ok := payload["image"].(string)
	if !ok || encoded == "" {
		return nil, errors.New("frame payload needs a base64 image field")
	}

	imgBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, err
	}
	return frame.FromImage(img)
}
