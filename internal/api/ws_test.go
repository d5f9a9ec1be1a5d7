// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package api

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	wsint "github.com/unmasklabs/unmask/internal/websocket"
)

func dialDetect(t *testing.T, ts *testServer) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(ts.handler)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws/detect"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		server.Close()
		t.Fatalf("websocket dial error = %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readMessage(t *testing.T, conn *websocket.Conn) wsint.Message {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(5 * time.Second)); err != nil {
		t.Fatal(err)
	}
	var msg wsint.Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	return msg
}

func TestWebSocketDetectStream(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.fitModel(t)

	conn, cleanup := dialDetect(t, ts)
	defer cleanup()

	opened := readMessage(t, conn)
	if opened.Type != "session_opened" {
		t.Fatalf("first message type = %q, want session_opened", opened.Type)
	}
	payload, _ := opened.Data.(map[string]interface{})
	if id, _ := payload["session_id"].(string); id == "" {
		t.Fatal("session_opened missing session_id")
	}

	if err := conn.WriteJSON(wsint.Message{Type: wsint.MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != wsint.MessageTypePong {
		t.Errorf("ping reply type = %q, want pong", msg.Type)
	}

	frameMsg := wsint.Message{
		Type: wsint.MessageTypeFrame,
		Data: map[string]string{
			"image": base64.StdEncoding.EncodeToString(testImagePNG(t)),
		},
	}
	if err := conn.WriteJSON(frameMsg); err != nil {
		t.Fatal(err)
	}
	result := readMessage(t, conn)
	if result.Type != wsint.MessageTypeDetectionResult {
		t.Fatalf("frame reply type = %q, want detection_result", result.Type)
	}
	data, _ := result.Data.(map[string]interface{})
	if data["face_found"] != true {
		t.Errorf("face_found = %v, want true", data["face_found"])
	}
}

func TestWebSocketDetectBadFrame(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.fitModel(t)

	conn, cleanup := dialDetect(t, ts)
	defer cleanup()

	if msg := readMessage(t, conn); msg.Type != "session_opened" {
		t.Fatalf("first message type = %q, want session_opened", msg.Type)
	}

	// Undecodable payload gets an error message; the connection stays up.
	if err := conn.WriteJSON(wsint.Message{Type: wsint.MessageTypeFrame, Data: map[string]string{"image": "!!!"}}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != wsint.MessageTypeError {
		t.Errorf("bad frame reply type = %q, want error", msg.Type)
	}

	if err := conn.WriteJSON(wsint.Message{Type: "bogus"}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != wsint.MessageTypeError {
		t.Errorf("unknown type reply = %q, want error", msg.Type)
	}

	if err := conn.WriteJSON(wsint.Message{Type: wsint.MessageTypePing}); err != nil {
		t.Fatal(err)
	}
	if msg := readMessage(t, conn); msg.Type != wsint.MessageTypePong {
		t.Errorf("connection did not survive bad frames, got %q", msg.Type)
	}
}

func TestWebSocketOriginCheck(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	server := httptest.NewServer(ts.handler)
	defer server.Close()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"

	// CORS origins is "*" in the test server, so any origin connects.
	header := http.Header{"Origin": []string{"https://example.com"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial with origin error = %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	conn.Close()
}
