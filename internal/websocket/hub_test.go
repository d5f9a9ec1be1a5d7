// Unmask - Facial Manipulation and Deepfake Detection
// Copyright 2026 Unmask Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/unmasklabs/unmask

package websocket

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHubRegisterUnregister(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- hub.RunWithContext(ctx)
	}()

	client := NewClient(hub, nil)
	hub.Register <- client

	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext() = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("hub did not stop after cancel")
	}
}

func TestHubBroadcastDelivers(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.RunWithContext(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	hub.BroadcastJSON(MessageTypeDetectionAlert, map[string]bool{"is_suspicious": true})

	select {
	case msg := <-client.send:
		if msg.Type != MessageTypeDetectionAlert {
			t.Errorf("message type = %q, want %q", msg.Type, MessageTypeDetectionAlert)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast message never delivered")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()

	client := NewClient(hub, nil)
	hub.Register <- client
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	cancel()
	<-done

	if hub.GetClientCount() != 0 {
		t.Errorf("client count after shutdown = %d, want 0", hub.GetClientCount())
	}
	select {
	case _, ok := <-client.send:
		if ok {
			t.Error("expected client send channel to be closed")
		}
	case <-time.After(time.Second):
		t.Error("client send channel not closed after shutdown")
	}
}

func TestBroadcastJSONNeverBlocks(t *testing.T) {
	t.Parallel()

	// Hub not running: the broadcast buffer fills, further messages drop.
	hub := NewHub()
	for i := 0; i < 300; i++ {
		hub.BroadcastJSON(MessageTypeStatsUpdate, i)
	}
}

func TestClientIDsIncrease(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	if a.ID() >= b.ID() {
		t.Errorf("client IDs not increasing: %d then %d", a.ID(), b.ID())
	}
}

func TestMarshalMessage(t *testing.T) {
	t.Parallel()

	data, err := MarshalMessage(Message{Type: MessageTypePong})
	if err != nil {
		t.Fatalf("MarshalMessage() error = %v", err)
	}
	if string(data) != `{"type":"pong","data":null}` {
		t.Errorf("MarshalMessage() = %s", data)
	}
}

// waitFor polls a condition with a deadline, avoiding sleeps in tests.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}
