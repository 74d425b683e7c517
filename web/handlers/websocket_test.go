package handlers

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faragon/langlab/internal/rag"
)

func TestWebSocketHub_BroadcastReachesClients(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	client := &MockClient{SendChan: make(chan []byte, 1)}
	hub.Register(client)

	hub.Notify(rag.IndexEvent{Type: "indexed", Collection: "a4_docs_v2", Added: 3})

	select {
	case data := <-client.SendChan:
		var event rag.IndexEvent
		require.NoError(t, json.Unmarshal(data, &event))
		assert.Equal(t, "indexed", event.Type)
		assert.Equal(t, "a4_docs_v2", event.Collection)
		assert.Equal(t, 3, event.Added)
	case <-time.After(time.Second):
		t.Fatal("broadcast did not reach the client")
	}
}

func TestWebSocketHub_SlowClientIsDisconnected(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	// Zero-capacity channel: the client can never receive.
	slow := &MockClient{SendChan: make(chan []byte)}
	hub.Register(slow)

	hub.Broadcast(map[string]string{"type": "noop"})

	// The hub closes the send channel of clients that cannot keep up.
	select {
	case _, open := <-slow.SendChan:
		assert.False(t, open, "send channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("slow client was not disconnected")
	}
}

func TestWebSocketHub_UnregisterAfterStopDoesNotBlock(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	hub.Stop()

	done := make(chan struct{})
	go func() {
		hub.Unregister(&MockClient{SendChan: make(chan []byte, 1)})
		hub.Register(&MockClient{SendChan: make(chan []byte, 1)})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("register/unregister blocked after the hub stopped")
	}
}
