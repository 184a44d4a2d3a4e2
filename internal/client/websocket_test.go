// ABOUTME: Tests for WebSocket client implementation
// ABOUTME: Runs the handshake and message routing against a scripted server
package client

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/protocol"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c := NewClient(Config{ServerAddr: "localhost:8928", ClientID: "test-client", Name: "Test Probe"})
	require.NotNil(t, c)
	assert.Equal(t, "/sinetone", c.config.Path)
	assert.Equal(t, []string{protocol.CodecPCM}, c.config.Codecs)
	assert.False(t, c.IsConnected())
}

// scriptedServer answers the handshake with reply, then runs script
func scriptedServer(t *testing.T, reply protocol.Message, script func(*websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var hello protocol.Message
		if err := conn.ReadJSON(&hello); err != nil || hello.Type != protocol.TypeClientHello {
			return
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
		if script != nil {
			script(conn)
		}
	}))
	t.Cleanup(ts.Close)
	return strings.TrimPrefix(ts.URL, "http://")
}

func TestConnectAndRoute(t *testing.T) {
	received := make(chan protocol.Message, 1)
	addr := scriptedServer(t,
		protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{ServerID: "srv", Name: "Lab", Version: 1}},
		func(conn *websocket.Conn) {
			conn.WriteJSON(protocol.Message{Type: protocol.TypeStreamStart, Payload: protocol.StreamStart{
				Codec: protocol.CodecPCM, Format: "S16_LE", SampleRate: 48000, Channels: 2, Frequency: 440,
			}})
			conn.WriteMessage(websocket.BinaryMessage, protocol.EncodeChunk(protocol.ChunkPCM, 42, []byte{1, 2, 3, 4}))
			conn.WriteJSON(protocol.Message{Type: protocol.TypeStreamUpdate, Payload: protocol.StreamUpdate{Frequency: 880}})

			var msg protocol.Message
			if conn.ReadJSON(&msg) == nil {
				received <- msg
			}
			// Keep the connection open until the client leaves
			conn.ReadMessage()
		})

	c := NewClient(Config{ServerAddr: addr, ClientID: "probe", Name: "probe"})
	require.NoError(t, c.Connect())
	defer c.Close()
	assert.True(t, c.IsConnected())
	assert.Equal(t, "Lab", c.Server().Name)

	select {
	case start := <-c.StreamStart:
		assert.Equal(t, "S16_LE", start.Format)
		assert.Equal(t, 2, start.Channels)
	case <-time.After(5 * time.Second):
		t.Fatal("no stream/start")
	}

	select {
	case chunk := <-c.AudioChunks:
		assert.Equal(t, int64(42), chunk.Timestamp)
		assert.Equal(t, []byte{1, 2, 3, 4}, chunk.Data)
	case <-time.After(5 * time.Second):
		t.Fatal("no chunk")
	}

	select {
	case update := <-c.StreamUpdate:
		assert.Equal(t, 880.0, update.Frequency)
	case <-time.After(5 * time.Second):
		t.Fatal("no stream/update")
	}

	require.NoError(t, c.SetTone(1000))
	select {
	case msg := <-received:
		assert.Equal(t, protocol.TypeToneSet, msg.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("server saw no tone/set")
	}
}

func TestConnectRejected(t *testing.T) {
	addr := scriptedServer(t,
		protocol.Message{Type: protocol.TypeServerError, Payload: protocol.ServerError{Error: "duplicate_client_id", Message: "Client ID already connected"}},
		nil)

	c := NewClient(Config{ServerAddr: addr, ClientID: "probe", Name: "probe"})
	err := c.Connect()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate_client_id")
	assert.False(t, c.IsConnected())
}

func TestDoneAfterServerCloses(t *testing.T) {
	addr := scriptedServer(t,
		protocol.Message{Type: protocol.TypeServerHello, Payload: protocol.ServerHello{Name: "Lab"}},
		nil)

	c := NewClient(Config{ServerAddr: addr, ClientID: "probe", Name: "probe"})
	require.NoError(t, c.Connect())

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("client did not notice the closed connection")
	}
	assert.Error(t, c.SetTone(440))
}
