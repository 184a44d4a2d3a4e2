// ABOUTME: WebSocket client for the tone streaming protocol
// ABOUTME: Handles connection, handshake, and message routing
package client

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/protocol"
	"github.com/gorilla/websocket"
)

// Config holds client configuration
type Config struct {
	ServerAddr string
	Path       string // default /sinetone
	ClientID   string
	Name       string
	Codecs     []string
	DeviceInfo protocol.DeviceInfo
}

// Client represents a WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	// Message channels
	AudioChunks  chan protocol.Chunk
	StreamStart  chan protocol.StreamStart
	StreamUpdate chan protocol.StreamUpdate
	TimeSyncResp chan protocol.ServerTime

	server    protocol.ServerHello
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a new WebSocket client
func NewClient(config Config) *Client {
	if config.Path == "" {
		config.Path = "/sinetone"
	}
	if len(config.Codecs) == 0 {
		config.Codecs = []string{protocol.CodecPCM}
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		config:       config,
		AudioChunks:  make(chan protocol.Chunk, 100),
		StreamStart:  make(chan protocol.StreamStart, 1),
		StreamUpdate: make(chan protocol.StreamUpdate, 10),
		TimeSyncResp: make(chan protocol.ServerTime, 10),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes the WebSocket connection and performs the handshake
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.config.ServerAddr, Path: c.config.Path}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()

	return nil
}

// handshake sends client/hello and waits for server/hello
func (c *Client) handshake() error {
	hello := protocol.ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    protocol.Version,
		Codecs:     c.config.Codecs,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.sendJSON(protocol.Message{Type: protocol.TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read server/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{})

	msg, err := protocol.ParseMessage(data)
	if err != nil {
		return err
	}

	switch msg.Type {
	case protocol.TypeServerHello:
	case protocol.TypeServerError:
		var rejection protocol.ServerError
		if err := protocol.DecodePayload(msg.Payload, &rejection); err != nil {
			return err
		}
		return fmt.Errorf("server rejected client: %s (%s)", rejection.Message, rejection.Error)
	default:
		return fmt.Errorf("expected server/hello, got %s", msg.Type)
	}

	var server protocol.ServerHello
	if err := protocol.DecodePayload(msg.Payload, &server); err != nil {
		return err
	}
	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	log.Printf("Handshake complete with server %s (ID: %s)", server.Name, server.ServerID)
	return nil
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return fmt.Errorf("not connected")
	}

	return c.conn.WriteJSON(msg)
}

// readMessages reads and routes incoming messages
func (c *Client) readMessages() {
	defer c.Close()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() == nil {
				log.Printf("Read error: %v", err)
			}
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			c.handleBinaryMessage(data)
		case websocket.TextMessage:
			c.handleJSONMessage(data)
		}
	}
}

// handleBinaryMessage forwards audio chunks
func (c *Client) handleBinaryMessage(data []byte) {
	chunk, err := protocol.DecodeChunk(data)
	if err != nil {
		log.Printf("Invalid binary message: %v", err)
		return
	}

	select {
	case c.AudioChunks <- chunk:
	case <-c.ctx.Done():
	}
}

// handleJSONMessage routes JSON messages
func (c *Client) handleJSONMessage(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeStreamStart:
		var start protocol.StreamStart
		if err := protocol.DecodePayload(msg.Payload, &start); err != nil {
			log.Printf("Bad stream/start: %v", err)
			return
		}
		select {
		case c.StreamStart <- start:
		case <-c.ctx.Done():
		}

	case protocol.TypeStreamUpdate:
		var update protocol.StreamUpdate
		if err := protocol.DecodePayload(msg.Payload, &update); err != nil {
			log.Printf("Bad stream/update: %v", err)
			return
		}
		select {
		case c.StreamUpdate <- update:
		case <-c.ctx.Done():
		}

	case protocol.TypeServerTime:
		var reply protocol.ServerTime
		if err := protocol.DecodePayload(msg.Payload, &reply); err != nil {
			log.Printf("Bad server/time: %v", err)
			return
		}
		select {
		case c.TimeSyncResp <- reply:
		case <-c.ctx.Done():
		}

	default:
		log.Printf("Unknown message type: %s", msg.Type)
	}
}

// SetTone asks the server to change the tone frequency
func (c *Client) SetTone(hz float64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeToneSet,
		Payload: protocol.ToneSet{Frequency: hz},
	})
}

// SendTimeSync sends a client/time message
func (c *Client) SendTimeSync(t1 int64) error {
	return c.sendJSON(protocol.Message{
		Type:    protocol.TypeClientTime,
		Payload: protocol.ClientTime{ClientTransmitted: t1},
	})
}

// Server returns the server's hello
func (c *Client) Server() protocol.ServerHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.server
}

// Done is closed once the connection is gone
func (c *Client) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
