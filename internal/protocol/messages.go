// ABOUTME: Tone streaming protocol message type definitions
// ABOUTME: JSON control messages exchanged over the /sinetone WebSocket
package protocol

import (
	"encoding/json"
	"fmt"
)

// Version is the protocol revision spoken by this module
const Version = 1

// Message types
const (
	TypeClientHello  = "client/hello"
	TypeServerHello  = "server/hello"
	TypeServerError  = "server/error"
	TypeStreamStart  = "stream/start"
	TypeStreamUpdate = "stream/update"
	TypeClientTime   = "client/time"
	TypeServerTime   = "server/time"
	TypeToneSet      = "tone/set"
)

// Codecs a client may request
const (
	CodecPCM  = "pcm"
	CodecOpus = "opus"
)

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ClientHello is sent by clients to initiate the handshake
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	Codecs     []string    `json:"codecs,omitempty"` // in order of preference
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// ServerHello is the server's response to client/hello
type ServerHello struct {
	ServerID string `json:"server_id"`
	Name     string `json:"name"`
	Version  int    `json:"version"`
}

// ServerError rejects a client
type ServerError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// StreamStart describes the chunks that follow
type StreamStart struct {
	Codec      string  `json:"codec"`
	Format     string  `json:"format,omitempty"` // sample format name for pcm
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
	Frequency  float64 `json:"frequency"`
	PeriodSize int     `json:"period_size,omitempty"`
}

// StreamUpdate announces a tone change mid-stream
type StreamUpdate struct {
	Frequency float64 `json:"frequency"`
}

// ToneSet asks the server to change the tone frequency
type ToneSet struct {
	Frequency float64 `json:"frequency"`
}

// ClientTime is sent for round-trip measurement
type ClientTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Client timestamp in microseconds
}

// ServerTime is the response to client/time
type ServerTime struct {
	ClientTransmitted int64 `json:"client_transmitted"` // Echoed client timestamp
	ServerReceived    int64 `json:"server_received"`
	ServerTransmitted int64 `json:"server_transmitted"`
}

// DecodePayload converts a generically unmarshaled payload into v
func DecodePayload(payload interface{}, v interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	return nil
}

// ParseMessage unmarshals a text frame
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return Message{}, fmt.Errorf("message has no type")
	}
	return msg, nil
}
