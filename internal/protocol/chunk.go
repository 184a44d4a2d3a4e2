// ABOUTME: Binary audio chunk framing
// ABOUTME: [type:1][timestamp µs:8, big endian][payload]
package protocol

import (
	"encoding/binary"
	"fmt"
)

// Binary message types
const (
	ChunkPCM  byte = 1
	ChunkOpus byte = 2
)

// ChunkHeaderSize is the fixed prefix before the payload
const ChunkHeaderSize = 9

// Chunk is one binary audio message
type Chunk struct {
	Type      byte
	Timestamp int64 // microseconds, server clock, of the first frame
	Data      []byte
}

// EncodeChunk frames data for the wire
func EncodeChunk(kind byte, timestamp int64, data []byte) []byte {
	out := make([]byte, ChunkHeaderSize+len(data))
	out[0] = kind
	binary.BigEndian.PutUint64(out[1:9], uint64(timestamp))
	copy(out[ChunkHeaderSize:], data)
	return out
}

// DecodeChunk parses a binary message. Data aliases b.
func DecodeChunk(b []byte) (Chunk, error) {
	if len(b) < ChunkHeaderSize {
		return Chunk{}, fmt.Errorf("chunk too short: %d bytes", len(b))
	}
	kind := b[0]
	if kind != ChunkPCM && kind != ChunkOpus {
		return Chunk{}, fmt.Errorf("unknown chunk type: %d", kind)
	}
	return Chunk{
		Type:      kind,
		Timestamp: int64(binary.BigEndian.Uint64(b[1:9])),
		Data:      b[ChunkHeaderSize:],
	}, nil
}
