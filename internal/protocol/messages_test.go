// ABOUTME: Tests for protocol messages and chunk framing
// ABOUTME: Verifies payload decoding and the binary header layout
package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamStartThroughMessage(t *testing.T) {
	start := StreamStart{
		Codec:      CodecPCM,
		Format:     "S16_LE",
		SampleRate: 44100,
		Channels:   2,
		Frequency:  440,
		PeriodSize: 4410,
	}
	data, err := json.Marshal(Message{Type: TypeStreamStart, Payload: start})
	require.NoError(t, err)

	msg, err := ParseMessage(data)
	require.NoError(t, err)
	assert.Equal(t, TypeStreamStart, msg.Type)

	var got StreamStart
	require.NoError(t, DecodePayload(msg.Payload, &got))
	assert.Equal(t, start, got)
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "hello"},
		{"no type", `{"payload":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestChunkLayout(t *testing.T) {
	b := EncodeChunk(ChunkPCM, 0x0102030405060708, []byte{0xaa, 0xbb})
	assert.Equal(t, []byte{1, 1, 2, 3, 4, 5, 6, 7, 8, 0xaa, 0xbb}, b)

	c, err := DecodeChunk(b)
	require.NoError(t, err)
	assert.Equal(t, ChunkPCM, c.Type)
	assert.Equal(t, int64(0x0102030405060708), c.Timestamp)
	assert.Equal(t, []byte{0xaa, 0xbb}, c.Data)
}

func TestDecodeChunkErrors(t *testing.T) {
	_, err := DecodeChunk([]byte{1, 0, 0})
	assert.Error(t, err)

	_, err = DecodeChunk(EncodeChunk(7, 0, nil))
	assert.Error(t, err)
}
