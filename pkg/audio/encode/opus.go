// ABOUTME: Opus packetizer for network streaming of the tone
// ABOUTME: Buffers int16 PCM and emits one Opus packet per 20ms frame
package encode

import (
	"fmt"
	"log"

	"gopkg.in/hraban/opus.v2"
)

// OpusSampleRate is the rate Opus packets are produced at
const OpusSampleRate = 48000

// OpusEncoder turns a continuous int16 stream into 20ms Opus packets
type OpusEncoder struct {
	encoder   *opus.Encoder
	channels  int
	frameSize int // samples per channel per packet
	pending   []int16
}

// NewOpus creates an Opus encoder at 48kHz for channels channels (1 or 2)
func NewOpus(channels int) (*OpusEncoder, error) {
	if channels < 1 || channels > 2 {
		return nil, fmt.Errorf("opus supports 1 or 2 channels, got %d", channels)
	}

	encoder, err := opus.NewEncoder(OpusSampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus encoder: %w", err)
	}

	// 64 kbps per channel
	if err := encoder.SetBitrate(64000 * channels); err != nil {
		log.Printf("Warning: Failed to set Opus bitrate: %v", err)
	}

	return &OpusEncoder{
		encoder:   encoder,
		channels:  channels,
		frameSize: OpusSampleRate / 50,
	}, nil
}

// FrameSize returns the number of frames per packet
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode appends interleaved samples and returns every complete packet.
// Leftover samples are kept for the next call.
func (e *OpusEncoder) Encode(pcm []int16) ([][]byte, error) {
	e.pending = append(e.pending, pcm...)

	chunk := e.frameSize * e.channels
	var packets [][]byte
	for len(e.pending) >= chunk {
		// Opus packets can't exceed 4000 bytes
		data := make([]byte, 4000)
		n, err := e.encoder.Encode(e.pending[:chunk], data)
		if err != nil {
			return packets, fmt.Errorf("opus encode error: %w", err)
		}
		packets = append(packets, data[:n])
		e.pending = e.pending[chunk:]
	}

	// Compact so the backing array doesn't grow without bound
	if len(e.pending) == 0 {
		e.pending = e.pending[:0:0]
	}

	return packets, nil
}

// Buffered returns the number of frames waiting for a full packet
func (e *OpusEncoder) Buffered() int {
	return len(e.pending) / e.channels
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	e.pending = nil
	return nil
}
