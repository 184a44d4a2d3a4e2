// ABOUTME: Unit tests for Opus packetizer
// ABOUTME: Tests channel validation, packet framing and leftover buffering
package encode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpus(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		wantErr  bool
	}{
		{"mono", 1, false},
		{"stereo", 2, false},
		{"no channels", 0, true},
		{"surround", 6, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewOpus(tt.channels)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 960, enc.FrameSize())
			assert.NoError(t, enc.Close())
		})
	}
}

func TestOpusEncodeFraming(t *testing.T) {
	enc, err := NewOpus(2)
	require.NoError(t, err)
	defer enc.Close()

	// 1.5 packets worth of a 440Hz tone
	frames := 960 + 480
	pcm := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		v := int16(math.Sin(2*math.Pi*440*float64(i)/OpusSampleRate) * 16000)
		pcm[i*2] = v
		pcm[i*2+1] = v
	}

	packets, err := enc.Encode(pcm)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	assert.NotEmpty(t, packets[0])
	assert.Less(t, len(packets[0]), 960*2*2, "expected compression")
	assert.Equal(t, 480, enc.Buffered())

	// Completing the second packet flushes the leftover
	packets, err = enc.Encode(pcm[:480*2])
	require.NoError(t, err)
	assert.Len(t, packets, 1)
	assert.Equal(t, 0, enc.Buffered())
}

func TestOpusEncodeSilence(t *testing.T) {
	enc, err := NewOpus(1)
	require.NoError(t, err)

	packets, err := enc.Encode(make([]int16, 960*3))
	require.NoError(t, err)
	require.Len(t, packets, 3)
	for _, p := range packets {
		assert.NotEmpty(t, p, "expected non-empty packet even for silence")
	}
}
