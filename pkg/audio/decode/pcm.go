// ABOUTME: PCM sample decoder
// ABOUTME: Inverts the sample encoding rules back to floating-point values
package decode

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
)

// Pattern reads the significant bytes of one sample slot into a bit pattern
func Pattern(slot []byte, f audio.Format) uint64 {
	bps := f.Bytes()
	physBps := f.PhysicalBytes()

	var res uint64
	for i := 0; i < bps; i++ {
		var b byte
		if f.ByteOrder == audio.BigEndian {
			b = slot[physBps-1-i]
		} else {
			b = slot[i]
		}
		res |= uint64(b) << (i * 8)
	}
	return res
}

// Int returns the two's-complement integer value stored in an integer slot
func Int(slot []byte, f audio.Format) int64 {
	res := Pattern(slot, f)
	if f.Encoding == audio.Unsigned {
		res ^= 1 << (f.Width - 1)
	}
	// Sign extend from f.Width bits
	shift := 64 - f.Width
	return int64(res<<shift) >> shift
}

// Sample decodes one slot to a value in [-1, 1]
func Sample(slot []byte, f audio.Format) float64 {
	if f.Encoding == audio.Float {
		return float64(math.Float32frombits(uint32(Pattern(slot, f))))
	}
	return float64(Int(slot, f)) / float64(f.MaxValue())
}

// Channel decodes count samples of one area starting offset frames in
func Channel(area audio.ChannelArea, f audio.Format, offset, count int) []float64 {
	out := make([]float64, count)
	step := area.Step / 8
	pos := area.First/8 + offset*step
	for i := range out {
		out[i] = Sample(area.Buf[pos:], f)
		pos += step
	}
	return out
}

// PCMDecoder decodes interleaved wire data in a negotiated stream format
type PCMDecoder struct {
	format   audio.Format
	channels int
}

// NewPCM creates a decoder for interleaved frames of cfg
func NewPCM(cfg audio.StreamConfig) (*PCMDecoder, error) {
	if err := cfg.Format.Validate(); err != nil {
		return nil, err
	}
	if cfg.Channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", cfg.Channels)
	}
	return &PCMDecoder{format: cfg.Format, channels: cfg.Channels}, nil
}

// Decode converts interleaved bytes to interleaved float samples
func (d *PCMDecoder) Decode(data []byte) ([]float64, error) {
	phys := d.format.PhysicalBytes()
	frameBytes := phys * d.channels
	if len(data)%frameBytes != 0 {
		return nil, fmt.Errorf("data length %d is not a multiple of frame size %d", len(data), frameBytes)
	}

	samples := make([]float64, len(data)/phys)
	for i := range samples {
		samples[i] = Sample(data[i*phys:], d.format)
	}
	return samples, nil
}

// DecodeInt16 converts interleaved bytes to interleaved int16 samples
func (d *PCMDecoder) DecodeInt16(data []byte) ([]int16, error) {
	samples, err := d.Decode(data)
	if err != nil {
		return nil, err
	}
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = ToInt16(s)
	}
	return out, nil
}

// Channels returns the number of interleaved channels
func (d *PCMDecoder) Channels() int {
	return d.channels
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// ToInt16 scales a [-1, 1] sample to int16, clamping out-of-range values
func ToInt16(s float64) int16 {
	v := s * 32767
	if v > 32767 {
		v = 32767
	} else if v < -32768 {
		v = -32768
	}
	return int16(v)
}
