// ABOUTME: Unit tests for the sine sample encoder
// ABOUTME: Tests phase continuity, format round trips, endianness and area contracts
package encode

import (
	"errors"
	"math"
	"testing"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/decode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoConfig(f audio.Format, rate int) audio.StreamConfig {
	return audio.StreamConfig{
		Format:     f,
		Access:     audio.RWInterleaved,
		Channels:   1,
		Rate:       rate,
		BufferSize: 4096,
		PeriodSize: 1024,
	}
}

func TestSineScenarioS16LE(t *testing.T) {
	cfg := monoConfig(audio.S16LE, 44100)
	buf := make([]byte, 100*2)
	var phase float64

	require.NoError(t, Sine(InterleavedAreas(buf, cfg), 0, 100, &phase, cfg, 440))

	assert.Equal(t, []byte{0x00, 0x00}, buf[0:2])

	// Accumulate the phase the same way the encoder does
	var p float64
	step := Step(440, 44100)
	for i := 0; i < 50; i++ {
		p += step
	}
	v := int16(math.Sin(p) * 32767)
	assert.Equal(t, []byte{byte(uint16(v)), byte(uint16(v) >> 8)}, buf[100:102])

	expected := int16(math.Sin(2*math.Pi*440*50/44100) * 32767)
	assert.InDelta(t, int(expected), int(v), 1)
}

func TestSineUnsigned8FlipsHighBit(t *testing.T) {
	signedCfg := monoConfig(audio.S8, 44100)
	unsignedCfg := monoConfig(audio.U8, 44100)

	signedBuf := make([]byte, 100)
	unsignedBuf := make([]byte, 100)
	var p1, p2 float64

	require.NoError(t, Sine(InterleavedAreas(signedBuf, signedCfg), 0, 100, &p1, signedCfg, 440))
	require.NoError(t, Sine(InterleavedAreas(unsignedBuf, unsignedCfg), 0, 100, &p2, unsignedCfg, 440))

	for i := range signedBuf {
		assert.Equal(t, signedBuf[i]^0x80, unsignedBuf[i], "byte %d", i)
	}
}

func TestSinePhaseContinuityUnderChunking(t *testing.T) {
	cfg := monoConfig(audio.S16LE, 48000)
	const total = 4800
	freq := 997.0

	whole := make([]byte, total*2)
	var wholePhase float64
	require.NoError(t, Sine(InterleavedAreas(whole, cfg), 0, total, &wholePhase, cfg, freq))

	chunks := []int{1, 7, 480, 1000, 12, 3300}
	chunked := make([]byte, total*2)
	var chunkedPhase float64
	offset := 0
	for _, n := range chunks {
		require.NoError(t, Sine(InterleavedAreas(chunked, cfg), offset, n, &chunkedPhase, cfg, freq))
		offset += n
	}
	require.Equal(t, total, offset)

	assert.Equal(t, whole, chunked)
	assert.Equal(t, wholePhase, chunkedPhase)

	expected := math.Mod(2*math.Pi*freq*total/48000, 2*math.Pi)
	assert.InDelta(t, expected, chunkedPhase, 1e-9)
	assert.GreaterOrEqual(t, chunkedPhase, 0.0)
	assert.Less(t, chunkedPhase, 2*math.Pi)
}

func TestSineRoundTripAllFormats(t *testing.T) {
	const frames = 256
	freq := 1234.5

	for _, f := range audio.Formats() {
		t.Run(f.Name, func(t *testing.T) {
			cfg := audio.StreamConfig{
				Format:     f,
				Access:     audio.RWInterleaved,
				Channels:   2,
				Rate:       48000,
				BufferSize: frames,
				PeriodSize: frames,
			}
			areas := Allocate(cfg, frames)
			phase := 0.3
			require.NoError(t, Sine(areas, 0, frames, &phase, cfg, freq))

			tolerance := 1.0 / float64(f.MaxValue())
			if f.Encoding == audio.Float {
				tolerance = 1e-7
			}

			step := Step(freq, 48000)
			for chn := 0; chn < 2; chn++ {
				got := decode.Channel(areas[chn], f, 0, frames)
				p := 0.3
				for i, v := range got {
					assert.InDelta(t, math.Sin(p), v, tolerance, "channel %d frame %d", chn, i)
					p += step
					if p >= 2*math.Pi {
						p -= 2 * math.Pi
					}
				}
			}
		})
	}
}

func TestSineEndiannessIsByteReversal(t *testing.T) {
	pairs := []struct {
		le, be audio.Format
	}{
		{audio.S16LE, audio.S16BE},
		{audio.U16LE, audio.U16BE},
		{audio.S32LE, audio.S32BE},
		{audio.U32LE, audio.U32BE},
		{audio.S24_3LE, audio.S24_3BE},
		{audio.FloatLE, audio.FloatBE},
	}

	for _, pair := range pairs {
		t.Run(pair.le.Name, func(t *testing.T) {
			leCfg := monoConfig(pair.le, 44100)
			beCfg := monoConfig(pair.be, 44100)
			n := pair.le.PhysicalBytes()

			leBuf := make([]byte, 64*n)
			beBuf := make([]byte, 64*n)
			var p1, p2 float64
			require.NoError(t, Sine(InterleavedAreas(leBuf, leCfg), 0, 64, &p1, leCfg, 3000))
			require.NoError(t, Sine(InterleavedAreas(beBuf, beCfg), 0, 64, &p2, beCfg, 3000))

			for i := 0; i < 64; i++ {
				le := leBuf[i*n : (i+1)*n]
				be := beBuf[i*n : (i+1)*n]
				for j := 0; j < n; j++ {
					assert.Equal(t, le[j], be[n-1-j], "frame %d byte %d", i, j)
				}
			}
		})
	}
}

func TestSinePaddingUntouched(t *testing.T) {
	cfg := monoConfig(audio.S24BE, 48000)
	buf := make([]byte, 16*4)
	for i := range buf {
		buf[i] = 0xAA
	}
	phase := 1.0
	require.NoError(t, Sine(InterleavedAreas(buf, cfg), 0, 16, &phase, cfg, 1000))

	// Big-endian 24-in-32 leaves the first byte of each slot alone
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(0xAA), buf[i*4], "frame %d", i)
	}

	cfg = monoConfig(audio.S24LE, 48000)
	for i := range buf {
		buf[i] = 0xAA
	}
	require.NoError(t, Sine(InterleavedAreas(buf, cfg), 0, 16, &phase, cfg, 1000))
	for i := 0; i < 16; i++ {
		assert.Equal(t, byte(0xAA), buf[i*4+3], "frame %d", i)
	}
}

func TestSineSilenceAtZeroFrequency(t *testing.T) {
	cfg := monoConfig(audio.S16LE, 44100)
	buf := make([]byte, 200*2)
	phase := math.Pi / 6
	require.NoError(t, Sine(InterleavedAreas(buf, cfg), 0, 200, &phase, cfg, 0))

	v := int16(math.Sin(math.Pi/6) * 32767)
	for i := 0; i < 200; i++ {
		assert.Equal(t, []byte{byte(uint16(v)), byte(uint16(v) >> 8)}, buf[i*2:i*2+2], "frame %d", i)
	}
	assert.Equal(t, math.Pi/6, phase)
}

func TestSineFloatIsBitCast(t *testing.T) {
	cfg := monoConfig(audio.FloatLE, 48000)
	buf := make([]byte, 8*4)
	phase := 0.7
	require.NoError(t, Sine(InterleavedAreas(buf, cfg), 0, 1, &phase, cfg, 100))

	bits := math.Float32bits(float32(math.Sin(0.7)))
	assert.Equal(t, []byte{byte(bits), byte(bits >> 8), byte(bits >> 16), byte(bits >> 24)}, buf[:4])
}

func TestSinePlanarAndOffset(t *testing.T) {
	cfg := audio.StreamConfig{
		Format:     audio.S16LE,
		Access:     audio.RWNonInterleaved,
		Channels:   3,
		Rate:       48000,
		BufferSize: 32,
		PeriodSize: 8,
	}
	areas := Allocate(cfg, 32)
	var phase float64
	require.NoError(t, Sine(areas, 8, 8, &phase, cfg, 2000))

	for chn := 0; chn < 3; chn++ {
		plane := areas[chn].Buf
		assert.Equal(t, make([]byte, 16), plane[:16], "frames before offset untouched")
		assert.Equal(t, make([]byte, 32), plane[32:], "frames after range untouched")
		assert.Equal(t, areas[0].Buf[16:32], plane[16:32], "every channel carries the same tone")
	}
}

func TestSineZeroCountIsNoop(t *testing.T) {
	cfg := monoConfig(audio.S16LE, 44100)
	phase := 1.5
	// Areas are not even inspected
	require.NoError(t, Sine(nil, 0, 0, &phase, cfg, 440))
	assert.Equal(t, 1.5, phase)
}

func TestSineContractViolations(t *testing.T) {
	cfg := monoConfig(audio.S16LE, 44100)
	buf := make([]byte, 64)

	tests := []struct {
		name  string
		cfg   audio.StreamConfig
		areas []audio.ChannelArea
		count int
	}{
		{"misaligned first", cfg, []audio.ChannelArea{{Buf: buf, First: 4, Step: 16}}, 4},
		{"zero step", cfg, []audio.ChannelArea{{Buf: buf, First: 0, Step: 0}}, 4},
		{"odd byte step", cfg, []audio.ChannelArea{{Buf: buf, First: 0, Step: 24}}, 4},
		{"step below sample width", monoConfig(audio.S32LE, 44100), []audio.ChannelArea{{Buf: buf, First: 0, Step: 16}}, 4},
		{"buffer too short", cfg, []audio.ChannelArea{{Buf: buf, First: 0, Step: 16}}, 33},
		{"missing areas", audio.StreamConfig{Format: audio.S16LE, Channels: 2, Rate: 44100}, []audio.ChannelArea{{Buf: buf, Step: 32}}, 4},
		{"negative count", cfg, []audio.ChannelArea{{Buf: buf, Step: 16}}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			phase := 0.25
			err := Sine(tt.areas, 0, tt.count, &phase, tt.cfg, 440)
			var violation *ContractViolation
			require.True(t, errors.As(err, &violation), "expected ContractViolation, got %v", err)
			assert.Equal(t, 0.25, phase, "phase must not move on violation")
		})
	}

	assert.Equal(t, make([]byte, 64), buf, "nothing written on violation")
}

func TestSineEightBitAllowsByteStep(t *testing.T) {
	cfg := monoConfig(audio.U8, 8000)
	buf := make([]byte, 10)
	var phase float64
	require.NoError(t, Sine([]audio.ChannelArea{{Buf: buf, Step: 8}}, 0, 10, &phase, cfg, 1000))

	cfg24 := monoConfig(audio.S24_3LE, 8000)
	buf24 := make([]byte, 30)
	require.NoError(t, Sine([]audio.ChannelArea{{Buf: buf24, Step: 24}}, 0, 10, &phase, cfg24, 1000))
}

func TestPattern(t *testing.T) {
	assert.Equal(t, uint64(0x80), Pattern(0, audio.U8))
	assert.Equal(t, uint64(0xFF), Pattern(1, audio.U8))
	assert.Equal(t, uint64(0x7FFF), Pattern(1, audio.S16LE))
	assert.Equal(t, uint64(0x8001), Pattern(-1, audio.S16LE)&0xFFFF)
	assert.Equal(t, uint64(math.Float32bits(-0.25)), Pattern(-0.25, audio.FloatBE))
}

func TestRegion(t *testing.T) {
	cfg := audio.StreamConfig{Format: audio.S16LE, Access: audio.RWInterleaved, Channels: 2, Rate: 48000, BufferSize: 8, PeriodSize: 4}
	areas := Allocate(cfg, 8)
	r := Region(areas, cfg, 2, 3)
	require.Len(t, r, 1)
	assert.Len(t, r[0], 12)

	cfg.Access = audio.MMapNonInterleaved
	areas = Allocate(cfg, 8)
	r = Region(areas, cfg, 2, 3)
	require.Len(t, r, 2)
	assert.Len(t, r[1], 6)
}
