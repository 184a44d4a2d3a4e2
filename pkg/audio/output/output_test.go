// ABOUTME: Tests for the memory playback device and the back-end factory
// ABOUTME: Drives the acquire/release loop with a fake clock
package output

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDevicesImplementDevice(t *testing.T) {
	var _ Device = (*Memory)(nil)
	var _ Device = (*Malgo)(nil)
	var _ Device = (*Oto)(nil)
}

// negotiate sets up 8kHz S16 with 800-frame buffers and 200-frame periods
func negotiate(t *testing.T, m *Memory, access audio.Access, channels int) audio.StreamConfig {
	t.Helper()
	req := hwparams.Request{
		Format:     audio.S16LE,
		Rate:       8000,
		Channels:   channels,
		BufferTime: 100 * time.Millisecond,
		PeriodTime: 25 * time.Millisecond,
		Access:     access,
	}
	cfg, err := hwparams.Negotiate(m, req)
	require.NoError(t, err)
	require.Equal(t, 800, cfg.BufferSize)
	require.Equal(t, 200, cfg.PeriodSize)
	require.NoError(t, m.Start(hwparams.DeriveSoftware(cfg, false)))
	return cfg
}

func TestMemoryRWInterleaved(t *testing.T) {
	m := NewMemory(DefaultCapabilities(), false)
	var got []byte
	m.OnRelease(func(cfg audio.StreamConfig, region [][]byte) {
		require.Len(t, region, 1)
		got = append(got, region[0]...)
	})
	cfg := negotiate(t, m, audio.RWInterleaved, 2)

	ctx := context.Background()
	phase := 0.0
	var want []byte
	for i := 0; i < 6; i++ {
		p, err := m.Acquire(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Offset, "RW periods are staged at offset 0")
		assert.Equal(t, 200, p.Frames)

		require.NoError(t, encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 440))
		want = append(want, encode.Region(p.Areas, cfg, 0, p.Frames)[0]...)
		require.NoError(t, m.Release(p.Frames))

		// Playback starts once the buffer is full
		assert.Equal(t, i >= 3, m.Running(), "iteration %d", i)
	}

	assert.Equal(t, want, got)
	assert.Equal(t, int64(1200), m.Written())
	assert.Equal(t, 0, m.Underruns())
}

func TestMemoryMMapWrapsRing(t *testing.T) {
	m := NewMemory(DefaultCapabilities(), false)
	cfg := negotiate(t, m, audio.MMapInterleaved, 1)

	phase := 0.0
	var offsets []int
	for i := 0; i < 6; i++ {
		p, err := m.Acquire(context.Background())
		require.NoError(t, err)
		offsets = append(offsets, p.Offset)
		require.NoError(t, encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 1000))
		require.NoError(t, m.Release(p.Frames))
	}
	assert.Equal(t, []int{0, 200, 400, 600, 0, 200}, offsets)
}

func TestMemoryPlanar(t *testing.T) {
	m := NewMemory(DefaultCapabilities(), false)
	var regions [][][]byte
	m.OnRelease(func(cfg audio.StreamConfig, region [][]byte) {
		cp := make([][]byte, len(region))
		for i := range region {
			cp[i] = append([]byte(nil), region[i]...)
		}
		regions = append(regions, cp)
	})
	cfg := negotiate(t, m, audio.RWNonInterleaved, 2)

	p, err := m.Acquire(context.Background())
	require.NoError(t, err)
	require.Len(t, p.Areas, 2)
	phase := 0.0
	require.NoError(t, encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 440))
	require.NoError(t, m.Release(p.Frames))

	require.Len(t, regions, 1)
	require.Len(t, regions[0], 2)
	assert.Len(t, regions[0][0], 400)
	assert.Equal(t, regions[0][0], regions[0][1], "both channels carry the same tone")
}

func TestMemoryPacedUnderrun(t *testing.T) {
	clock := time.Unix(1000, 0)
	m := NewMemory(DefaultCapabilities(), true)
	m.now = func() time.Time { return clock }
	cfg := negotiate(t, m, audio.RWInterleaved, 1)

	ctx := context.Background()
	phase := 0.0
	fill := func() {
		p, err := m.Acquire(ctx)
		require.NoError(t, err)
		require.NoError(t, encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 440))
		require.NoError(t, m.Release(p.Frames))
	}
	for i := 0; i < 4; i++ {
		fill()
	}
	require.True(t, m.Running())

	// Half a period played: the writer may add 200 more frames once 200 are free
	clock = clock.Add(25 * time.Millisecond)
	fill()

	// The device outruns the writer
	clock = clock.Add(time.Second)
	_, err := m.Acquire(ctx)
	require.ErrorIs(t, err, ErrUnderrun)
	assert.Equal(t, 1, m.Underruns())
	assert.False(t, m.Running())

	// Re-prepared: the whole buffer is writable again
	p, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.Equal(t, 200, p.Frames)
}

func TestMemoryPacedWaitHonoursContext(t *testing.T) {
	clock := time.Unix(1000, 0)
	m := NewMemory(DefaultCapabilities(), true)
	m.now = func() time.Time { return clock }
	cfg := negotiate(t, m, audio.RWInterleaved, 1)

	phase := 0.0
	for i := 0; i < 4; i++ {
		p, err := m.Acquire(context.Background())
		require.NoError(t, err)
		require.NoError(t, encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 440))
		require.NoError(t, m.Release(p.Frames))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := m.Acquire(ctx)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestMemoryErrors(t *testing.T) {
	m := NewMemory(DefaultCapabilities(), false)
	ctx := context.Background()

	_, err := m.Acquire(ctx)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, m.Start(hwparams.SoftwareParams{StartThreshold: 1, AvailMin: 1}), ErrNotConfigured)

	cfg := negotiate(t, m, audio.RWInterleaved, 1)
	assert.Error(t, m.Start(hwparams.SoftwareParams{StartThreshold: cfg.BufferSize + 1, AvailMin: 1}))
	assert.Error(t, m.Start(hwparams.SoftwareParams{StartThreshold: 1, AvailMin: 0}))

	p, err := m.Acquire(ctx)
	require.NoError(t, err)
	assert.Error(t, m.Release(p.Frames+1))
	require.NoError(t, m.Release(p.Frames))
	assert.Error(t, m.Release(1), "nothing acquired")

	require.NoError(t, m.Close())
	_, err = m.Acquire(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.QueryParameterSpace()
	assert.ErrorIs(t, err, ErrClosed)
}

func TestMemoryCapabilitiesLimitNegotiation(t *testing.T) {
	caps := DefaultCapabilities()
	caps.Formats = []audio.Format{audio.S16LE}
	caps.Rates = []int{48000}
	caps.Resample = hwparams.ResampleNone
	m := NewMemory(caps, false)

	req := hwparams.DefaultRequest()
	_, err := hwparams.Negotiate(m, req)
	assert.ErrorIs(t, err, hwparams.RateMismatch)

	req.Rate = 48000
	req.Format = audio.FloatLE
	_, err = hwparams.Negotiate(m, req)
	assert.ErrorIs(t, err, hwparams.FormatUnsupported)
}

func TestRingBuffer(t *testing.T) {
	rb := NewRingBuffer(8)

	assert.Equal(t, 6, rb.Write([]byte{1, 2, 3, 4, 5, 6}))
	out := make([]byte, 4)
	assert.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	select {
	case <-rb.Space():
	default:
		t.Fatal("read should signal free space")
	}

	// Wraps around the end
	assert.Equal(t, 6, rb.Write([]byte{7, 8, 9, 10, 11, 12, 13}))
	assert.Equal(t, 8, rb.Len())
	assert.Equal(t, 0, rb.Free())

	out = make([]byte, 10)
	assert.Equal(t, 8, rb.Read(out))
	assert.Equal(t, []byte{5, 6, 7, 8, 9, 10, 11, 12, 0, 0}, out, "underrun is zero-filled")
}

func TestNew(t *testing.T) {
	tests := []struct {
		backend Backend
		name    string
	}{
		{BackendMemory, "memory"},
		{BackendNull, "null"},
		{BackendOto, "oto"},
		{BackendMalgo, "malgo:default"},
	}

	for _, tt := range tests {
		t.Run(string(tt.backend), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Backend = tt.backend
			dev, err := New(cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.name, dev.Name())
		})
	}

	_, err := New(Config{Backend: "pulse"})
	assert.Error(t, err)
}
