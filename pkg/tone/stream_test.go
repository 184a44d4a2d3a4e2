// ABOUTME: Tests for the tone write loop
// ABOUTME: Runs streams against the in-memory device and checks the captured waveform
package tone

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/decode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallConfig is 8kHz mono with 800-frame buffers and 200-frame periods
func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Rate = 8000
	cfg.BufferTime = 100 * time.Millisecond
	cfg.PeriodTime = 25 * time.Millisecond
	return cfg
}

// capture records channel 0 of everything released to a memory device
type capture struct {
	mu      sync.Mutex
	samples []float64
}

func (c *capture) hook(cfg audio.StreamConfig, region [][]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	area := encode.InterleavedAreas(region[0], cfg)[0]
	frames := len(region[0]) / cfg.FrameBytes()
	c.samples = append(c.samples, decode.Channel(area, cfg.Format, 0, frames)...)
}

// runPeriods runs s until it has completed n periods
func runPeriods(t *testing.T, s *Stream, n int64, onPeriod func(Stats)) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.OnPeriod(func(st Stats) {
		if onPeriod != nil {
			onPeriod(st)
		}
		if st.Periods >= n {
			cancel()
		}
	})
	require.NoError(t, s.Run(ctx))
	require.NotErrorIs(t, ctx.Err(), context.DeadlineExceeded)
}

func TestStreamWritesContinuousSine(t *testing.T) {
	mem := output.NewMemory(output.DefaultCapabilities(), false)
	var c capture
	mem.OnRelease(c.hook)

	s, err := Open(mem, smallConfig())
	require.NoError(t, err)
	defer s.Close()

	cfg := s.Config()
	assert.Equal(t, 800, cfg.BufferSize)
	assert.Equal(t, 200, cfg.PeriodSize)
	assert.Equal(t, hwparams.SoftwareParams{StartThreshold: 800, AvailMin: 200}, s.SoftwareParams())

	runPeriods(t, s, 6, nil)

	stats := s.Stats()
	assert.Equal(t, int64(1200), stats.Frames)
	assert.Equal(t, int64(6), stats.Periods)
	assert.Equal(t, 150*time.Millisecond, stats.Elapsed)
	assert.Equal(t, 0, stats.Underruns)
	assert.InDelta(t, 1.0, stats.Level, 0.05)

	require.Len(t, c.samples, 1200)
	step := encode.Step(440, 8000)
	for k, got := range c.samples {
		want := math.Sin(float64(k) * step)
		require.InDelta(t, want, got, 2.0/32767, "sample %d", k)
	}

	// The carried phase matches 1200 steps modulo 2π
	wantPhase := math.Mod(1200*step, 2*math.Pi)
	assert.InDelta(t, wantPhase, s.Phase(), 1e-9)
}

func TestStreamSetFrequencyKeepsPhase(t *testing.T) {
	mem := output.NewMemory(output.DefaultCapabilities(), false)
	var c capture
	mem.OnRelease(c.hook)

	s, err := Open(mem, smallConfig())
	require.NoError(t, err)

	runPeriods(t, s, 4, func(st Stats) {
		if st.Periods == 2 {
			require.NoError(t, s.SetFrequency(1000))
		}
	})
	assert.Equal(t, 1000.0, s.Frequency())
	assert.Equal(t, 1000.0, s.Stats().Frequency)

	require.Len(t, c.samples, 800)
	// The switch lands on the chunk boundary after sample 399
	phase := 0.0
	for k, got := range c.samples {
		require.InDelta(t, math.Sin(phase), got, 2.0/32767, "sample %d", k)
		freq := 440.0
		if k >= 400 {
			freq = 1000
		}
		phase += encode.Step(freq, 8000)
	}

	assert.Error(t, s.SetFrequency(-1))
	assert.Error(t, s.SetFrequency(math.NaN()))
}

func TestStreamPlanarMMap(t *testing.T) {
	mem := output.NewMemory(output.DefaultCapabilities(), false)
	var regions [][][]byte
	mem.OnRelease(func(cfg audio.StreamConfig, region [][]byte) {
		cp := make([][]byte, len(region))
		for i := range region {
			cp[i] = append([]byte(nil), region[i]...)
		}
		regions = append(regions, cp)
	})

	cfg := smallConfig()
	cfg.Access = audio.MMapNonInterleaved
	cfg.Channels = 2
	cfg.Format = audio.FloatBE
	s, err := Open(mem, cfg)
	require.NoError(t, err)

	runPeriods(t, s, 5, nil)

	require.Len(t, regions, 5)
	for _, r := range regions {
		require.Len(t, r, 2)
		assert.Equal(t, r[0], r[1])
	}
}

func TestOpenFailures(t *testing.T) {
	caps := output.DefaultCapabilities()
	caps.Rates = []int{48000}
	caps.Resample = hwparams.ResampleNone

	_, err := Open(output.NewMemory(caps, false), DefaultConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, hwparams.RateMismatch))

	cfg := DefaultConfig()
	cfg.Channels = 0
	_, err = Open(output.NewMemory(output.DefaultCapabilities(), false), cfg)
	assert.Error(t, err)
}

// flakyDevice injects underruns and broken periods into a memory device
type flakyDevice struct {
	*output.Memory
	underruns int
	badAreas  bool
}

func (d *flakyDevice) Acquire(ctx context.Context) (output.Period, error) {
	if d.underruns > 0 {
		d.underruns--
		return output.Period{}, output.ErrUnderrun
	}
	p, err := d.Memory.Acquire(ctx)
	if err == nil && d.badAreas {
		p.Areas = p.Areas[:0]
	}
	return p, err
}

func TestRunRecoversFromUnderruns(t *testing.T) {
	dev := &flakyDevice{Memory: output.NewMemory(output.DefaultCapabilities(), false), underruns: 3}
	s, err := Open(dev, smallConfig())
	require.NoError(t, err)

	runPeriods(t, s, 2, nil)
	assert.Equal(t, 3, s.Stats().Underruns)
	assert.Equal(t, int64(400), s.Stats().Frames)
}

func TestRunStopsOnContractViolation(t *testing.T) {
	dev := &flakyDevice{Memory: output.NewMemory(output.DefaultCapabilities(), false), badAreas: true}
	s, err := Open(dev, smallConfig())
	require.NoError(t, err)

	err = s.Run(context.Background())
	require.Error(t, err)
	var violation *encode.ContractViolation
	assert.True(t, errors.As(err, &violation))
	assert.Equal(t, 0.0, s.Phase())
	assert.Equal(t, int64(0), s.Stats().Frames)
}

func TestRunReturnsDeviceErrors(t *testing.T) {
	mem := output.NewMemory(output.DefaultCapabilities(), false)
	s, err := Open(mem, smallConfig())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	err = s.Run(context.Background())
	assert.ErrorIs(t, err, output.ErrClosed)
}
