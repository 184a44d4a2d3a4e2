// ABOUTME: In-memory playback device with a real ring buffer
// ABOUTME: Simulates hardware capabilities, pacing and underruns for servers and tests
package output

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
)

// Capabilities describes what a simulated device supports
type Capabilities struct {
	Formats    []audio.Format
	Accesses   []audio.Access
	Channels   hwparams.Interval
	Rates      []int // native rates; empty means the whole RateRange
	RateRange  hwparams.Interval
	Resample   hwparams.ResampleMode
	BufferSize hwparams.Interval
	PeriodSize hwparams.Interval
	Periods    hwparams.Interval
	PeriodStep int
	PowerOfTwo bool
}

// DefaultCapabilities returns a permissive device supporting every format and access mode
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Formats:    audio.Formats(),
		Accesses:   []audio.Access{audio.MMapInterleaved, audio.MMapNonInterleaved, audio.RWInterleaved, audio.RWNonInterleaved},
		Channels:   hwparams.Interval{Min: 1, Max: 32},
		Rates:      []int{8000, 11025, 16000, 22050, 32000, 44100, 48000, 88200, 96000, 176400, 192000},
		RateRange:  hwparams.Interval{Min: 4000, Max: 768000},
		Resample:   hwparams.ResampleOptional,
		BufferSize: hwparams.Interval{Min: 32, Max: 1 << 22},
		PeriodSize: hwparams.Interval{Min: 16, Max: 1 << 21},
		Periods:    hwparams.Interval{Min: 2, Max: 1024},
		PeriodStep: 1,
	}
}

// ReleaseFunc observes every region handed to a memory device.
// Interleaved streams yield one slice, planar streams one per channel.
// The slices alias the ring buffer and are only valid during the call.
type ReleaseFunc func(cfg audio.StreamConfig, region [][]byte)

// Memory is a playback device backed by a ring buffer in memory
type Memory struct {
	hwparams.Refiner

	name  string
	caps  Capabilities
	paced bool
	now   func() time.Time

	mu         sync.Mutex
	cfg        audio.StreamConfig
	configured bool
	closed     bool
	sw         hwparams.SoftwareParams
	ring       []audio.ChannelArea
	scratch    []audio.ChannelArea
	onRelease  ReleaseFunc

	appl      int64 // frames released by the writer
	hw        int64 // frames consumed by the device
	running   bool
	startedAt time.Time
	startHw   int64

	acquiredOffset int
	acquired       int
	underruns      int
}

// NewMemory creates a simulated device. With paced set frames are consumed
// at the negotiated rate; otherwise the buffer drains as soon as playback starts.
func NewMemory(caps Capabilities, paced bool) *Memory {
	return &Memory{
		name:  "memory",
		caps:  caps,
		paced: paced,
		now:   time.Now,
	}
}

// OnRelease installs a hook that sees every released region
func (m *Memory) OnRelease(fn ReleaseFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRelease = fn
}

// Name returns the device name
func (m *Memory) Name() string {
	return m.name
}

// QueryParameterSpace returns the simulated capabilities
func (m *Memory) QueryParameterSpace() (hwparams.Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return hwparams.Space{}, ErrClosed
	}

	c := m.caps
	return hwparams.Space{
		Resample:   c.Resample,
		Accesses:   append([]audio.Access(nil), c.Accesses...),
		Formats:    append([]audio.Format(nil), c.Formats...),
		Channels:   c.Channels,
		Rates:      append([]int(nil), c.Rates...),
		RateRange:  c.RateRange,
		BufferSize: c.BufferSize,
		PeriodSize: c.PeriodSize,
		Periods:    c.Periods,
		PeriodStep: c.PeriodStep,
		PowerOfTwo: c.PowerOfTwo,
	}, nil
}

// Commit allocates the ring buffer for a fully restricted space
func (m *Memory) Commit(s hwparams.Space) error {
	cfg, err := s.Resolved()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	m.cfg = cfg
	m.ring = encode.Allocate(cfg, cfg.BufferSize)
	if !cfg.Access.MMap() {
		m.scratch = encode.Allocate(cfg, cfg.PeriodSize)
	}
	m.sw = hwparams.DeriveSoftware(cfg, false)
	m.appl, m.hw = 0, 0
	m.running = false
	m.acquired = 0
	m.configured = true
	return nil
}

// Start applies software parameters
func (m *Memory) Start(sw hwparams.SoftwareParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.configured {
		return ErrNotConfigured
	}
	if sw.StartThreshold < 1 || sw.StartThreshold > m.cfg.BufferSize {
		return fmt.Errorf("start threshold %d outside [1 %d]", sw.StartThreshold, m.cfg.BufferSize)
	}
	if sw.AvailMin < 1 {
		return fmt.Errorf("invalid avail min: %d", sw.AvailMin)
	}
	m.sw = sw
	return nil
}

// Acquire waits for free space and returns the next contiguous region
func (m *Memory) Acquire(ctx context.Context) (Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			return Period{}, err
		}
		if m.closed {
			return Period{}, ErrClosed
		}
		if !m.configured {
			return Period{}, ErrNotConfigured
		}
		if err := m.advance(); err != nil {
			return Period{}, err
		}

		avail := m.cfg.BufferSize - int(m.appl-m.hw)
		if avail >= min(m.sw.AvailMin, m.cfg.BufferSize) || (!m.running && avail > 0) {
			return m.period(avail), nil
		}

		// Only a paced, running device can be short of space
		wait := m.cfg.FramesToDuration(min(m.sw.AvailMin, m.cfg.BufferSize) - avail)
		m.mu.Unlock()
		timer := time.NewTimer(max(wait, time.Millisecond))
		select {
		case <-ctx.Done():
			timer.Stop()
			m.mu.Lock()
			return Period{}, ctx.Err()
		case <-timer.C:
		}
		m.mu.Lock()
	}
}

// period hands out the next region (must hold m.mu)
func (m *Memory) period(avail int) Period {
	offset := int(m.appl % int64(m.cfg.BufferSize))
	frames := min(m.cfg.PeriodSize, avail, m.cfg.BufferSize-offset)

	m.acquiredOffset = offset
	m.acquired = frames
	if m.cfg.Access.MMap() {
		return Period{Areas: m.ring, Offset: offset, Frames: frames}
	}
	return Period{Areas: m.scratch, Offset: 0, Frames: frames}
}

// Release commits frames of the acquired region to the ring
func (m *Memory) Release(frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if frames < 0 || frames > m.acquired {
		return fmt.Errorf("release of %d frames exceeds acquired %d", frames, m.acquired)
	}

	offset := m.acquiredOffset
	if !m.cfg.Access.MMap() {
		src := encode.Region(m.scratch, m.cfg, 0, frames)
		dst := encode.Region(m.ring, m.cfg, offset, frames)
		for i := range dst {
			copy(dst[i], src[i])
		}
	}
	if m.onRelease != nil && frames > 0 {
		m.onRelease(m.cfg, encode.Region(m.ring, m.cfg, offset, frames))
	}

	m.appl += int64(frames)
	m.acquired = 0

	if !m.running && m.appl-m.hw >= int64(m.sw.StartThreshold) {
		m.running = true
		m.startedAt = m.now()
		m.startHw = m.hw
	}
	if m.running && !m.paced {
		m.hw = m.appl
	}
	return nil
}

// advance moves the hardware pointer and detects underruns (must hold m.mu)
func (m *Memory) advance() error {
	if !m.running || !m.paced {
		return nil
	}

	elapsed := m.now().Sub(m.startedAt)
	hw := m.startHw + int64(audio.DurationToFrames(elapsed, m.cfg.Rate))
	if hw < m.appl {
		m.hw = hw
		return nil
	}

	// Buffer drained: stop and re-prepare as a driver would
	m.hw = m.appl
	m.running = false
	m.underruns++
	return ErrUnderrun
}

// Config returns the committed stream configuration
func (m *Memory) Config() audio.StreamConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// SoftwareParams returns the applied software parameters
func (m *Memory) SoftwareParams() hwparams.SoftwareParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sw
}

// Written returns the number of frames released so far
func (m *Memory) Written() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appl
}

// Running reports whether playback has started
func (m *Memory) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Underruns returns how many times the device ran dry
func (m *Memory) Underruns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.underruns
}

// Close releases the ring buffer
func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.ring = nil
	m.scratch = nil
	return nil
}
