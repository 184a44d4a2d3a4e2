// ABOUTME: Malgo-based playback device
// ABOUTME: Feeds a miniaudio callback from a byte ring buffer
package output

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/gen2brain/malgo"
)

var malgoFormats = map[audio.Format]malgo.FormatType{
	audio.U8:      malgo.FormatU8,
	audio.S16LE:   malgo.FormatS16,
	audio.S24_3LE: malgo.FormatS24,
	audio.S32LE:   malgo.FormatS32,
	audio.FloatLE: malgo.FormatF32,
}

// Malgo plays through miniaudio. The system mixer always converts rates,
// so resampling cannot be disabled.
type Malgo struct {
	hwparams.Refiner

	name string

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	cfg        audio.StreamConfig
	sw         hwparams.SoftwareParams
	ringBuffer *RingBuffer
	stage      stage
	configured bool
	closed     bool

	running  atomic.Bool
	underrun atomic.Bool
}

// NewMalgo creates a malgo device. The name is informational; miniaudio
// picks the system default playback device.
func NewMalgo(name string) *Malgo {
	if name == "" {
		name = "default"
	}
	return &Malgo{name: name}
}

// Name returns the device name
func (m *Malgo) Name() string {
	return "malgo:" + m.name
}

// QueryParameterSpace returns what miniaudio accepts
func (m *Malgo) QueryParameterSpace() (hwparams.Space, error) {
	formats := make([]audio.Format, 0, len(malgoFormats))
	for _, f := range audio.Formats() {
		if _, ok := malgoFormats[f]; ok {
			formats = append(formats, f)
		}
	}

	return hwparams.Space{
		Resample:   hwparams.ResampleForced,
		Accesses:   []audio.Access{audio.RWInterleaved},
		Formats:    formats,
		Channels:   hwparams.Interval{Min: 1, Max: 32},
		RateRange:  hwparams.Interval{Min: 8000, Max: 384000},
		BufferSize: hwparams.Interval{Min: 64, Max: 1 << 20},
		PeriodSize: hwparams.Interval{Min: 32, Max: 1 << 18},
		Periods:    hwparams.Interval{Min: 2, Max: 16},
		PeriodStep: 1,
	}, nil
}

// Commit initializes the miniaudio device without starting it
func (m *Malgo) Commit(s hwparams.Space) error {
	cfg, err := s.Resolved()
	if err != nil {
		return err
	}
	format, ok := malgoFormats[cfg.Format]
	if !ok {
		return fmt.Errorf("format %s not supported by malgo", cfg.Format)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if err := m.stage.reset(cfg); err != nil {
		return err
	}
	if m.device != nil {
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.ringBuffer = NewRingBuffer(cfg.BufferSize * cfg.FrameBytes())

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.Rate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.PeriodSize)
	deviceConfig.Periods = uint32(cfg.BufferSize / cfg.PeriodSize)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		m.dataCallback(pOutputSample)
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	m.device = device
	m.cfg = cfg
	m.sw = hwparams.DeriveSoftware(cfg, false)
	m.running.Store(false)
	m.configured = true
	return nil
}

// Start applies software parameters
func (m *Malgo) Start(sw hwparams.SoftwareParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.configured {
		return ErrNotConfigured
	}
	m.sw = sw
	return nil
}

// dataCallback is called by malgo to fill the audio output buffer
func (m *Malgo) dataCallback(pOutput []byte) {
	n := m.ringBuffer.Read(pOutput)
	if n < len(pOutput) && m.running.Load() {
		m.underrun.Store(true)
	}
}

// Acquire waits until the ring buffer has room for AvailMin frames
func (m *Malgo) Acquire(ctx context.Context) (Period, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Period{}, err
		}
		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			return Period{}, ErrClosed
		}
		if !m.configured {
			m.mu.Unlock()
			return Period{}, ErrNotConfigured
		}
		if m.underrun.Swap(false) {
			m.mu.Unlock()
			return Period{}, ErrUnderrun
		}

		fb := m.cfg.FrameBytes()
		free := m.ringBuffer.Free() / fb
		need := min(m.sw.AvailMin, m.cfg.BufferSize)
		if free >= need || (!m.running.Load() && free > 0) {
			p := m.stage.period(free)
			m.mu.Unlock()
			return p, nil
		}
		space := m.ringBuffer.Space()
		periodTime := m.cfg.FramesToDuration(m.cfg.PeriodSize)
		m.mu.Unlock()

		select {
		case <-ctx.Done():
			return Period{}, ctx.Err()
		case <-space:
		case <-time.After(periodTime):
		}
	}
}

// Release queues frames and starts the device once the start threshold is reached
func (m *Malgo) Release(frames int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	data, err := m.stage.take(frames)
	if err != nil {
		return err
	}
	if n := m.ringBuffer.Write(data); n < len(data) {
		return fmt.Errorf("ring buffer overflow: wrote %d of %d bytes", n, len(data))
	}

	if !m.running.Load() && m.ringBuffer.Len()/m.cfg.FrameBytes() >= m.sw.StartThreshold {
		if err := m.device.Start(); err != nil {
			return fmt.Errorf("failed to start device: %w", err)
		}
		m.running.Store(true)
		log.Printf("Playback started (%s, %s)", m.Name(), m.cfg)
	}
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	m.closed = true
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if m.running.Load() {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
	}
	m.device.Uninit()
	m.device = nil
	m.running.Store(false)
	m.configured = false
}
