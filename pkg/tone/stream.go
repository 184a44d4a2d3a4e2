// ABOUTME: Sine tone write loop
// ABOUTME: Acquires device periods, fills them with the tone and recovers from underruns
package tone

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/decode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/output"
)

// Stats is a snapshot of stream progress
type Stats struct {
	Frames    int64 // frames handed to the device
	Periods   int64 // completed periods
	Underruns int
	Frequency float64
	Level     float64 // peak of the last chunk on channel 0, 0..1
	Elapsed   time.Duration
}

// Stream keeps a device fed with a sine tone
type Stream struct {
	dev    output.Device
	cfg    Config
	stream audio.StreamConfig
	space  hwparams.Space
	sw     hwparams.SoftwareParams

	mu        sync.Mutex
	phase     float64
	frequency float64
	stats     Stats
	onPeriod  func(Stats)
}

// Open negotiates cfg on dev and applies the derived software parameters
func Open(dev output.Device, cfg Config) (*Stream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log.Printf("Playback device is %s", dev.Name())
	log.Printf("Stream parameters are %dHz, %s, %d channels", cfg.Rate, cfg.Format, cfg.Channels)
	log.Printf("Sine wave rate is %.4fHz", cfg.Frequency)

	stream, space, err := hwparams.NegotiateSpace(dev, cfg.Request())
	if err != nil {
		if cfg.Verbose {
			log.Printf("[DEBUG] parameter space at failure:\n%s", space)
		}
		return nil, err
	}

	sw := hwparams.DeriveSoftware(stream, cfg.PeriodEvent)
	if err := dev.Start(sw); err != nil {
		return nil, fmt.Errorf("unable to set sw params for playback: %w", err)
	}

	log.Printf("Using transfer method: %s", stream.Access)
	log.Printf("Negotiated %s", stream)
	if cfg.Verbose {
		log.Printf("[DEBUG] hardware parameters:\n%s", space)
		log.Printf("[DEBUG] software parameters: start_threshold=%d avail_min=%d period_event=%v",
			sw.StartThreshold, sw.AvailMin, sw.PeriodEvent)
	}

	s := &Stream{
		dev:       dev,
		cfg:       cfg,
		stream:    stream,
		space:     space,
		sw:        sw,
		frequency: cfg.Frequency,
	}
	s.stats.Frequency = cfg.Frequency
	return s, nil
}

// OnPeriod registers a callback run after every completed period.
// It runs on the write loop goroutine and must not block.
func (s *Stream) OnPeriod(fn func(Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPeriod = fn
}

// SetFrequency changes the tone from the next chunk on, keeping the phase continuous
func (s *Stream) SetFrequency(hz float64) error {
	if hz < 0 || math.IsNaN(hz) || math.IsInf(hz, 0) {
		return fmt.Errorf("invalid frequency: %v", hz)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frequency = hz
	return nil
}

// Frequency returns the current tone frequency
func (s *Stream) Frequency() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frequency
}

// Run fills the device until ctx is cancelled. A cancelled context is not an error.
func (s *Stream) Run(ctx context.Context) error {
	for {
		p, err := s.dev.Acquire(ctx)
		if err != nil {
			if errors.Is(err, output.ErrUnderrun) {
				s.underrun()
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("acquire failed: %w", err)
		}

		s.mu.Lock()
		phase, freq := s.phase, s.frequency
		s.mu.Unlock()

		if err := encode.Sine(p.Areas, p.Offset, p.Frames, &phase, s.stream, freq); err != nil {
			return fmt.Errorf("generate failed: %w", err)
		}
		level := peak(p, s.stream.Format)

		if err := s.dev.Release(p.Frames); err != nil {
			if errors.Is(err, output.ErrUnderrun) {
				s.underrun()
				continue
			}
			return fmt.Errorf("write failed: %w", err)
		}

		s.advance(phase, freq, level, p.Frames)
	}
}

// advance records a released chunk and fires period callbacks
func (s *Stream) advance(phase, freq, level float64, frames int) {
	s.mu.Lock()
	s.phase = phase
	s.stats.Frames += int64(frames)
	s.stats.Frequency = freq
	s.stats.Level = level
	s.stats.Elapsed = s.stream.FramesToDuration(int(s.stats.Frames))

	periods := s.stats.Frames / int64(s.stream.PeriodSize)
	completed := periods - s.stats.Periods
	s.stats.Periods = periods
	stats, fn := s.stats, s.onPeriod
	s.mu.Unlock()

	if fn == nil {
		return
	}
	for i := int64(0); i < completed; i++ {
		fn(stats)
	}
}

func (s *Stream) underrun() {
	s.mu.Lock()
	s.stats.Underruns++
	n := s.stats.Underruns
	s.mu.Unlock()
	log.Printf("Underrun occurred (%d total), stream re-prepared", n)
}

// peak returns the largest magnitude written to channel 0
func peak(p output.Period, f audio.Format) float64 {
	if len(p.Areas) == 0 || p.Frames == 0 {
		return 0
	}
	level := 0.0
	for _, v := range decode.Channel(p.Areas[0], f, p.Offset, p.Frames) {
		level = max(level, math.Abs(v))
	}
	return min(level, 1)
}

// Stats returns a snapshot of stream progress
func (s *Stream) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Phase returns the phase carried into the next chunk
func (s *Stream) Phase() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// Config returns the negotiated stream configuration
func (s *Stream) Config() audio.StreamConfig {
	return s.stream
}

// SoftwareParams returns the applied software parameters
func (s *Stream) SoftwareParams() hwparams.SoftwareParams {
	return s.sw
}

// Space returns the committed parameter space
func (s *Stream) Space() hwparams.Space {
	return s.space
}

// Close releases the device
func (s *Stream) Close() error {
	return s.dev.Close()
}
