// ABOUTME: Tone stream configuration
// ABOUTME: Defaults, validation and command line range clamping
package tone

import (
	"fmt"
	"math"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
)

// Limits accepted on the command line
const (
	MinFrequency  = 50.0
	MaxFrequency  = 5000.0
	MinRate       = 4000
	MaxRate       = 196000
	MinChannels   = 1
	MaxChannels   = 1024
	MinBufferTime = time.Millisecond
	MaxBufferTime = time.Second
)

// Config holds the tone and stream setup
type Config struct {
	// Format is the sample format requested from the device.
	// Default: S16_LE
	Format audio.Format

	// Rate is the stream rate in Hz. The device must honour it exactly.
	// Default: 44100
	Rate int

	// Channels all carry the same tone.
	// Default: 1
	Channels int

	// BufferTime and PeriodTime are the requested ring buffer geometry.
	// Default: 500ms and 100ms
	BufferTime time.Duration
	PeriodTime time.Duration

	// Access selects mmap or read/write transfers and the channel layout.
	// Default: RW_INTERLEAVED
	Access audio.Access

	// Resample allows device-side rate conversion.
	// Default: true
	Resample bool

	// Frequency of the tone in Hz.
	// Default: 440
	Frequency float64

	// PeriodEvent wakes the writer on period boundaries instead of avail_min.
	PeriodEvent bool

	// Verbose dumps the negotiated parameter space.
	Verbose bool
}

// DefaultConfig returns the classic 440Hz test tone setup
func DefaultConfig() Config {
	req := hwparams.DefaultRequest()
	return Config{
		Format:     req.Format,
		Rate:       req.Rate,
		Channels:   req.Channels,
		BufferTime: req.BufferTime,
		PeriodTime: req.PeriodTime,
		Access:     req.Access,
		Resample:   req.Resample,
		Frequency:  440,
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return fmt.Errorf("format: %w", err)
	}
	if c.Rate < MinRate || c.Rate > MaxRate {
		return fmt.Errorf("rate must be in [%d, %d], got %d", MinRate, MaxRate, c.Rate)
	}
	if c.Channels < MinChannels || c.Channels > MaxChannels {
		return fmt.Errorf("channels must be in [%d, %d], got %d", MinChannels, MaxChannels, c.Channels)
	}
	if c.BufferTime <= 0 || c.PeriodTime <= 0 {
		return fmt.Errorf("buffer and period time must be positive, got %v and %v", c.BufferTime, c.PeriodTime)
	}
	if c.PeriodTime > c.BufferTime {
		return fmt.Errorf("period time %v exceeds buffer time %v", c.PeriodTime, c.BufferTime)
	}
	if c.Frequency < 0 || math.IsNaN(c.Frequency) || math.IsInf(c.Frequency, 0) {
		return fmt.Errorf("frequency must be a non-negative number, got %v", c.Frequency)
	}
	return nil
}

// Clamp forces the numeric settings into the command line ranges
func (c *Config) Clamp() {
	c.Rate = min(max(c.Rate, MinRate), MaxRate)
	c.Channels = min(max(c.Channels, MinChannels), MaxChannels)
	c.BufferTime = min(max(c.BufferTime, MinBufferTime), MaxBufferTime)
	c.PeriodTime = min(max(c.PeriodTime, MinBufferTime), MaxBufferTime)
	c.Frequency = ClampFrequency(c.Frequency)
}

// ClampFrequency limits hz to the playable test tone range
func ClampFrequency(hz float64) float64 {
	return min(max(hz, MinFrequency), MaxFrequency)
}

// Request converts the configuration into a negotiation request
func (c *Config) Request() hwparams.Request {
	return hwparams.Request{
		Format:     c.Format,
		Rate:       c.Rate,
		Channels:   c.Channels,
		BufferTime: c.BufferTime,
		PeriodTime: c.PeriodTime,
		Access:     c.Access,
		Resample:   c.Resample,
	}
}
