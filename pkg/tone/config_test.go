// ABOUTME: Tests for tone stream configuration
// ABOUTME: Covers defaults, validation and range clamping
package tone

import (
	"math"
	"testing"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, audio.S16LE, cfg.Format)
	assert.Equal(t, 44100, cfg.Rate)
	assert.Equal(t, 1, cfg.Channels)
	assert.Equal(t, 500*time.Millisecond, cfg.BufferTime)
	assert.Equal(t, 100*time.Millisecond, cfg.PeriodTime)
	assert.Equal(t, audio.RWInterleaved, cfg.Access)
	assert.True(t, cfg.Resample)
	assert.Equal(t, 440.0, cfg.Frequency)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"bad format", func(c *Config) { c.Format = audio.Format{Name: "X", Width: 12, PhysicalWidth: 16} }},
		{"rate too low", func(c *Config) { c.Rate = 1000 }},
		{"rate too high", func(c *Config) { c.Rate = 400000 }},
		{"no channels", func(c *Config) { c.Channels = 0 }},
		{"zero buffer", func(c *Config) { c.BufferTime = 0 }},
		{"period exceeds buffer", func(c *Config) { c.PeriodTime = time.Second }},
		{"negative frequency", func(c *Config) { c.Frequency = -1 }},
		{"NaN frequency", func(c *Config) { c.Frequency = math.NaN() }},
		{"infinite frequency", func(c *Config) { c.Frequency = math.Inf(1) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfigClamp(t *testing.T) {
	cfg := Config{
		Rate:       1,
		Channels:   5000,
		BufferTime: 10 * time.Second,
		PeriodTime: time.Microsecond,
		Frequency:  20,
	}
	cfg.Clamp()

	assert.Equal(t, MinRate, cfg.Rate)
	assert.Equal(t, MaxChannels, cfg.Channels)
	assert.Equal(t, MaxBufferTime, cfg.BufferTime)
	assert.Equal(t, MinBufferTime, cfg.PeriodTime)
	assert.Equal(t, MinFrequency, cfg.Frequency)
	assert.Equal(t, MaxFrequency, ClampFrequency(9000))
	assert.Equal(t, 440.0, ClampFrequency(440))
}

func TestConfigRequest(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Access = audio.MMapNonInterleaved
	cfg.Resample = false

	req := cfg.Request()
	assert.Equal(t, cfg.Format, req.Format)
	assert.Equal(t, cfg.Rate, req.Rate)
	assert.Equal(t, cfg.Channels, req.Channels)
	assert.Equal(t, cfg.BufferTime, req.BufferTime)
	assert.Equal(t, cfg.PeriodTime, req.PeriodTime)
	assert.Equal(t, audio.MMapNonInterleaved, req.Access)
	assert.False(t, req.Resample)
}
