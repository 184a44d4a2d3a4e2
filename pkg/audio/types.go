// ABOUTME: Audio type definitions
// ABOUTME: Defines sample formats, stream configuration and channel areas
package audio

import (
	"fmt"
	"time"
)

// Encoding is the numeric representation of a sample
type Encoding int

const (
	Signed Encoding = iota
	Unsigned
	Float
)

func (e Encoding) String() string {
	switch e {
	case Signed:
		return "signed"
	case Unsigned:
		return "unsigned"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// ByteOrder is the order of bytes inside a physical sample slot
type ByteOrder int

const (
	LittleEndian ByteOrder = iota
	BigEndian
)

func (b ByteOrder) String() string {
	if b == BigEndian {
		return "big-endian"
	}
	return "little-endian"
}

// Format describes how one sample is stored
type Format struct {
	Name          string
	Encoding      Encoding
	Width         int // significant bits
	PhysicalWidth int // bits allocated per sample slot
	ByteOrder     ByteOrder
}

// Bytes returns the number of significant bytes per sample
func (f Format) Bytes() int {
	return f.Width / 8
}

// PhysicalBytes returns the size of one sample slot in bytes
func (f Format) PhysicalBytes() int {
	return f.PhysicalWidth / 8
}

// MaxValue returns the largest positive integer sample value (2^(width-1) - 1)
func (f Format) MaxValue() int64 {
	return int64(1)<<(f.Width-1) - 1
}

// Validate checks the width invariants
func (f Format) Validate() error {
	if f.Width <= 0 || f.Width%8 != 0 {
		return fmt.Errorf("format %s: width %d is not a positive multiple of 8", f.Name, f.Width)
	}
	if f.PhysicalWidth%8 != 0 || f.PhysicalWidth < f.Width {
		return fmt.Errorf("format %s: physical width %d must be a multiple of 8 and >= width %d",
			f.Name, f.PhysicalWidth, f.Width)
	}
	if f.PhysicalWidth > 64 {
		return fmt.Errorf("format %s: physical width %d exceeds 64 bits", f.Name, f.PhysicalWidth)
	}
	if f.Encoding == Float && f.Width != 32 {
		return fmt.Errorf("format %s: float samples must be 32 bits wide", f.Name)
	}
	return nil
}

func (f Format) String() string {
	if f.Name != "" {
		return f.Name
	}
	return fmt.Sprintf("%s%d/%d %s", f.Encoding, f.Width, f.PhysicalWidth, f.ByteOrder)
}

// Access is the buffer transfer and layout mode
type Access int

const (
	MMapInterleaved Access = iota
	MMapNonInterleaved
	RWInterleaved
	RWNonInterleaved
)

var accessNames = map[Access]string{
	MMapInterleaved:    "MMAP_INTERLEAVED",
	MMapNonInterleaved: "MMAP_NONINTERLEAVED",
	RWInterleaved:      "RW_INTERLEAVED",
	RWNonInterleaved:   "RW_NONINTERLEAVED",
}

func (a Access) String() string {
	if name, ok := accessNames[a]; ok {
		return name
	}
	return fmt.Sprintf("Access(%d)", int(a))
}

// Interleaved reports whether all channels share one buffer
func (a Access) Interleaved() bool {
	return a == MMapInterleaved || a == RWInterleaved
}

// MMap reports whether the device exposes its ring buffer directly
func (a Access) MMap() bool {
	return a == MMapInterleaved || a == MMapNonInterleaved
}

// StreamConfig is the negotiated stream setup. It is not modified after negotiation.
type StreamConfig struct {
	Format     Format
	Access     Access
	Channels   int
	Rate       int // Hz
	BufferSize int // frames
	PeriodSize int // frames
}

// Validate checks the invariants of a negotiated configuration
func (c StreamConfig) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if c.Channels < 1 {
		return fmt.Errorf("invalid channel count: %d", c.Channels)
	}
	if c.Rate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.Rate)
	}
	if c.PeriodSize <= 0 || c.BufferSize < c.PeriodSize {
		return fmt.Errorf("invalid geometry: buffer %d frames, period %d frames", c.BufferSize, c.PeriodSize)
	}
	return nil
}

// FrameBytes returns the size of one interleaved frame in bytes
func (c StreamConfig) FrameBytes() int {
	return c.Channels * c.Format.PhysicalBytes()
}

// FramesToDuration converts a frame count to playback time
func (c StreamConfig) FramesToDuration(frames int) time.Duration {
	return time.Duration(int64(frames) * int64(time.Second) / int64(c.Rate))
}

// DurationToFrames converts playback time to a frame count, rounded to nearest
func DurationToFrames(d time.Duration, rate int) int {
	return int((int64(d)*int64(rate) + int64(time.Second)/2) / int64(time.Second))
}

func (c StreamConfig) String() string {
	return fmt.Sprintf("%s %dHz %dch %s buffer=%d period=%d",
		c.Format, c.Rate, c.Channels, c.Access, c.BufferSize, c.PeriodSize)
}

// ChannelArea locates one channel's samples inside a borrowed buffer.
// First and Step are in bits; the area is only valid for a single encode call.
type ChannelArea struct {
	Buf   []byte
	First int
	Step  int
}
