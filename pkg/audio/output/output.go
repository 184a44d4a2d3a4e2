// ABOUTME: Playback device interface and back-end factory
// ABOUTME: Common period acquire/release contract shared by all back-ends
package output

import (
	"context"
	"errors"
	"fmt"
	"log"
	"runtime"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
)

var (
	// ErrUnderrun reports that the device ran dry. The device has already
	// been re-prepared when this is returned, so the caller can keep writing.
	ErrUnderrun = errors.New("underrun occurred")
	// ErrClosed is returned by operations on a closed device
	ErrClosed = errors.New("device closed")
	// ErrNotConfigured is returned before hardware parameters are committed
	ErrNotConfigured = errors.New("device not configured")
)

// Period is a writable region of the device buffer
type Period struct {
	Areas  []audio.ChannelArea
	Offset int // first writable frame inside Areas
	Frames int
}

// Device is a playback device that hands out regions to fill
type Device interface {
	hwparams.Device

	// Start applies software parameters. Call once after negotiation.
	Start(sw hwparams.SoftwareParams) error

	// Acquire blocks until at least AvailMin frames are free
	Acquire(ctx context.Context) (Period, error)

	// Release hands the first frames of the acquired period to the device
	Release(frames int) error

	Name() string
	Close() error
}

// Backend selects a device implementation
type Backend string

const (
	BackendAuto   Backend = "auto"
	BackendMemory Backend = "memory"
	BackendNull   Backend = "null"
	BackendALSA   Backend = "alsa"
	BackendMalgo  Backend = "malgo"
	BackendOto    Backend = "oto"
)

// Backends lists the selectable back-ends
func Backends() []Backend {
	return []Backend{BackendAuto, BackendMemory, BackendNull, BackendALSA, BackendMalgo, BackendOto}
}

// Config selects and configures a device
type Config struct {
	Backend Backend
	// Device is the back-end specific device name (e.g. "hw:0,0" for ALSA)
	Device string
	// Capabilities of the simulated device (memory and null back-ends)
	Capabilities Capabilities
	// Paced makes the simulated device consume frames in real time
	Paced bool
}

// DefaultConfig returns a configuration that plays through the best local back-end
func DefaultConfig() Config {
	return Config{
		Backend:      BackendAuto,
		Device:       "default",
		Capabilities: DefaultCapabilities(),
		Paced:        true,
	}
}

// New creates a device for the configured back-end
func New(cfg Config) (Device, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(cfg.Capabilities, cfg.Paced), nil
	case BackendNull:
		m := NewMemory(cfg.Capabilities, cfg.Paced)
		m.name = "null"
		return m, nil
	case BackendALSA:
		return NewALSA(cfg.Device)
	case BackendMalgo:
		return NewMalgo(cfg.Device), nil
	case BackendOto:
		return NewOto(), nil
	case BackendAuto, "":
		if runtime.GOOS == "linux" && cfg.Device != "" && cfg.Device != "default" {
			dev, err := NewALSA(cfg.Device)
			if err == nil {
				return dev, nil
			}
			log.Printf("ALSA device %s unavailable (%v), falling back to malgo", cfg.Device, err)
		}
		return NewMalgo(cfg.Device), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %q", cfg.Backend)
	}
}
