//go:build linux

// ABOUTME: ALSA hw device back-end for Linux
// ABOUTME: Talks to the kernel PCM interface through gen2brain/alsa
package output

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"syscall"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/gen2brain/alsa"
)

// ALSA is a raw hw:C,D playback device. It runs at native rates only.
type ALSA struct {
	hwparams.Refiner

	card, device uint

	mu         sync.Mutex
	pcm        *alsa.PCM
	config     alsa.Config
	flags      alsa.PcmFlag
	cfg        audio.StreamConfig
	stage      stage
	configured bool
	closed     bool
}

// NewALSA opens the description of an ALSA hw device ("hw:C,D", "hw:C" or "default")
func NewALSA(name string) (Device, error) {
	card, device, err := parseHWName(name)
	if err != nil {
		return nil, err
	}
	return &ALSA{card: card, device: device}, nil
}

func parseHWName(name string) (uint, uint, error) {
	if name == "" || name == "default" {
		return 0, 0, nil
	}
	rest, ok := strings.CutPrefix(name, "hw:")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported ALSA device name %q (want hw:CARD,DEVICE)", name)
	}
	cardStr, devStr, hasDev := strings.Cut(rest, ",")
	card, err := strconv.ParseUint(cardStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid card in %q: %w", name, err)
	}
	var device uint64
	if hasDev {
		device, err = strconv.ParseUint(devStr, 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid device in %q: %w", name, err)
		}
	}
	return uint(card), uint(device), nil
}

// Name returns the hw device name
func (a *ALSA) Name() string {
	return fmt.Sprintf("hw:%d,%d", a.card, a.device)
}

// alsaFormat maps a sample format to its kernel format code
func alsaFormat(f audio.Format) (alsa.PcmFormat, bool) {
	for code, name := range alsa.PcmParamFormatNames {
		if name == f.Name {
			return alsa.PcmFormat(code), true
		}
	}
	return 0, false
}

// Kernel access bits
const (
	accessMMapInterleaved = 0
	accessRWInterleaved   = 3
)

// QueryParameterSpace reads the refined hardware parameters of the device
func (a *ALSA) QueryParameterSpace() (hwparams.Space, error) {
	params, err := alsa.PcmParamsGetRefined(a.card, a.device, alsa.PCM_OUT)
	if err != nil {
		return hwparams.Space{}, fmt.Errorf("%s: %w", a.Name(), err)
	}

	s := hwparams.Space{
		Resample:   hwparams.ResampleNone,
		PeriodStep: 1,
	}

	for _, f := range audio.Formats() {
		if code, ok := alsaFormat(f); ok && params.FormatIsSupported(code) {
			s.Formats = append(s.Formats, f)
		}
	}

	mask, err := params.Mask(alsa.SNDRV_PCM_HW_PARAM_ACCESS)
	if err != nil {
		return hwparams.Space{}, fmt.Errorf("access mask: %w", err)
	}
	if mask.Test(accessMMapInterleaved) {
		s.Accesses = append(s.Accesses, audio.MMapInterleaved)
	}
	if mask.Test(accessRWInterleaved) {
		s.Accesses = append(s.Accesses, audio.RWInterleaved)
	}

	for _, r := range []struct {
		dst *hwparams.Interval
		get func() (hwparams.Interval, error)
	}{
		{&s.Channels, func() (hwparams.Interval, error) {
			return paramRange(params.RangeMin, params.RangeMax, alsa.SNDRV_PCM_HW_PARAM_CHANNELS)
		}},
		{&s.RateRange, func() (hwparams.Interval, error) {
			return paramRange(params.RangeMin, params.RangeMax, alsa.SNDRV_PCM_HW_PARAM_RATE)
		}},
		{&s.BufferSize, func() (hwparams.Interval, error) {
			return paramRange(params.RangeMin, params.RangeMax, alsa.SNDRV_PCM_HW_PARAM_BUFFER_SIZE)
		}},
		{&s.PeriodSize, func() (hwparams.Interval, error) {
			return paramRange(params.RangeMin, params.RangeMax, alsa.SNDRV_PCM_HW_PARAM_PERIOD_SIZE)
		}},
		{&s.Periods, func() (hwparams.Interval, error) {
			return paramRange(params.RangeMin, params.RangeMax, alsa.SNDRV_PCM_HW_PARAM_PERIODS)
		}},
	} {
		if *r.dst, err = r.get(); err != nil {
			return hwparams.Space{}, err
		}
	}
	return s, nil
}

type integer interface {
	~int | ~int32 | ~int64 | ~uint | ~uint32 | ~uint64
}

// paramRange reads the bounds of an interval parameter
func paramRange[P any, V integer](minFn, maxFn func(P) (V, error), param P) (hwparams.Interval, error) {
	lo, err := minFn(param)
	if err != nil {
		return hwparams.Interval{}, err
	}
	hi, err := maxFn(param)
	if err != nil {
		return hwparams.Interval{}, err
	}
	return hwparams.Interval{Min: int(lo), Max: int(hi)}, nil
}

// Commit opens the PCM with the fully restricted configuration
func (a *ALSA) Commit(s hwparams.Space) error {
	cfg, err := s.Resolved()
	if err != nil {
		return err
	}
	format, ok := alsaFormat(cfg.Format)
	if !ok {
		return fmt.Errorf("format %s has no ALSA code", cfg.Format)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if err := a.stage.reset(cfg); err != nil {
		return err
	}

	sw := hwparams.DeriveSoftware(cfg, false)
	a.config = alsa.Config{
		Channels:       uint32(cfg.Channels),
		Rate:           uint32(cfg.Rate),
		PeriodSize:     uint32(cfg.PeriodSize),
		PeriodCount:    uint32(max(cfg.BufferSize/cfg.PeriodSize, 2)),
		Format:         format,
		StartThreshold: uint32(sw.StartThreshold),
	}
	a.flags = alsa.PCM_OUT
	if cfg.Access.MMap() {
		a.flags |= alsa.PCM_MMAP
	}
	a.cfg = cfg
	if err := a.open(); err != nil {
		return err
	}
	a.configured = true
	return nil
}

// open must hold a.mu
func (a *ALSA) open() error {
	if a.pcm != nil {
		a.pcm.Close()
		a.pcm = nil
	}
	pcm, err := alsa.PcmOpen(a.card, a.device, a.flags, &a.config)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.Name(), err)
	}
	a.pcm = pcm
	return nil
}

// Start reopens the PCM when the start threshold differs from the default
func (a *ALSA) Start(sw hwparams.SoftwareParams) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.configured {
		return ErrNotConfigured
	}
	if uint32(sw.StartThreshold) != a.config.StartThreshold {
		a.config.StartThreshold = uint32(sw.StartThreshold)
		if err := a.open(); err != nil {
			return err
		}
	}
	if err := a.pcm.Prepare(); err != nil {
		return fmt.Errorf("prepare %s: %w", a.Name(), err)
	}
	return nil
}

// Acquire returns the staging period; the kernel write blocks for space
func (a *ALSA) Acquire(ctx context.Context) (Period, error) {
	if err := ctx.Err(); err != nil {
		return Period{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return Period{}, ErrClosed
	}
	if !a.configured {
		return Period{}, ErrNotConfigured
	}
	return a.stage.period(a.cfg.PeriodSize), nil
}

// Release writes frames to the device, recovering from underruns
func (a *ALSA) Release(frames int) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}

	data, err := a.stage.take(frames)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	if a.flags&alsa.PCM_MMAP != 0 {
		_, err = a.pcm.MmapWrite(data)
	} else {
		_, err = a.pcm.Write(data)
	}
	if err == nil {
		return nil
	}

	if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.EBADFD) {
		if perr := a.pcm.Prepare(); perr != nil {
			return fmt.Errorf("can't recover from underrun, prepare failed: %w", perr)
		}
		return ErrUnderrun
	}
	return fmt.Errorf("write error: %w", err)
}

// Close releases the PCM
func (a *ALSA) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	if a.pcm == nil {
		return nil
	}
	err := a.pcm.Close()
	a.pcm = nil
	if err != nil {
		log.Printf("Warning: %s close error: %v", a.Name(), err)
	}
	return err
}
