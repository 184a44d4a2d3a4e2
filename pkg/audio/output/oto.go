// ABOUTME: Oto-based playback device
// ABOUTME: Streams released periods to a persistent oto player through a pipe
package output

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/hwparams"
	"github.com/ebitengine/oto/v3"
)

var otoFormats = map[audio.Format]oto.Format{
	audio.U8:      oto.FormatUnsignedInt8,
	audio.S16LE:   oto.FormatSignedInt16LE,
	audio.FloatLE: oto.FormatFloat32LE,
}

// oto only allows one context per process
var (
	otoMu      sync.Mutex
	otoCtx     *oto.Context
	otoOptions oto.NewContextOptions
)

// Oto plays through the oto library
type Oto struct {
	hwparams.Refiner

	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	cfg        audio.StreamConfig
	stage      stage
	configured bool
	closed     bool
}

// NewOto creates a new oto device
func NewOto() *Oto {
	return &Oto{}
}

// Name returns the device name
func (o *Oto) Name() string {
	return "oto"
}

// QueryParameterSpace returns what oto accepts
func (o *Oto) QueryParameterSpace() (hwparams.Space, error) {
	return hwparams.Space{
		Resample:   hwparams.ResampleForced,
		Accesses:   []audio.Access{audio.RWInterleaved},
		Formats:    []audio.Format{audio.U8, audio.S16LE, audio.FloatLE},
		Channels:   hwparams.Interval{Min: 1, Max: 2},
		RateRange:  hwparams.Interval{Min: 8000, Max: 192000},
		BufferSize: hwparams.Interval{Min: 64, Max: 1 << 20},
		PeriodSize: hwparams.Interval{Min: 32, Max: 1 << 18},
		Periods:    hwparams.Interval{Min: 2, Max: 64},
		PeriodStep: 1,
	}, nil
}

// Commit creates the oto context and a player reading from a pipe
func (o *Oto) Commit(s hwparams.Space) error {
	cfg, err := s.Resolved()
	if err != nil {
		return err
	}
	format, ok := otoFormats[cfg.Format]
	if !ok {
		return fmt.Errorf("format %s not supported by oto", cfg.Format)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	if err := o.stage.reset(cfg); err != nil {
		return err
	}

	op := oto.NewContextOptions{
		SampleRate:   cfg.Rate,
		ChannelCount: cfg.Channels,
		Format:       format,
		BufferSize:   cfg.FramesToDuration(cfg.BufferSize),
	}
	ctx, err := sharedOtoContext(op)
	if err != nil {
		return err
	}

	o.closePlayer()
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.cfg = cfg
	o.configured = true
	return nil
}

func sharedOtoContext(op oto.NewContextOptions) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoOptions.SampleRate != op.SampleRate || otoOptions.ChannelCount != op.ChannelCount || otoOptions.Format != op.Format {
			return nil, fmt.Errorf("oto context already running at %dHz %dch, cannot reinitialize", otoOptions.SampleRate, otoOptions.ChannelCount)
		}
		return otoCtx, nil
	}

	ctx, readyChan, err := oto.NewContext(&op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	otoCtx = ctx
	otoOptions = op
	return ctx, nil
}

// Start begins playback from the pipe
func (o *Oto) Start(sw hwparams.SoftwareParams) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.configured {
		return ErrNotConfigured
	}
	o.player.Play()
	log.Printf("Playback started (oto, %s)", o.cfg)
	return nil
}

// Acquire returns the staging period. Backpressure comes from the pipe in Release.
func (o *Oto) Acquire(ctx context.Context) (Period, error) {
	if err := ctx.Err(); err != nil {
		return Period{}, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return Period{}, ErrClosed
	}
	if !o.configured {
		return Period{}, ErrNotConfigured
	}
	return o.stage.period(o.cfg.PeriodSize), nil
}

// Release writes frames to the player, blocking until it has read them
func (o *Oto) Release(frames int) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	data, err := o.stage.take(frames)
	w := o.pipeWriter
	o.mu.Unlock()
	if err != nil {
		return err
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close stops the player. The shared context stays alive for the process.
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closePlayer()
	o.closed = true
	return nil
}

// closePlayer must hold o.mu
func (o *Oto) closePlayer() {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	o.configured = false
}
