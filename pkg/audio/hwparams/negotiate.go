// ABOUTME: Hardware parameter negotiation against a playback device
// ABOUTME: Runs the ordered restrict/verify steps and derives buffer geometry
package hwparams

import (
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
)

// Device exposes the parameter negotiation primitives of a playback device
type Device interface {
	// QueryParameterSpace returns every configuration the device supports
	QueryParameterSpace() (Space, error)

	RestrictResample(s Space, allowed bool) (Space, error)
	RestrictAccess(s Space, mode audio.Access) (Space, error)
	RestrictFormat(s Space, f audio.Format) (Space, error)
	RestrictChannels(s Space, n int) (Space, error)

	// RestrictRateNear returns the supported rate nearest to hz
	RestrictRateNear(s Space, hz int) (Space, int, error)

	// RestrictBufferTimeNear returns the buffer size in frames nearest to d
	RestrictBufferTimeNear(s Space, d time.Duration) (Space, int, error)

	// RestrictPeriodTimeNear returns the period size in frames nearest to d
	RestrictPeriodTimeNear(s Space, d time.Duration) (Space, int, error)

	// Commit applies a fully restricted space to the device
	Commit(s Space) error
}

// Request is the desired stream setup
type Request struct {
	Format     audio.Format
	Rate       int
	Channels   int
	BufferTime time.Duration
	PeriodTime time.Duration
	Access     audio.Access
	Resample   bool
}

// DefaultRequest returns the classic test tone setup
func DefaultRequest() Request {
	return Request{
		Format:     audio.S16LE,
		Rate:       44100,
		Channels:   1,
		BufferTime: 500 * time.Millisecond,
		PeriodTime: 100 * time.Millisecond,
		Access:     audio.RWInterleaved,
		Resample:   true,
	}
}

// Negotiate fixes the stream configuration on dev.
// It stops at the first failing step and never commits a partial setup.
func Negotiate(dev Device, req Request) (audio.StreamConfig, error) {
	cfg, _, err := NegotiateSpace(dev, req)
	return cfg, err
}

// NegotiateSpace is Negotiate that also returns the committed space
func NegotiateSpace(dev Device, req Request) (audio.StreamConfig, Space, error) {
	fail := func(s Space, err *Error) (audio.StreamConfig, Space, error) {
		return audio.StreamConfig{}, s, err
	}

	s, err := dev.QueryParameterSpace()
	if err != nil {
		return fail(s, stepError(NoConfiguration, err, "broken configuration for playback: no configurations available"))
	}
	if s.Empty() {
		return fail(s, stepError(NoConfiguration, nil, "broken configuration for playback: no configurations available"))
	}

	if s, err = dev.RestrictResample(s, req.Resample); err != nil {
		return fail(s, stepError(ResampleUnsupported, err, "resampling setup failed for playback"))
	}

	if s, err = dev.RestrictAccess(s, req.Access); err != nil {
		return fail(s, stepError(AccessUnsupported, err, "access type %s not available for playback", req.Access))
	}

	if s, err = dev.RestrictFormat(s, req.Format); err != nil {
		return fail(s, stepError(FormatUnsupported, err, "sample format %s not available for playback", req.Format))
	}

	if s, err = dev.RestrictChannels(s, req.Channels); err != nil {
		return fail(s, stepError(ChannelCountUnsupported, err, "channels count (%d) not available for playback", req.Channels))
	}

	s, rate, err := dev.RestrictRateNear(s, req.Rate)
	if err != nil {
		return fail(s, stepError(RateMismatch, err, "rate %dHz not available for playback", req.Rate))
	}
	// Phase steps are computed from the requested rate, so no substitution
	if rate != req.Rate {
		return fail(s, stepError(RateMismatch, nil, "rate doesn't match (requested %dHz, got %dHz)", req.Rate, rate))
	}

	s, bufferSize, err := dev.RestrictBufferTimeNear(s, req.BufferTime)
	if err != nil {
		return fail(s, stepError(BufferSizeUnsupported, err, "unable to set buffer time %d for playback", req.BufferTime.Microseconds()))
	}

	s, periodSize, err := dev.RestrictPeriodTimeNear(s, req.PeriodTime)
	if err != nil {
		return fail(s, stepError(PeriodSizeUnsupported, err, "unable to set period time %d for playback", req.PeriodTime.Microseconds()))
	}

	cfg := audio.StreamConfig{
		Format:     req.Format,
		Access:     req.Access,
		Channels:   req.Channels,
		Rate:       rate,
		BufferSize: bufferSize,
		PeriodSize: periodSize,
	}
	if err := cfg.Validate(); err != nil {
		return fail(s, stepError(CommitFailed, err, "unable to set hw params for playback"))
	}

	if err := dev.Commit(s); err != nil {
		return fail(s, stepError(CommitFailed, err, "unable to set hw params for playback"))
	}

	return cfg, s, nil
}
