// ABOUTME: Hardware parameter space and default refinement rules
// ABOUTME: Models what a device can still satisfy and how it quantizes requests
package hwparams

import (
	"fmt"
	"strings"
	"time"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
)

// ResampleMode describes a device's rate conversion capability
type ResampleMode int

const (
	// ResampleNone means the device only runs at its native rates
	ResampleNone ResampleMode = iota
	// ResampleOptional means conversion can be switched on or off
	ResampleOptional
	// ResampleForced means conversion always happens (e.g. a system mixer)
	ResampleForced
)

func (m ResampleMode) String() string {
	switch m {
	case ResampleNone:
		return "none"
	case ResampleOptional:
		return "optional"
	case ResampleForced:
		return "forced"
	default:
		return fmt.Sprintf("ResampleMode(%d)", int(m))
	}
}

// Interval is an inclusive integer range
type Interval struct {
	Min, Max int
}

// Empty reports whether no value satisfies the interval
func (i Interval) Empty() bool {
	return i.Min > i.Max
}

// Contains reports whether v lies inside the interval
func (i Interval) Contains(v int) bool {
	return v >= i.Min && v <= i.Max
}

// Single reports whether exactly one value remains
func (i Interval) Single() bool {
	return i.Min == i.Max
}

// Clamp returns the value inside the interval closest to v
func (i Interval) Clamp(v int) int {
	if v < i.Min {
		return i.Min
	}
	if v > i.Max {
		return i.Max
	}
	return v
}

// Intersect returns the overlap of two intervals
func (i Interval) Intersect(o Interval) Interval {
	return Interval{Min: max(i.Min, o.Min), Max: min(i.Max, o.Max)}
}

func (i Interval) String() string {
	if i.Empty() {
		return "empty"
	}
	if i.Single() {
		return fmt.Sprintf("%d", i.Min)
	}
	return fmt.Sprintf("[%d %d]", i.Min, i.Max)
}

// Space is the set of configurations a device can still satisfy.
// Each restriction narrows it; a fully restricted space describes one configuration.
type Space struct {
	Resample   ResampleMode
	Resampling bool // conversion enabled by RestrictResample

	Accesses []audio.Access
	Formats  []audio.Format
	Channels Interval

	Rates     []int    // native rates; empty means any rate in RateRange
	RateRange Interval // Hz
	Rate      int      // fixed by RestrictRateNear, 0 until then

	BufferSize Interval // frames
	PeriodSize Interval // frames
	Periods    Interval

	PeriodStep int  // period and buffer sizes are multiples of this many frames
	PowerOfTwo bool // buffer and period sizes are powers of two
}

// Empty reports whether the space cannot hold any configuration
func (s Space) Empty() bool {
	return len(s.Accesses) == 0 || len(s.Formats) == 0 || s.Channels.Empty() ||
		s.RateRange.Empty() || s.BufferSize.Empty() || s.PeriodSize.Empty() || s.Periods.Empty()
}

// Resolved returns the configuration of a fully restricted space
func (s Space) Resolved() (audio.StreamConfig, error) {
	switch {
	case len(s.Accesses) != 1:
		return audio.StreamConfig{}, fmt.Errorf("access not fixed (%d candidates)", len(s.Accesses))
	case len(s.Formats) != 1:
		return audio.StreamConfig{}, fmt.Errorf("format not fixed (%d candidates)", len(s.Formats))
	case !s.Channels.Single():
		return audio.StreamConfig{}, fmt.Errorf("channels not fixed: %s", s.Channels)
	case s.Rate == 0:
		return audio.StreamConfig{}, fmt.Errorf("rate not fixed")
	case !s.BufferSize.Single():
		return audio.StreamConfig{}, fmt.Errorf("buffer size not fixed: %s", s.BufferSize)
	case !s.PeriodSize.Single():
		return audio.StreamConfig{}, fmt.Errorf("period size not fixed: %s", s.PeriodSize)
	}

	cfg := audio.StreamConfig{
		Format:     s.Formats[0],
		Access:     s.Accesses[0],
		Channels:   s.Channels.Min,
		Rate:       s.Rate,
		BufferSize: s.BufferSize.Min,
		PeriodSize: s.PeriodSize.Min,
	}
	return cfg, cfg.Validate()
}

// String dumps the space in a human readable form
func (s Space) String() string {
	var b strings.Builder

	accesses := make([]string, len(s.Accesses))
	for i, a := range s.Accesses {
		accesses[i] = a.String()
	}
	formats := make([]string, len(s.Formats))
	for i, f := range s.Formats {
		formats[i] = f.String()
	}

	rate := s.RateRange.String()
	if s.Rate != 0 {
		rate = fmt.Sprintf("%d", s.Rate)
	} else if len(s.Rates) > 0 && !s.Resampling {
		rate = fmt.Sprintf("%v", s.Rates)
	}

	fmt.Fprintf(&b, "ACCESS:      %s\n", strings.Join(accesses, " "))
	fmt.Fprintf(&b, "FORMAT:      %s\n", strings.Join(formats, " "))
	fmt.Fprintf(&b, "CHANNELS:    %s\n", s.Channels)
	fmt.Fprintf(&b, "RATE:        %s\n", rate)
	fmt.Fprintf(&b, "RESAMPLE:    %s (enabled: %v)\n", s.Resample, s.Resampling)
	fmt.Fprintf(&b, "PERIOD_SIZE: %s\n", s.PeriodSize)
	fmt.Fprintf(&b, "BUFFER_SIZE: %s\n", s.BufferSize)
	fmt.Fprintf(&b, "PERIODS:     %s\n", s.Periods)
	return b.String()
}

// Refiner implements the restriction primitives of Device over a Space.
// Back-ends embed it and only provide QueryParameterSpace and Commit.
type Refiner struct{}

// RestrictResample enables or forbids device-side rate conversion
func (Refiner) RestrictResample(s Space, allowed bool) (Space, error) {
	switch {
	case allowed && s.Resample != ResampleNone:
		s.Resampling = true
	case allowed:
		// Hardware without a converter ignores the request
		s.Resampling = false
	case s.Resample == ResampleForced:
		return s, fmt.Errorf("rate conversion cannot be disabled on this device")
	default:
		s.Resampling = false
	}
	return s, nil
}

// RestrictAccess fixes the access mode
func (Refiner) RestrictAccess(s Space, mode audio.Access) (Space, error) {
	for _, a := range s.Accesses {
		if a == mode {
			s.Accesses = []audio.Access{mode}
			return s, nil
		}
	}
	return s, fmt.Errorf("access %s not in %v", mode, s.Accesses)
}

// RestrictFormat fixes the sample format
func (Refiner) RestrictFormat(s Space, f audio.Format) (Space, error) {
	for _, cand := range s.Formats {
		if cand == f {
			s.Formats = []audio.Format{f}
			return s, nil
		}
	}
	return s, fmt.Errorf("format %s not supported", f)
}

// RestrictChannels fixes the channel count
func (Refiner) RestrictChannels(s Space, n int) (Space, error) {
	if !s.Channels.Contains(n) {
		return s, fmt.Errorf("channels %d outside %s", n, s.Channels)
	}
	s.Channels = Interval{Min: n, Max: n}
	return s, nil
}

// RestrictRateNear fixes the rate to the supported value closest to hz
func (Refiner) RestrictRateNear(s Space, hz int) (Space, int, error) {
	if s.RateRange.Empty() {
		return s, 0, fmt.Errorf("no rate available")
	}

	actual := s.RateRange.Clamp(hz)
	if !s.Resampling && len(s.Rates) > 0 {
		actual = 0
		for _, r := range s.Rates {
			if !s.RateRange.Contains(r) {
				continue
			}
			if actual == 0 || abs(r-hz) < abs(actual-hz) {
				actual = r
			}
		}
		if actual == 0 {
			return s, 0, fmt.Errorf("no native rate inside %s", s.RateRange)
		}
	}

	s.Rate = actual
	s.Rates = []int{actual}
	s.RateRange = Interval{Min: actual, Max: actual}
	return s, actual, nil
}

// RestrictBufferTimeNear fixes the buffer to the supported size closest to d
func (Refiner) RestrictBufferTimeNear(s Space, d time.Duration) (Space, int, error) {
	if s.Rate == 0 {
		return s, 0, fmt.Errorf("rate must be fixed before buffer time")
	}

	// A buffer must hold at least Periods.Min periods of the smallest size
	bounds := s.BufferSize.Intersect(Interval{
		Min: s.PeriodSize.Min * max(s.Periods.Min, 1),
		Max: s.PeriodSize.Max * max(s.Periods.Max, 1),
	})
	n, ok := s.quantize(audio.DurationToFrames(d, s.Rate), bounds)
	if !ok {
		return s, 0, fmt.Errorf("no buffer size inside %s", bounds)
	}

	s.BufferSize = Interval{Min: n, Max: n}
	s.PeriodSize = s.PeriodSize.Intersect(Interval{
		Min: ceilDiv(n, max(s.Periods.Max, 1)),
		Max: n / max(s.Periods.Min, 1),
	})
	return s, n, nil
}

// RestrictPeriodTimeNear fixes the period to the supported size closest to d
func (Refiner) RestrictPeriodTimeNear(s Space, d time.Duration) (Space, int, error) {
	if s.Rate == 0 {
		return s, 0, fmt.Errorf("rate must be fixed before period time")
	}

	n, ok := s.quantize(audio.DurationToFrames(d, s.Rate), s.PeriodSize)
	if !ok {
		return s, 0, fmt.Errorf("no period size inside %s", s.PeriodSize)
	}

	s.PeriodSize = Interval{Min: n, Max: n}
	if s.BufferSize.Single() {
		periods := s.BufferSize.Min / n
		s.Periods = Interval{Min: periods, Max: periods}
	}
	return s, n, nil
}

// quantize picks the size closest to frames that the device granularity allows
func (s Space) quantize(frames int, bounds Interval) (int, bool) {
	if bounds.Empty() {
		return 0, false
	}

	if s.PowerOfTwo {
		best := 0
		for p := 1; p <= bounds.Max && p > 0; p <<= 1 {
			if p < bounds.Min {
				continue
			}
			if best == 0 || abs(p-frames) < abs(best-frames) {
				best = p
			}
		}
		return best, best != 0
	}

	step := max(s.PeriodStep, 1)
	lo := ceilDiv(bounds.Min, step) * step
	hi := (bounds.Max / step) * step
	if lo > hi || hi <= 0 {
		return 0, false
	}
	n := ((frames + step/2) / step) * step
	return Interval{Min: lo, Max: hi}.Clamp(n), true
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
