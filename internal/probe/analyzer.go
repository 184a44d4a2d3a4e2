// ABOUTME: Received tone analysis for the probe
// ABOUTME: Estimates frequency from zero crossings and counts discontinuities and gaps
package probe

import (
	"fmt"
	"math"
	"sync"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
)

// gapTolerance is how far a chunk timestamp may drift from the expected one, in µs
const gapTolerance = 1000

// Report is a snapshot of what the analyzer has seen
type Report struct {
	Chunks          int64
	Frames          int64
	Expected        float64 // announced tone frequency
	Measured        float64 // zero-crossing estimate since the previous report, 0 if unknown
	Peak            float64
	Discontinuities int64
	Gaps            int64
	// Arrival relative to the chunk's server timestamp, µs. Valid when Latencies > 0.
	Latencies       int64
	MeanLatency     int64
	MaxLatency      int64
}

func (r Report) String() string {
	measured := "n/a"
	if r.Measured > 0 {
		measured = fmt.Sprintf("%.2fHz", r.Measured)
	}
	s := fmt.Sprintf("chunks=%d frames=%d expected=%.2fHz measured=%s peak=%.3f discontinuities=%d gaps=%d",
		r.Chunks, r.Frames, r.Expected, measured, r.Peak, r.Discontinuities, r.Gaps)
	if r.Latencies > 0 {
		s += fmt.Sprintf(" latency=%.1fms max=%.1fms", float64(r.MeanLatency)/1000, float64(r.MaxLatency)/1000)
	}
	return s
}

// Analyzer checks channel 0 of an interleaved stream
type Analyzer struct {
	mu sync.Mutex

	rate      int
	channels  int
	tolerance float64

	expected float64
	slopeHz  float64 // largest frequency since the last report

	chunks, frames  int64
	discontinuities int64
	gaps            int64
	peak            float64

	last     float64
	haveLast bool
	nextTS   int64
	haveTS   bool

	crossings  int
	firstCross float64
	lastCross  float64

	latencies  int64
	latencySum int64
	latencyMax int64
}

// NewAnalyzer creates an analyzer for samples of format f
func NewAnalyzer(rate, channels int, f audio.Format, expected float64) (*Analyzer, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", rate)
	}
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count: %d", channels)
	}

	// One quantization step either side
	tolerance := 1e-6
	if f.Encoding != audio.Float {
		tolerance = 2 / float64(f.MaxValue())
	}

	return &Analyzer{
		rate:      rate,
		channels:  channels,
		tolerance: tolerance,
		expected:  expected,
		slopeHz:   expected,
	}, nil
}

// SetExpected records a tone change announced by the server
func (a *Analyzer) SetExpected(hz float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.expected = hz
	a.slopeHz = math.Max(a.slopeHz, hz)
}

// Feed analyzes one chunk of interleaved samples stamped at timestamp µs
func (a *Analyzer) Feed(timestamp int64, samples []float64) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(samples) / a.channels
	if a.haveTS && abs64(timestamp-a.nextTS) > gapTolerance {
		a.gaps++
		// The waveform legitimately jumps across a gap
		a.haveLast = false
		a.crossings = 0
	}
	a.nextTS = timestamp + int64(n)*1_000_000/int64(a.rate)
	a.haveTS = true

	limit := encode.Step(a.slopeHz, a.rate)*1.01 + a.tolerance

	for i := 0; i < n; i++ {
		v := samples[i*a.channels]
		a.peak = math.Max(a.peak, math.Abs(v))

		if a.haveLast {
			if math.Abs(v-a.last) > limit {
				a.discontinuities++
			}
			if a.last < 0 && v >= 0 {
				// Interpolate the crossing inside the sample interval
				at := float64(a.frames+int64(i)-1) + -a.last/(v-a.last)
				if a.crossings == 0 {
					a.firstCross = at
				}
				a.lastCross = at
				a.crossings++
			}
		}
		a.last = v
		a.haveLast = true
	}

	a.frames += int64(n)
	a.chunks++
}

// Latency records how late a chunk arrived relative to its timestamp, in µs
func (a *Analyzer) Latency(micros int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.latencies == 0 || micros > a.latencyMax {
		a.latencyMax = micros
	}
	a.latencies++
	a.latencySum += micros
}

// Report returns the counters and starts a new frequency window
func (a *Analyzer) Report() Report {
	a.mu.Lock()
	defer a.mu.Unlock()

	r := Report{
		Chunks:          a.chunks,
		Frames:          a.frames,
		Expected:        a.expected,
		Peak:            a.peak,
		Discontinuities: a.discontinuities,
		Gaps:            a.gaps,
	}
	if a.latencies > 0 {
		r.Latencies = a.latencies
		r.MeanLatency = a.latencySum / a.latencies
		r.MaxLatency = a.latencyMax
	}
	if a.crossings >= 2 && a.lastCross > a.firstCross {
		r.Measured = float64(a.crossings-1) * float64(a.rate) / (a.lastCross - a.firstCross)
	}

	if a.crossings > 0 {
		a.firstCross = a.lastCross
		a.crossings = 1
	}
	a.peak = 0
	a.slopeHz = a.expected
	a.latencies, a.latencySum, a.latencyMax = 0, 0, 0
	return r
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
