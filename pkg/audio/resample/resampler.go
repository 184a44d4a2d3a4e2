// ABOUTME: Streaming linear resampler for converting audio sample rates
// ABOUTME: Interpolates across chunk boundaries so chunked input stays continuous
package resample

import "math"

// Resampler performs linear interpolation to convert between sample rates
type Resampler struct {
	inputRate  int
	outputRate int
	channels   int
	ratio      float64
	position   float64 // read position, frame 0 is the carried frame once primed
	lastSample []int16 // last input frame of the previous chunk
	primed     bool
}

// New creates a new resampler
func New(inputRate, outputRate, channels int) *Resampler {
	return &Resampler{
		inputRate:  inputRate,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(inputRate) / float64(outputRate),
		lastSample: make([]int16, channels),
	}
}

// Resample converts interleaved input at inputRate to interleaved output at outputRate.
// The last input frame is held back and interpolated with the next chunk.
func (r *Resampler) Resample(input []int16) []int16 {
	ch := r.channels
	frames := len(input) / ch
	if frames == 0 {
		return nil
	}

	total := frames
	if r.primed {
		total++
	}
	sample := func(frame, c int) float64 {
		if r.primed {
			if frame == 0 {
				return float64(r.lastSample[c])
			}
			frame--
		}
		return float64(input[frame*ch+c])
	}

	output := make([]int16, 0, r.OutputSamplesNeeded(len(input))+ch)
	for {
		idx := int(r.position)
		if idx >= total-1 {
			break
		}
		frac := r.position - float64(idx)
		for c := 0; c < ch; c++ {
			s1, s2 := sample(idx, c), sample(idx+1, c)
			output = append(output, int16(math.Round(s1+(s2-s1)*frac)))
		}
		r.position += r.ratio
	}

	// The last frame becomes frame 0 of the next chunk
	r.position -= float64(total - 1)
	copy(r.lastSample, input[(frames-1)*ch:frames*ch])
	r.primed = true

	return output
}

// Reset resets the resampler state
func (r *Resampler) Reset() {
	r.position = 0.0
	r.primed = false
	clear(r.lastSample)
}

// Channels returns the number of interleaved channels
func (r *Resampler) Channels() int {
	return r.channels
}

// OutputSamplesNeeded calculates how many output samples will be produced from input samples
func (r *Resampler) OutputSamplesNeeded(inputSamples int) int {
	inputFrames := inputSamples / r.channels
	outputFrames := inputFrames * r.outputRate / r.inputRate
	return outputFrames * r.channels
}

// InputSamplesNeeded calculates how many input samples are needed to produce output samples
func (r *Resampler) InputSamplesNeeded(outputSamples int) int {
	outputFrames := outputSamples / r.channels
	inputFrames := (outputFrames*r.inputRate + r.outputRate - 1) / r.outputRate
	return inputFrames * r.channels
}
