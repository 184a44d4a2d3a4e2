// ABOUTME: Sine wave sample encoder
// ABOUTME: Writes sin(phase) into channel areas in any supported sample format
package encode

import (
	"fmt"
	"math"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
)

const maxPhase = 2 * math.Pi

// ContractViolation reports channel areas that break the layout contract.
// Nothing is written when it is returned.
type ContractViolation struct {
	Channel int
	Reason  string
}

func (e *ContractViolation) Error() string {
	if e.Channel < 0 {
		return "channel areas: " + e.Reason
	}
	return fmt.Sprintf("areas[%d]: %s", e.Channel, e.Reason)
}

// Step returns the phase increment per frame for a tone of freq Hz at rate Hz
func Step(freq float64, rate int) float64 {
	return maxPhase * freq / float64(rate)
}

// Pattern returns the raw bit pattern for one sample value in format f.
// Only the low f.Width bits are meaningful.
func Pattern(sample float64, f audio.Format) uint64 {
	var res uint64
	if f.Encoding == audio.Float {
		res = uint64(math.Float32bits(float32(sample)))
	} else {
		// Conversion truncates toward zero
		res = uint64(int64(sample * float64(f.MaxValue())))
	}
	if f.Encoding == audio.Unsigned {
		res ^= 1 << (f.Width - 1)
	}
	return res
}

// Sine writes count frames of a freq Hz sine wave into areas, starting offset
// frames past each area's first sample. phase is read and advanced in place so
// consecutive calls continue the same waveform.
func Sine(areas []audio.ChannelArea, offset, count int, phase *float64, cfg audio.StreamConfig, freq float64) error {
	if count == 0 {
		return nil
	}
	if count < 0 || offset < 0 {
		return &ContractViolation{Channel: -1, Reason: fmt.Sprintf("invalid range offset=%d count=%d", offset, count)}
	}
	if len(areas) < cfg.Channels {
		return &ContractViolation{Channel: -1, Reason: fmt.Sprintf("%d areas for %d channels", len(areas), cfg.Channels)}
	}

	f := cfg.Format
	bps := f.Bytes()
	physBps := f.PhysicalBytes()
	bigEndian := f.ByteOrder == audio.BigEndian

	// Verify and prepare the contents of areas
	samples := make([]int, cfg.Channels)
	steps := make([]int, cfg.Channels)
	for chn := 0; chn < cfg.Channels; chn++ {
		if err := checkArea(chn, areas[chn], f, offset, count); err != nil {
			return err
		}
		steps[chn] = areas[chn].Step / 8
		samples[chn] = areas[chn].First/8 + offset*steps[chn]
	}

	p := *phase
	step := Step(freq, cfg.Rate)

	// Fill the channel areas
	for ; count > 0; count-- {
		res := Pattern(math.Sin(p), f)
		for chn := 0; chn < cfg.Channels; chn++ {
			buf := areas[chn].Buf[samples[chn]:]
			if bigEndian {
				for i := 0; i < bps; i++ {
					buf[physBps-1-i] = byte(res >> (i * 8))
				}
			} else {
				for i := 0; i < bps; i++ {
					buf[i] = byte(res >> (i * 8))
				}
			}
			samples[chn] += steps[chn]
		}
		p += step
		if p >= maxPhase {
			p -= maxPhase
		} else if p < 0 {
			p += maxPhase
		}
	}

	*phase = p
	return nil
}

// checkArea validates alignment and bounds for one channel
func checkArea(chn int, area audio.ChannelArea, f audio.Format, offset, count int) error {
	if area.First < 0 || area.First%8 != 0 {
		return &ContractViolation{Channel: chn, Reason: fmt.Sprintf("first == %d, not byte aligned", area.First)}
	}
	if area.Step < f.PhysicalWidth {
		return &ContractViolation{Channel: chn, Reason: fmt.Sprintf("step == %d, smaller than one %d-bit sample", area.Step, f.PhysicalWidth)}
	}
	align := 8
	if f.PhysicalWidth%16 == 0 {
		align = 16
	}
	if area.Step%align != 0 {
		return &ContractViolation{Channel: chn, Reason: fmt.Sprintf("step == %d, not a multiple of %d bits", area.Step, align)}
	}
	end := area.First/8 + (offset+count-1)*(area.Step/8) + f.PhysicalBytes()
	if end > len(area.Buf) {
		return &ContractViolation{Channel: chn, Reason: fmt.Sprintf("area holds %d bytes, %d needed", len(area.Buf), end)}
	}
	return nil
}
