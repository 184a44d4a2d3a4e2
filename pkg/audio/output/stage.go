// ABOUTME: Period staging buffer for devices that copy frames out on release
// ABOUTME: Shared by the ALSA, malgo and oto back-ends
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
)

// stage holds one period of interleaved frames
type stage struct {
	cfg      audio.StreamConfig
	areas    []audio.ChannelArea
	acquired int
}

func (s *stage) reset(cfg audio.StreamConfig) error {
	if !cfg.Access.Interleaved() {
		return fmt.Errorf("access %s not supported by this back-end", cfg.Access)
	}
	s.cfg = cfg
	s.areas = encode.Allocate(cfg, cfg.PeriodSize)
	s.acquired = 0
	return nil
}

func (s *stage) period(frames int) Period {
	frames = min(frames, s.cfg.PeriodSize)
	s.acquired = frames
	return Period{Areas: s.areas, Frames: frames}
}

// take returns the bytes of the first frames of the acquired period
func (s *stage) take(frames int) ([]byte, error) {
	if frames < 0 || frames > s.acquired {
		return nil, fmt.Errorf("release of %d frames exceeds acquired %d", frames, s.acquired)
	}
	s.acquired = 0
	return encode.Region(s.areas, s.cfg, 0, frames)[0], nil
}
