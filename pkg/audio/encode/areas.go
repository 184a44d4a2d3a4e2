// ABOUTME: Channel area layout helpers
// ABOUTME: Builds interleaved and planar area lists over device buffers
package encode

import "github.com/Resonate-Protocol/sinetone/pkg/audio"

// InterleavedAreas describes buf as interleaved frames of cfg.Channels samples
func InterleavedAreas(buf []byte, cfg audio.StreamConfig) []audio.ChannelArea {
	phys := cfg.Format.PhysicalWidth
	areas := make([]audio.ChannelArea, cfg.Channels)
	for chn := range areas {
		areas[chn] = audio.ChannelArea{
			Buf:   buf,
			First: chn * phys,
			Step:  cfg.Channels * phys,
		}
	}
	return areas
}

// PlanarAreas describes one plane per channel
func PlanarAreas(planes [][]byte, cfg audio.StreamConfig) []audio.ChannelArea {
	areas := make([]audio.ChannelArea, len(planes))
	for chn, plane := range planes {
		areas[chn] = audio.ChannelArea{
			Buf:  plane,
			Step: cfg.Format.PhysicalWidth,
		}
	}
	return areas
}

// Allocate returns zeroed areas holding frames frames laid out for cfg.Access
func Allocate(cfg audio.StreamConfig, frames int) []audio.ChannelArea {
	if cfg.Access.Interleaved() {
		return InterleavedAreas(make([]byte, frames*cfg.FrameBytes()), cfg)
	}
	planes := make([][]byte, cfg.Channels)
	for chn := range planes {
		planes[chn] = make([]byte, frames*cfg.Format.PhysicalBytes())
	}
	return PlanarAreas(planes, cfg)
}

// Region returns the bytes of areas covering frames [offset, offset+frames).
// Interleaved areas yield one slice; planar areas yield one slice per channel.
func Region(areas []audio.ChannelArea, cfg audio.StreamConfig, offset, frames int) [][]byte {
	if len(areas) == 0 {
		return nil
	}
	if cfg.Access.Interleaved() {
		fb := cfg.FrameBytes()
		start := areas[0].First/8 + offset*fb
		return [][]byte{areas[0].Buf[start : start+frames*fb]}
	}
	out := make([][]byte, len(areas))
	pb := cfg.Format.PhysicalBytes()
	for chn, a := range areas {
		start := a.First/8 + offset*pb
		out[chn] = a.Buf[start : start+frames*pb]
	}
	return out
}
