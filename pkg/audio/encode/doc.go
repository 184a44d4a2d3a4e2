// ABOUTME: Audio encoder package for the tone generator
// ABOUTME: Provides the sine sample encoder, area layouts and an Opus packetizer
// Package encode writes sine samples into device channel areas.
//
// Sine handles every combination of width, physical width, byte order,
// signedness and float encoding described by audio.Format, for both
// interleaved and planar layouts. The caller owns the phase and passes it
// by pointer so successive periods join without a click.
//
// Example:
//
//	var phase float64
//	areas := encode.InterleavedAreas(buf, cfg)
//	if err := encode.Sine(areas, 0, cfg.PeriodSize, &phase, cfg, 440); err != nil {
//	    return err
//	}
package encode
