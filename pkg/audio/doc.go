// ABOUTME: Audio fundamentals package providing core types
// ABOUTME: Defines Format, StreamConfig and ChannelArea used by the tone pipeline
// Package audio provides the fundamental types shared by the negotiator,
// the sample encoder and the device back-ends.
//
// This package defines:
//   - Format: how one sample is stored (encoding, width, physical width, byte order)
//   - StreamConfig: the negotiated rate, channels, format and buffer geometry
//   - ChannelArea: where one channel's samples live inside a device buffer
//
// Named formats follow the ALSA naming scheme:
//
//	f, err := audio.ParseFormat("S24_3LE")
//	cfg := audio.StreamConfig{
//	    Format:     f,
//	    Access:     audio.RWInterleaved,
//	    Channels:   2,
//	    Rate:       48000,
//	    BufferSize: 24000,
//	    PeriodSize: 4800,
//	}
package audio
