// ABOUTME: Tone stream package
// ABOUTME: Negotiates a device and keeps its buffer filled with a sine wave
// Package tone drives a playback device with a continuous sine wave.
//
// Example:
//
//	dev, _ := output.New(output.DefaultConfig())
//	s, err := tone.Open(dev, tone.DefaultConfig())
//	err = s.Run(ctx)
package tone
