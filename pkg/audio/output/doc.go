// ABOUTME: Playback device package
// ABOUTME: Provides the Device contract and memory, ALSA, malgo and oto back-ends
// Package output provides playback devices that hand out buffer regions to fill.
//
// A device is negotiated with hwparams.Negotiate, started with software
// parameters and then driven by an acquire/release loop:
//
//	dev, err := output.New(output.Config{Backend: output.BackendMemory, Capabilities: output.DefaultCapabilities()})
//	cfg, err := hwparams.Negotiate(dev, hwparams.DefaultRequest())
//	err = dev.Start(hwparams.DeriveSoftware(cfg, false))
//	p, err := dev.Acquire(ctx)
//	err = encode.Sine(p.Areas, p.Offset, p.Frames, &phase, cfg, 440)
//	err = dev.Release(p.Frames)
package output
