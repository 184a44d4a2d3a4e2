// ABOUTME: Software parameters derived from the negotiated geometry
// ABOUTME: Start threshold and wakeup (avail min) settings for the write loop
package hwparams

import "github.com/Resonate-Protocol/sinetone/pkg/audio"

// SoftwareParams controls when a device starts and when writers are woken
type SoftwareParams struct {
	StartThreshold int  // frames queued before playback starts
	AvailMin       int  // free frames required before a writer is woken
	PeriodEvent    bool // wake on every period boundary instead of AvailMin
}

// DeriveSoftware starts playback once the buffer is almost full and wakes the
// writer when a period is free. With periodEvent the writer is woken by period
// events, so AvailMin grows to the whole buffer.
func DeriveSoftware(cfg audio.StreamConfig, periodEvent bool) SoftwareParams {
	sw := SoftwareParams{
		StartThreshold: (cfg.BufferSize / cfg.PeriodSize) * cfg.PeriodSize,
		AvailMin:       cfg.PeriodSize,
		PeriodEvent:    periodEvent,
	}
	if periodEvent {
		sw.AvailMin = cfg.BufferSize
	}
	return sw
}
