//go:build !linux

// ABOUTME: ALSA stub for non-Linux platforms
// ABOUTME: Reports that raw hw devices are unavailable
package output

import "fmt"

// NewALSA is only available on Linux
func NewALSA(name string) (Device, error) {
	return nil, fmt.Errorf("ALSA device %q: ALSA is only available on Linux", name)
}
