// ABOUTME: Hardware parameter negotiation package
// ABOUTME: Narrows a device's configuration space to one stream setup
// Package hwparams negotiates a stream configuration with a playback device.
//
// The device reports everything it can do as a Space. Negotiate then
// restricts that space in a fixed order (resampling, access, format,
// channels, rate, buffer time, period time) and commits the single
// remaining configuration. The rate must be honoured exactly; buffer and
// period times are chosen nearest to the request.
//
// Failures are *Error values carrying a Kind, so callers can test for the
// failing step with errors.Is:
//
//	cfg, err := hwparams.Negotiate(dev, req)
//	if errors.Is(err, hwparams.RateMismatch) {
//	    // try another rate
//	}
package hwparams
