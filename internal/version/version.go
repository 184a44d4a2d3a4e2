// ABOUTME: Build and product identification
// ABOUTME: Reported in protocol hellos and the -version flag
package version

// Version is overridden at build time with -ldflags "-X .../internal/version.Version=..."
var Version = "0.1.0"

const (
	Product      = "sinetone"
	Manufacturer = "Resonate Protocol"
)
