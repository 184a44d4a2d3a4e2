// ABOUTME: Entry point for the network tone server
// ABOUTME: Parses CLI flags and streams a sine tone to WebSocket clients
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/server"
	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/tone"
)

var (
	port       = flag.Int("port", 8928, "WebSocket server port")
	name       = flag.String("name", "", "Server friendly name (default: hostname-sinetone)")
	logFile    = flag.String("log-file", "sinetone-server.log", "Log file path")
	debug      = flag.Bool("debug", false, "Enable debug logging")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	noTUI      = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	frequency  = flag.Float64("freq", 440, "Sine wave frequency in Hz")
	rate       = flag.Int("rate", 48000, "Stream rate in Hz")
	formatName = flag.String("format", "S16_LE", "Sample format")
	channels   = flag.Int("channels", 2, "Count of channels in stream")
	periodMs   = flag.Int("period", 20, "Chunk duration in ms")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	useTUI := !*noTUI
	if useTUI {
		// TUI owns the terminal
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-sinetone", hostname)
	}

	format, err := audio.ParseFormat(*formatName)
	if err != nil {
		log.Fatalf("Invalid format: %v", err)
	}

	toneCfg := tone.DefaultConfig()
	toneCfg.Format = format
	toneCfg.Rate = *rate
	toneCfg.Channels = *channels
	toneCfg.Frequency = *frequency
	toneCfg.PeriodTime = time.Duration(*periodMs) * time.Millisecond
	toneCfg.BufferTime = 5 * toneCfg.PeriodTime
	toneCfg.Clamp()
	if err := toneCfg.Validate(); err != nil {
		log.Fatalf("Invalid tone settings: %v", err)
	}

	log.Printf("Starting sine tone server: %s on port %d", serverName, *port)
	log.Printf("Tone: %.2fHz %s %dHz %d channels", toneCfg.Frequency, toneCfg.Format, toneCfg.Rate, toneCfg.Channels)
	if *debug {
		log.Printf("Debug logging enabled")
	}
	log.Printf("Logging to: %s", *logFile)

	srv := server.New(server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		Debug:      *debug,
		UseTUI:     useTUI,
		Tone:       toneCfg,
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Printf("Server stopped")
}
