// ABOUTME: Entry point for the sine tone generator
// ABOUTME: Parses CLI flags, negotiates the device and runs the tone with an optional TUI
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/ui"
	"github.com/Resonate-Protocol/sinetone/internal/version"
	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/output"
	"github.com/Resonate-Protocol/sinetone/pkg/tone"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	device         = flag.String("device", "default", "Playback device (e.g. hw:0,0 for ALSA)")
	backend        = flag.String("backend", string(output.BackendAuto), "Output backend: auto, alsa, malgo, oto, memory, null")
	formatName     = flag.String("format", "S16_LE", "Sample format")
	rate           = flag.Int("rate", 44100, "Stream rate in Hz")
	channels       = flag.Int("channels", 1, "Count of channels in stream")
	bufferUs       = flag.Int("buffer", 500000, "Ring buffer size in us")
	periodUs       = flag.Int("period", 100000, "Period size in us")
	frequency      = flag.Float64("freq", 440, "Sine wave frequency in Hz")
	method         = flag.String("access", "rw", "Transfer method: rw or mmap")
	nonInterleaved = flag.Bool("noninterleaved", false, "Use one buffer per channel")
	noResample     = flag.Bool("noresample", false, "Disable device rate conversion")
	periodEvent    = flag.Bool("pevent", false, "Wake on period events instead of avail_min")
	verbose        = flag.Bool("verbose", false, "Dump negotiated parameters")
	duration       = flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	logFile        = flag.String("log-file", "sinetone.log", "Log file path")
	noTUI          = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	listFormats    = flag.Bool("list-formats", false, "List sample formats and exit")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// options is the parsed command line
type options struct {
	format         string
	rate           int
	channels       int
	bufferUs       int
	periodUs       int
	frequency      float64
	method         string
	nonInterleaved bool
	noResample     bool
	periodEvent    bool
	verbose        bool
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s\n", version.Product, version.Version)
		return
	}
	if *listFormats {
		fmt.Println("Recognized sample formats are:", strings.Join(audio.FormatNames(), " "))
		return
	}

	os.Exit(run())
}

func run() int {
	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Printf("error opening log file: %v", err)
		return 1
	}
	defer f.Close()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	cfg, err := toneConfig(options{
		format:         *formatName,
		rate:           *rate,
		channels:       *channels,
		bufferUs:       *bufferUs,
		periodUs:       *periodUs,
		frequency:      *frequency,
		method:         *method,
		nonInterleaved: *nonInterleaved,
		noResample:     *noResample,
		periodEvent:    *periodEvent,
		verbose:        *verbose,
	})
	if err != nil {
		log.Printf("Invalid arguments: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	outCfg := output.DefaultConfig()
	outCfg.Backend = output.Backend(*backend)
	outCfg.Device = *device

	dev, err := output.New(outCfg)
	if err != nil {
		log.Printf("Playback open error: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	stream, err := tone.Open(dev, cfg)
	if err != nil {
		dev.Close()
		log.Printf("Setting of hwparams failed: %v", err)
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer stream.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var tuiProg *tea.Program
	if useTUI {
		ctrl := ui.NewFrequencyControl()
		tuiProg = ui.Run(ui.Setup{
			Device:   dev.Name(),
			Stream:   stream.Config(),
			Software: stream.SoftwareParams(),
			Resample: cfg.Resample,
		}, cfg.Frequency, ctrl)

		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("TUI error: %v", err)
			}
			cancel()
		}()
		go handleFrequencyControl(ctx, stream, ctrl, cancel)
		go statsUpdateLoop(ctx, stream, func(st tone.Stats) { tuiProg.Send(ui.StatsMsg(st)) })
	} else {
		log.Printf("%s %s: TUI disabled, logging to %s", version.Product, version.Version, *logFile)
		go statsUpdateLoop(ctx, stream, logStats())
	}

	runErr := stream.Run(ctx)

	if tuiProg != nil {
		tuiProg.Quit()
	}

	st := stream.Stats()
	log.Printf("Stopped after %s: %d frames, %d periods, %d underruns", st.Elapsed, st.Frames, st.Periods, st.Underruns)

	if runErr != nil {
		log.Printf("Transfer failed: %v", runErr)
		fmt.Fprintln(os.Stderr, runErr)
		return 1
	}
	return 0
}

// toneConfig converts the command line into a validated tone configuration.
// Numeric settings are clamped to the supported ranges.
func toneConfig(o options) (tone.Config, error) {
	cfg := tone.DefaultConfig()

	format, err := audio.ParseFormat(o.format)
	if err != nil {
		return cfg, err
	}
	access, err := accessFor(o.method, o.nonInterleaved)
	if err != nil {
		return cfg, err
	}

	cfg.Format = format
	cfg.Access = access
	cfg.Rate = o.rate
	cfg.Channels = o.channels
	cfg.BufferTime = time.Duration(o.bufferUs) * time.Microsecond
	cfg.PeriodTime = time.Duration(o.periodUs) * time.Microsecond
	cfg.Frequency = o.frequency
	cfg.Resample = !o.noResample
	cfg.PeriodEvent = o.periodEvent
	cfg.Verbose = o.verbose
	cfg.Clamp()

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// accessFor maps the transfer method and layout flags to an access mode
func accessFor(method string, nonInterleaved bool) (audio.Access, error) {
	switch strings.ToLower(method) {
	case "rw", "write":
		if nonInterleaved {
			return audio.RWNonInterleaved, nil
		}
		return audio.RWInterleaved, nil
	case "mmap", "direct_interleaved", "direct_write":
		if nonInterleaved {
			return audio.MMapNonInterleaved, nil
		}
		return audio.MMapInterleaved, nil
	default:
		return 0, fmt.Errorf("unknown transfer method: %q (want rw or mmap)", method)
	}
}

// handleFrequencyControl applies frequency changes from the TUI
func handleFrequencyControl(ctx context.Context, stream *tone.Stream, ctrl *ui.FrequencyControl, quit func()) {
	for {
		select {
		case change := <-ctrl.Changes:
			log.Printf("Frequency change: %.2fHz", change.Frequency)
			if err := stream.SetFrequency(change.Frequency); err != nil {
				log.Printf("Rejected frequency change: %v", err)
			}
		case <-ctrl.Quit:
			log.Printf("Received quit signal from TUI")
			quit()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically publishes stream statistics
func statsUpdateLoop(ctx context.Context, stream *tone.Stream, publish func(tone.Stats)) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			publish(stream.Stats())
		case <-ctx.Done():
			return
		}
	}
}

// logStats logs a one-line summary every few seconds
func logStats() func(tone.Stats) {
	var last time.Time
	return func(st tone.Stats) {
		if time.Since(last) < 5*time.Second {
			return
		}
		last = time.Now()
		log.Printf("%.2fHz: %s played, %d periods, %d underruns, level %.2f",
			st.Frequency, st.Elapsed.Truncate(time.Second), st.Periods, st.Underruns, st.Level)
	}
}
