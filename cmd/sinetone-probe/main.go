// ABOUTME: Probe that listens to a tone server and checks the signal
// ABOUTME: Reports measured frequency, discontinuities and gaps
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/client"
	"github.com/Resonate-Protocol/sinetone/internal/clocksync"
	"github.com/Resonate-Protocol/sinetone/internal/discovery"
	"github.com/Resonate-Protocol/sinetone/internal/probe"
	"github.com/Resonate-Protocol/sinetone/internal/protocol"
	"github.com/Resonate-Protocol/sinetone/internal/version"
	"github.com/google/uuid"
)

var (
	serverAddr = flag.String("server", "", "Server address (host:port); browse mDNS when empty")
	name       = flag.String("name", "sinetone-probe", "Probe name")
	interval   = flag.Duration("interval", 2*time.Second, "Report interval")
	duration   = flag.Duration("duration", 0, "Stop after this long (0 = until interrupted)")
	setFreq    = flag.Float64("set-freq", 0, "Ask the server to switch to this frequency after connecting")
)

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	addr := *serverAddr
	path := ""
	if addr == "" {
		info, err := browse(10 * time.Second)
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
		addr = info.Addr()
		path = info.Path
		log.Printf("Discovered %s at %s", info.Name, addr)
	}

	c := client.NewClient(client.Config{
		ServerAddr: addr,
		Path:       path,
		ClientID:   uuid.New().String(),
		Name:       *name,
		Codecs:     []string{protocol.CodecPCM},
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + "-probe",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	fmt.Printf("Connecting to %s as '%s'...\n", addr, *name)
	if err := c.Connect(); err != nil {
		log.Fatalf("Connect failed: %v", err)
	}
	defer c.Close()

	hello := c.Server()
	log.Printf("Connected to %s (%s)", hello.Name, hello.ServerID)

	if *setFreq > 0 {
		if err := c.SetTone(*setFreq); err != nil {
			log.Printf("Failed to request %.2fHz: %v", *setFreq, err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	cs := clocksync.NewClockSync()
	go probe.SyncClock(ctx, c, cs, time.Second)

	feed := probe.FeedFromClient(c)
	feed.Clock = cs

	err := probe.Run(ctx, feed, *interval, func(r probe.Report) {
		_, rtt, quality := cs.Stats()
		fmt.Printf("%s sync=%s rtt=%.1fms\n", r, quality, float64(rtt)/1000)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		c.Close()
		log.Fatalf("Probe error: %v", err)
	}

	log.Printf("Probe complete")
}

// browse returns the first tone server announced on the local network
func browse(timeout time.Duration) (*discovery.ServerInfo, error) {
	mgr := discovery.NewManager(discovery.Config{})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return nil, err
	}

	select {
	case info := <-mgr.Servers():
		return info, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("no %s server found within %s", discovery.ServiceType, timeout)
	}
}
