// ABOUTME: Probe loop tying a stream connection to the analyzer
// ABOUTME: Decodes PCM chunks and emits periodic reports
package probe

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/Resonate-Protocol/sinetone/internal/client"
	"github.com/Resonate-Protocol/sinetone/internal/clocksync"
	"github.com/Resonate-Protocol/sinetone/internal/protocol"
	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/decode"
)

// ErrDisconnected is returned when the stream ends before the context
var ErrDisconnected = errors.New("stream disconnected")

// Feed is the inbound side of a stream connection
type Feed struct {
	Start   <-chan protocol.StreamStart
	Updates <-chan protocol.StreamUpdate
	Chunks  <-chan protocol.Chunk
	Done    <-chan struct{}

	// Clock, when synced, is used to measure chunk latency
	Clock *clocksync.ClockSync
}

// FeedFromClient exposes a connected client's channels
func FeedFromClient(c *client.Client) Feed {
	return Feed{
		Start:   c.StreamStart,
		Updates: c.StreamUpdate,
		Chunks:  c.AudioChunks,
		Done:    c.Done(),
	}
}

// Run analyzes the feed until ctx ends, calling report every interval.
// A final report is emitted on return.
func Run(ctx context.Context, feed Feed, interval time.Duration, report func(Report)) error {
	var start protocol.StreamStart
	select {
	case start = <-feed.Start:
	case <-feed.Done:
		return ErrDisconnected
	case <-ctx.Done():
		return nil
	}

	if start.Codec != protocol.CodecPCM {
		return fmt.Errorf("cannot analyze %s streams", start.Codec)
	}
	format, err := audio.ParseFormat(start.Format)
	if err != nil {
		return fmt.Errorf("unknown stream format: %w", err)
	}
	dec, err := decode.NewPCM(audio.StreamConfig{Format: format, Channels: start.Channels})
	if err != nil {
		return err
	}
	defer dec.Close()

	analyzer, err := NewAnalyzer(start.SampleRate, start.Channels, format, start.Frequency)
	if err != nil {
		return err
	}
	log.Printf("Analyzing %s %dHz %d channels, tone %.2fHz", format, start.SampleRate, start.Channels, start.Frequency)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer func() { report(analyzer.Report()) }()

	for {
		select {
		case chunk := <-feed.Chunks:
			samples, err := dec.Decode(chunk.Data)
			if err != nil {
				log.Printf("Dropping chunk: %v", err)
				continue
			}
			analyzer.Feed(chunk.Timestamp, samples)
			if feed.Clock != nil && feed.Clock.Synced() {
				analyzer.Latency(feed.Clock.ClientMicros() - feed.Clock.ServerToLocal(chunk.Timestamp))
			}

		case update := <-feed.Updates:
			log.Printf("Tone changed to %.2fHz", update.Frequency)
			analyzer.SetExpected(update.Frequency)

		case <-ticker.C:
			report(analyzer.Report())

		case <-feed.Done:
			return ErrDisconnected

		case <-ctx.Done():
			return nil
		}
	}
}

// SyncClock sends client/time every interval and folds the replies into cs
// until ctx ends or the connection drops.
func SyncClock(ctx context.Context, c *client.Client, cs *clocksync.ClockSync, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	send := func() {
		if err := c.SendTimeSync(cs.ClientMicros()); err != nil {
			log.Printf("Time sync failed: %v", err)
		}
	}
	send()

	for {
		select {
		case resp := <-c.TimeSyncResp:
			t4 := cs.ClientMicros()
			cs.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)
		case <-ticker.C:
			if q := cs.CheckQuality(); q == clocksync.QualityLost && cs.Synced() {
				log.Printf("Clock sync lost")
			}
			send()
		case <-c.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}
