// ABOUTME: Tone streaming engine for the network server
// ABOUTME: Runs a tone stream on a paced memory device and fans released periods out to clients
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/sinetone/internal/protocol"
	"github.com/Resonate-Protocol/sinetone/pkg/audio"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/decode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/encode"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/output"
	"github.com/Resonate-Protocol/sinetone/pkg/audio/resample"
	"github.com/Resonate-Protocol/sinetone/pkg/tone"
)

// ToneEngine owns the tone stream and the set of listening clients
type ToneEngine struct {
	server *Server
	device *output.Memory
	stream *tone.Stream
	cfg    audio.StreamConfig

	// Active clients
	clients   map[string]*Client
	clientsMu sync.RWMutex

	// Frames broadcast so far, for chunk timestamps
	released   int64
	epochMicro int64

	cancel context.CancelFunc
	done   chan struct{}
}

// NewToneEngine negotiates the tone on a paced in-memory device
func NewToneEngine(server *Server, cfg tone.Config) (*ToneEngine, error) {
	e := &ToneEngine{
		server:  server,
		device:  output.NewMemory(output.DefaultCapabilities(), true),
		clients: make(map[string]*Client),
	}
	e.device.OnRelease(e.broadcast)

	stream, err := tone.Open(e.device, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open tone stream: %w", err)
	}
	e.stream = stream
	e.cfg = stream.Config()
	return e, nil
}

// Start runs the write loop until Stop is called
func (e *ToneEngine) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.done = make(chan struct{})
	e.epochMicro = e.server.getClockMicros()

	log.Printf("Tone engine starting: %s", e.cfg)

	go func() {
		defer close(e.done)
		if err := e.stream.Run(ctx); err != nil {
			log.Printf("Tone engine stopped: %v", err)
			return
		}
		log.Printf("Tone engine stopping")
	}()
}

// Stop ends the write loop and releases the device
func (e *ToneEngine) Stop() {
	if e.cancel != nil {
		e.cancel()
		<-e.done
		e.cancel = nil
	}
	if err := e.stream.Close(); err != nil && !errors.Is(err, output.ErrClosed) {
		log.Printf("Error closing tone stream: %v", err)
	}
}

// Config returns the negotiated stream configuration
func (e *ToneEngine) Config() audio.StreamConfig {
	return e.cfg
}

// Stats returns the tone stream counters
func (e *ToneEngine) Stats() tone.Stats {
	return e.stream.Stats()
}

// SetFrequency retunes the tone and tells every client
func (e *ToneEngine) SetFrequency(hz float64) error {
	hz = tone.ClampFrequency(hz)
	if err := e.stream.SetFrequency(hz); err != nil {
		return err
	}
	log.Printf("Tone frequency set to %.4fHz", hz)

	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()
	for _, client := range e.clients {
		if err := e.server.sendMessage(client, protocol.TypeStreamUpdate, protocol.StreamUpdate{Frequency: hz}); err != nil {
			log.Printf("Error sending stream/update to %s: %v", client.Name, err)
		}
	}
	return nil
}

// streamStart describes the stream in the client's codec
func (e *ToneEngine) streamStart(codec string) protocol.StreamStart {
	start := protocol.StreamStart{
		Codec:      codec,
		SampleRate: e.cfg.Rate,
		Channels:   e.cfg.Channels,
		Frequency:  e.stream.Frequency(),
		PeriodSize: e.cfg.PeriodSize,
	}
	if codec == protocol.CodecOpus {
		start.SampleRate = encode.OpusSampleRate
		start.PeriodSize = 0
	} else {
		start.Format = e.cfg.Format.Name
	}
	return start
}

// AddClient sends stream/start and adds the client to the broadcast set
func (e *ToneEngine) AddClient(client *Client) error {
	if client.Codec == protocol.CodecOpus {
		path, err := newOpusPath(e.cfg)
		if err != nil {
			return err
		}
		client.opus = path
	}

	if err := e.server.sendMessage(client, protocol.TypeStreamStart, e.streamStart(client.Codec)); err != nil {
		return fmt.Errorf("failed to send stream/start: %w", err)
	}

	e.clientsMu.Lock()
	e.clients[client.ID] = client
	e.clientsMu.Unlock()

	log.Printf("Tone engine: added client %s (%s)", client.Name, client.Codec)
	return nil
}

// RemoveClient removes a client from streaming
func (e *ToneEngine) RemoveClient(client *Client) {
	e.clientsMu.Lock()
	defer e.clientsMu.Unlock()

	delete(e.clients, client.ID)
	if client.opus != nil {
		client.opus.Close()
	}
	log.Printf("Tone engine: removed client %s", client.Name)
}

// broadcast runs for every region released to the device
func (e *ToneEngine) broadcast(cfg audio.StreamConfig, region [][]byte) {
	data := interleave(cfg, region)
	frames := len(data) / cfg.FrameBytes()
	timestamp := e.epochMicro + cfg.FramesToDuration(int(e.released)).Microseconds()
	e.released += int64(frames)

	if e.server.config.Debug && e.released%int64(cfg.Rate) < int64(frames) {
		log.Printf("[DEBUG] Broadcast chunk: timestamp=%d, frames=%d, total=%d", timestamp, frames, e.released)
	}

	var pcm []byte
	e.clientsMu.RLock()
	defer e.clientsMu.RUnlock()

	for _, client := range e.clients {
		if client.opus == nil {
			if pcm == nil {
				pcm = protocol.EncodeChunk(protocol.ChunkPCM, timestamp, data)
			}
			if err := e.server.sendBinary(client, pcm); err != nil {
				log.Printf("Error sending audio to %s: %v", client.Name, err)
			}
			continue
		}

		packets, err := client.opus.Encode(data)
		if err != nil {
			log.Printf("Opus encode failed for %s: %v", client.Name, err)
			continue
		}
		for _, p := range packets {
			if err := e.server.sendBinary(client, protocol.EncodeChunk(protocol.ChunkOpus, timestamp, p)); err != nil {
				log.Printf("Error sending audio to %s: %v", client.Name, err)
			}
		}
	}
}

// interleave flattens a released region into wire order
func interleave(cfg audio.StreamConfig, region [][]byte) []byte {
	if len(region) == 1 {
		return append([]byte(nil), region[0]...)
	}

	phys := cfg.Format.PhysicalBytes()
	frames := len(region[0]) / phys
	out := make([]byte, frames*phys*len(region))
	pos := 0
	for i := 0; i < frames; i++ {
		for _, plane := range region {
			copy(out[pos:pos+phys], plane[i*phys:])
			pos += phys
		}
	}
	return out
}

// opusPath transcodes the tone for one opus client
type opusPath struct {
	decoder   *decode.PCMDecoder
	resampler *resample.Resampler // nil when the tone already runs at 48kHz
	encoder   *encode.OpusEncoder
}

func newOpusPath(cfg audio.StreamConfig) (*opusPath, error) {
	if cfg.Channels > 2 {
		return nil, fmt.Errorf("opus needs 1 or 2 channels, stream has %d", cfg.Channels)
	}
	dec, err := decode.NewPCM(cfg)
	if err != nil {
		return nil, err
	}
	enc, err := encode.NewOpus(cfg.Channels)
	if err != nil {
		return nil, err
	}

	p := &opusPath{decoder: dec, encoder: enc}
	if cfg.Rate != encode.OpusSampleRate {
		p.resampler = resample.New(cfg.Rate, encode.OpusSampleRate, cfg.Channels)
	}
	return p, nil
}

// Encode returns the opus packets completed by data
func (p *opusPath) Encode(data []byte) ([][]byte, error) {
	samples, err := p.decoder.DecodeInt16(data)
	if err != nil {
		return nil, err
	}
	if p.resampler != nil {
		samples = p.resampler.Resample(samples)
	}
	return p.encoder.Encode(samples)
}

func (p *opusPath) Close() {
	p.encoder.Close()
	p.decoder.Close()
}
