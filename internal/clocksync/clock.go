// ABOUTME: Clock synchronization against the tone server
// ABOUTME: Tracks offset and drift from client/time round trips
package clocksync

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// Samples outside these bounds are discarded
const (
	maxRTT      = 100_000 // µs
	maxResidual = 50_000  // µs
	degradedRTT = 50_000  // µs
	staleAfter  = 5 * time.Second
)

// Quality represents sync quality
type Quality int

const (
	QualityGood Quality = iota
	QualityDegraded
	QualityLost
)

func (q Quality) String() string {
	switch q {
	case QualityGood:
		return "good"
	case QualityDegraded:
		return "degraded"
	case QualityLost:
		return "lost"
	default:
		return fmt.Sprintf("Quality(%d)", int(q))
	}
}

// ClockSync maps server clock microseconds onto the local Unix clock.
// server = client + offset + drift*(client - lastSync)
type ClockSync struct {
	mu             sync.RWMutex
	offset         int64   // µs, server - client
	drift          float64 // µs per µs
	rtt            int64
	quality        Quality
	lastSync       time.Time
	lastSyncMicros int64 // client time of the last accepted sample
	sampleCount    int
	smoothing      float64
	now            func() time.Time
}

// NewClockSync creates an unsynchronized clock
func NewClockSync() *ClockSync {
	return &ClockSync{
		smoothing: 0.1,
		quality:   QualityLost,
		now:       time.Now,
	}
}

// ClientMicros is the local clock used for t1 and t4
func (cs *ClockSync) ClientMicros() int64 {
	return cs.now().UnixMicro()
}

// ProcessSyncResponse folds one round trip into the estimate.
// t1 and t4 are client send and receive times, t2 and t3 the server's.
func (cs *ClockSync) ProcessSyncResponse(t1, t2, t3, t4 int64) {
	rtt, measured := calculateOffset(t1, t2, t3, t4)

	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.rtt = rtt
	if rtt < 0 || rtt > maxRTT {
		log.Printf("Discarding sync sample: rtt %dµs", rtt)
		return
	}
	cs.lastSync = cs.now()

	switch cs.sampleCount {
	case 0:
		cs.offset = measured
	case 1:
		if dt := float64(t4 - cs.lastSyncMicros); dt > 0 {
			cs.drift = float64(measured-cs.offset) / dt
		}
		cs.offset = measured
	default:
		dt := float64(t4 - cs.lastSyncMicros)
		if dt <= 0 {
			log.Printf("Discarding sync sample: non-monotonic time")
			return
		}
		predicted := cs.offset + int64(cs.drift*dt)
		residual := measured - predicted
		if residual > maxResidual || residual < -maxResidual {
			log.Printf("Discarding sync sample: residual %dµs", residual)
			return
		}
		cs.offset = predicted + int64(cs.smoothing*float64(residual))
		cs.drift += cs.smoothing * float64(residual) / dt
	}

	cs.lastSyncMicros = t4
	cs.sampleCount++
	if rtt < degradedRTT {
		cs.quality = QualityGood
	} else {
		cs.quality = QualityDegraded
	}
}

func calculateOffset(t1, t2, t3, t4 int64) (rtt, offset int64) {
	rtt = (t4 - t1) - (t3 - t2)
	offset = ((t2 - t1) + (t3 - t4)) / 2
	return
}

// Synced reports whether at least one sample was accepted
func (cs *ClockSync) Synced() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.sampleCount > 0
}

// Stats returns the current offset, last rtt and quality
func (cs *ClockSync) Stats() (offset, rtt int64, quality Quality) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.offset, cs.rtt, cs.quality
}

// CheckQuality marks the sync lost when no sample arrived recently
func (cs *ClockSync) CheckQuality() Quality {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.now().Sub(cs.lastSync) > staleAfter {
		cs.quality = QualityLost
	}
	return cs.quality
}

// ServerToLocal converts a server timestamp to local Unix microseconds.
// Before the first sample the clocks are assumed equal.
func (cs *ClockSync) ServerToLocal(serverMicros int64) int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	if cs.sampleCount == 0 {
		return serverMicros
	}
	// Inverse of server = client*(1+drift) + offset - drift*lastSync
	n := float64(serverMicros) - float64(cs.offset) + cs.drift*float64(cs.lastSyncMicros)
	return int64(n / (1 + cs.drift))
}

// ServerNow returns the current time on the server clock
func (cs *ClockSync) ServerNow() int64 {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	client := cs.now().UnixMicro()
	if cs.sampleCount == 0 {
		return client
	}
	return client + cs.offset + int64(cs.drift*float64(client-cs.lastSyncMicros))
}
