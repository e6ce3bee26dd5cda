// Package broadcaster implements the scanner's fan-out (component J):
// every computed snapshot tick is published, non-blockingly, to every
// subscriber registered for that timeframe. Grounded on the teacher's
// internal/marketdata/bus/fanout.go (non-blocking select/default drop,
// generalized from a single fixed-type channel to a per-timeframe keyed
// registry) and internal/gateway/hub.go/client.go (mutex-guarded client
// set, write-pump-per-client).
package broadcaster

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/model"
)

// Envelope is what a subscriber receives: either a ranked scanner
// snapshot or a benchmark-state update for one timeframe.
type Envelope struct {
	Kind       string                  `json:"kind"` // "scanner" | "benchmarks"
	Timeframe  string                  `json:"timeframe"`
	TS         time.Time               `json:"ts"`
	Snapshot   *model.ScannerSnapshot  `json:"snapshot,omitempty"`
	Benchmarks []model.BenchmarkState  `json:"benchmarks,omitempty"`
}

// JSON marshals the envelope, matching the teacher's JSON()-method
// convention on wire types.
func (e Envelope) JSON() []byte {
	b, _ := json.Marshal(e)
	return b
}

type subscriber struct {
	id int
	ch chan Envelope
}

// Broadcaster fans out Envelopes per timeframe. Safe for concurrent
// Register/Unregister/Publish/PublishBenchmarks calls.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[string][]subscriber // timeframe -> subscribers
	nextID  int
	bufSize int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// New creates a Broadcaster whose per-subscriber channels are buffered to
// bufSize; a subscriber slower than that loses ticks rather than stalling
// the publisher.
func New(bufSize int, m *metrics.Metrics, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		subs:    make(map[string][]subscriber),
		bufSize: bufSize,
		Metrics: m,
		Logger:  logger,
	}
}

// Register subscribes to a timeframe's envelopes, returning an id for
// Unregister and a receive-only channel of updates.
func (b *Broadcaster) Register(timeframe string) (int, <-chan Envelope) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Envelope, b.bufSize)
	b.subs[timeframe] = append(b.subs[timeframe], subscriber{id: id, ch: ch})
	if b.Metrics != nil {
		b.Metrics.Subscribers.WithLabelValues(timeframe).Set(float64(len(b.subs[timeframe])))
	}
	return id, ch
}

// Unregister removes and closes a subscriber's channel.
func (b *Broadcaster) Unregister(timeframe string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[timeframe]
	for i, s := range subs {
		if s.id == id {
			close(s.ch)
			b.subs[timeframe] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if b.Metrics != nil {
		b.Metrics.Subscribers.WithLabelValues(timeframe).Set(float64(len(b.subs[timeframe])))
	}
}

// Publish implements compute.Publisher: fans a ranked snapshot out to
// every subscriber of its timeframe.
func (b *Broadcaster) Publish(timeframe string, snap model.ScannerSnapshot) {
	b.publish(timeframe, Envelope{Kind: "scanner", Timeframe: timeframe, TS: snap.TS, Snapshot: &snap})
}

// PublishBenchmarks implements compute.Publisher: fans benchmark-state
// readings out to every subscriber of their timeframe.
func (b *Broadcaster) PublishBenchmarks(timeframe string, states []model.BenchmarkState) {
	ts := time.Now().UTC()
	if len(states) > 0 {
		ts = states[0].TS
	}
	b.publish(timeframe, Envelope{Kind: "benchmarks", Timeframe: timeframe, TS: ts, Benchmarks: states})
}

// PublishFromWorker publishes an already-built Envelope for a timeframe. It
// exists as the documented entry point for callers running on a worker
// goroutine outside the ingest/compute tick loop (e.g. a replay or backfill
// job): publish takes only the registry's RWMutex, so there is nothing
// loop-affine to cross here, but call sites should still go through this
// method rather than reaching into publish directly, in case that stops
// being true.
func (b *Broadcaster) PublishFromWorker(timeframe string, env Envelope) {
	b.publish(timeframe, env)
}

func (b *Broadcaster) publish(timeframe string, env Envelope) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[timeframe] {
		select {
		case s.ch <- env:
		default:
			if b.Metrics != nil {
				b.Metrics.BroadcastDrops.Inc()
			}
			if b.Logger != nil {
				b.Logger.Warn("subscriber channel full, dropping envelope", "timeframe", timeframe, "subscriber", s.id)
			}
		}
	}
}

// SubscriberCount reports the current subscriber count for a timeframe,
// mainly for tests and the health endpoint.
func (b *Broadcaster) SubscriberCount(timeframe string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[timeframe])
}
