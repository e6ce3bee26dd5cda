package broadcaster

import (
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"relstrength-scanner/internal/metrics"
	"relstrength-scanner/internal/model"
)

var (
	testMetricsOnce sync.Once
	testMetrics     *metrics.Metrics
)

func sharedTestMetrics() *metrics.Metrics {
	testMetricsOnce.Do(func() { testMetrics = metrics.NewMetrics() })
	return testMetrics
}

func newTestBroadcaster() *Broadcaster {
	return New(4, sharedTestMetrics(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestPublishDeliversToRegisteredSubscriber(t *testing.T) {
	b := newTestBroadcaster()
	_, ch := b.Register("5m")

	snap := model.ScannerSnapshot{Timeframe: "5m", TS: time.Now(), Rows: []model.ScannerRow{{Symbol: "A"}}}
	b.Publish("5m", snap)

	select {
	case env := <-ch:
		if env.Kind != "scanner" || env.Snapshot == nil || len(env.Snapshot.Rows) != 1 {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestPublishDoesNotCrossTimeframes(t *testing.T) {
	b := newTestBroadcaster()
	_, ch5m := b.Register("5m")
	_, ch1h := b.Register("1h")

	b.Publish("5m", model.ScannerSnapshot{Timeframe: "5m"})

	select {
	case <-ch5m:
	case <-time.After(time.Second):
		t.Fatal("5m subscriber got nothing")
	}
	select {
	case <-ch1h:
		t.Fatal("1h subscriber should not have received a 5m publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDropsWhenSubscriberBufferFull(t *testing.T) {
	b := newTestBroadcaster()
	_, ch := b.Register("5m")

	// bufSize is 4; publish 10 times without draining so some must drop.
	for i := 0; i < 10; i++ {
		b.Publish("5m", model.ScannerSnapshot{Timeframe: "5m"})
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		default:
			if count == 0 {
				t.Fatal("expected at least the buffered envelopes to be delivered")
			}
			if count > 4 {
				t.Fatalf("expected at most buffer-size envelopes queued, got %d", count)
			}
			return
		}
	}
}

func TestPublishFromWorkerDeliversToRegisteredSubscriber(t *testing.T) {
	b := newTestBroadcaster()
	_, ch := b.Register("1d")

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	env := Envelope{Kind: "benchmarks", Timeframe: "1d", TS: ts, Benchmarks: []model.BenchmarkState{{Symbol: "NIFTY"}}}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.PublishFromWorker("1d", env)
	}()
	wg.Wait()

	select {
	case got := <-ch:
		if got.Kind != "benchmarks" || !got.TS.Equal(ts) {
			t.Fatalf("unexpected envelope: %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}

func TestUnregisterClosesChannel(t *testing.T) {
	b := newTestBroadcaster()
	id, ch := b.Register("1d")
	if b.SubscriberCount("1d") != 1 {
		t.Fatalf("expected 1 subscriber")
	}
	b.Unregister("1d", id)
	if b.SubscriberCount("1d") != 0 {
		t.Fatalf("expected 0 subscribers after unregister")
	}
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after unregister")
	}
}

func TestPublishBenchmarksUsesFirstStateTimestamp(t *testing.T) {
	b := newTestBroadcaster()
	_, ch := b.Register("15m")

	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	b.PublishBenchmarks("15m", []model.BenchmarkState{{Symbol: "NIFTY", TS: ts}})

	select {
	case env := <-ch:
		if env.Kind != "benchmarks" || !env.TS.Equal(ts) {
			t.Fatalf("unexpected envelope: %+v", env)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for envelope")
	}
}
