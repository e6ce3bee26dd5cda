// Package scheduler implements the scanner's scheduling loop (component I):
// per configured timeframe, two independent periodic loops (ingest, compute)
// gated by market hours, each tick's heavy work dispatched onto a bounded
// worker pool, with one mutex per workflow kind serializing ticks across all
// timeframes. Grounded on original_source/.../services/scheduler.py
// (asyncio.Lock per workflow kind held across an asyncio.to_thread call) and
// the teacher's internal/indengine/service.go (Run(ctx) spawning long-lived
// goroutines that block on ctx.Done for shutdown).
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"relstrength-scanner/internal/markethours"
	"relstrength-scanner/internal/metrics"
)

// Ingestor is the subset of internal/ingest.Ingestor the scheduler drives.
type Ingestor interface {
	RunOnce(ctx context.Context, timeframe string) error
}

// Compute is the subset of internal/compute.Engine the scheduler drives.
type Compute interface {
	ComputeTimeframe(ctx context.Context, timeframe string) error
}

// Config holds the scheduler's tunables, sourced from config.Config.
type Config struct {
	Timeframes      []string
	IngestInterval  time.Duration
	ComputeInterval time.Duration
	WorkerPoolSize  int
}

// job is one unit of dispatched work: run fn, then signal done.
type job struct {
	fn   func(ctx context.Context) error
	done chan error
}

// Scheduler drives the ingest and compute loops for every configured
// timeframe. A single mutex serializes all ingest ticks across timeframes;
// a separate single mutex serializes all compute ticks across timeframes —
// this mirrors the Python original's one asyncio.Lock per workflow kind,
// not one lock per timeframe, and prevents upstream/DB write contention
// across concurrently-ticking timeframes.
type Scheduler struct {
	cfg      Config
	ingestor Ingestor
	compute  Compute
	calendar *markethours.Calendar
	metrics  *metrics.Metrics
	health   *metrics.HealthStatus
	logger   *slog.Logger

	ingestMu  sync.Mutex
	computeMu sync.Mutex

	jobs chan job
	wg   sync.WaitGroup
}

// New builds a Scheduler. poolSize is clamped to at least 1. health may be
// nil, in which case the scheduler simply does not report liveness.
func New(cfg Config, ingestor Ingestor, compute Compute, calendar *markethours.Calendar, m *metrics.Metrics, health *metrics.HealthStatus, logger *slog.Logger) *Scheduler {
	if cfg.WorkerPoolSize < 1 {
		cfg.WorkerPoolSize = 1
	}
	if health != nil {
		health.SetTimeframes(cfg.Timeframes)
	}
	return &Scheduler{
		cfg:      cfg,
		ingestor: ingestor,
		compute:  compute,
		calendar: calendar,
		metrics:  m,
		health:   health,
		logger:   logger,
		jobs:     make(chan job),
	}
}

// Start launches the worker pool and one ingest-loop plus one compute-loop
// goroutine per configured timeframe. It returns immediately; call Wait to
// block until every loop has exited (which happens once ctx is cancelled).
func (s *Scheduler) Start(ctx context.Context) {
	for i := 0; i < s.cfg.WorkerPoolSize; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
	for _, tf := range s.cfg.Timeframes {
		tf := tf
		s.wg.Add(2)
		go s.ingestLoop(ctx, tf)
		go s.computeLoop(ctx, tf)
	}
}

// Wait blocks until every loop and worker goroutine has returned, which
// happens once ctx passed to Start is cancelled and any in-flight tick
// finishes running (in-flight work is not cancelled mid-operation, matching
// the "run to completion but cannot be retried after shutdown" contract).
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// worker drains jobs until ctx is cancelled; it is the Go analogue of
// asyncio.to_thread — the event-loop-equivalent (the ingest/compute loop
// goroutines) stays responsive to ticks and cancellation while the blocking
// call runs here. Each job runs on a context detached from ctx's
// cancellation, so a tick already dispatched runs to completion.
func (s *Scheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case j, ok := <-s.jobs:
			if !ok {
				return
			}
			j.done <- j.fn(context.WithoutCancel(ctx))
		case <-ctx.Done():
			return
		}
	}
}

// dispatch hands fn to the worker pool and blocks until it completes (or
// ctx is cancelled). The calling loop holds its workflow-kind mutex across
// this call, so the next tick for any timeframe of that kind waits behind
// it — overlapping-tick suppression via blocking acquisition, not a
// try-lock-and-skip.
func (s *Scheduler) dispatch(ctx context.Context, fn func(ctx context.Context) error) error {
	j := job{fn: fn, done: make(chan error, 1)}
	select {
	case s.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) ingestLoop(ctx context.Context, timeframe string) {
	defer s.wg.Done()
	s.runLoop(ctx, "ingest", timeframe, s.cfg.IngestInterval, &s.ingestMu, func(ctx context.Context) error {
		err := s.ingestor.RunOnce(ctx, timeframe)
		if err == nil && s.health != nil {
			s.health.SetLastIngestAt(time.Now())
		}
		return err
	})
}

func (s *Scheduler) computeLoop(ctx context.Context, timeframe string) {
	defer s.wg.Done()
	s.runLoop(ctx, "compute", timeframe, s.cfg.ComputeInterval, &s.computeMu, func(ctx context.Context) error {
		err := s.compute.ComputeTimeframe(ctx, timeframe)
		if err == nil && s.health != nil {
			s.health.SetLastComputeAt(time.Now())
		}
		return err
	})
}

// runLoop is shared by ingestLoop and computeLoop: sleep interval, check
// the market-hours gate, acquire the workflow-kind mutex (blocking — this
// is the overlap suppression), dispatch to the worker pool, release.
func (s *Scheduler) runLoop(ctx context.Context, kind, timeframe string, interval time.Duration, mu *sync.Mutex, fn func(ctx context.Context) error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.calendar != nil {
			open := s.calendar.IsOpen(time.Now())
			if s.health != nil {
				s.health.SetMarketOpen(open)
			}
			if !open {
				if s.metrics != nil {
					s.metrics.SchedulerSkippedMarketClosed.WithLabelValues(kind).Inc()
				}
				s.logger.Debug("market closed, skipping tick", "kind", kind, "timeframe", timeframe)
				continue
			}
		}

		if !s.tryLockOrWaitWithMetric(ctx, kind, timeframe, mu) {
			return
		}
		err := s.dispatch(ctx, fn)
		mu.Unlock()

		if err != nil {
			s.logger.Warn("tick failed", "kind", kind, "timeframe", timeframe, "error", err)
		}
	}
}

// tryLockOrWaitWithMetric acquires mu, blocking if another tick of the same
// kind (any timeframe) is in flight, and records an overlap-suppressed
// metric when acquisition did not succeed immediately. Returns false if ctx
// was cancelled before the lock could be acquired.
func (s *Scheduler) tryLockOrWaitWithMetric(ctx context.Context, kind, timeframe string, mu *sync.Mutex) bool {
	if mu.TryLock() {
		return true
	}
	if s.metrics != nil {
		s.metrics.SchedulerOverlapSuppressed.WithLabelValues(kind).Inc()
	}
	s.logger.Debug("previous tick still running, waiting", "kind", kind, "timeframe", timeframe)

	acquired := make(chan struct{})
	go func() {
		mu.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return true
	case <-ctx.Done():
		return false
	}
}
