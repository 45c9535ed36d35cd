package worker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics is a snapshot of the runner's tick counters.
type Metrics struct {
	Ticks     uint64 `json:"ticks_total"`
	Claims    uint64 `json:"claims_total"`
	IdleTicks uint64 `json:"idle_ticks_total"`
	Errors    uint64 `json:"errors_total"`
}

// Runner drives a Loop on a cadence with three sleep modes: a short poll
// sleep after a tick that worked, idle backoff when no work was found, and
// error backoff when infrastructure failed.
type Runner struct {
	loop   *Loop
	cfg    Config
	logger *slog.Logger

	ticks     atomic.Uint64
	claims    atomic.Uint64
	idleTicks atomic.Uint64
	errors    atomic.Uint64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a runner for the loop.
func NewRunner(loop *Loop, cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		loop:   loop,
		cfg:    cfg,
		logger: logger.With("worker_id", loop.workerID, "stage", loop.stage),
		stopCh: make(chan struct{}),
	}
}

// Start begins the tick loop in a goroutine.
func (r *Runner) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.run(ctx)
}

// Stop signals the runner to stop and waits for the in-flight tick to
// finish. It is safe to call Stop multiple times.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

// Metrics returns a snapshot of the tick counters.
func (r *Runner) Metrics() Metrics {
	return Metrics{
		Ticks:     r.ticks.Load(),
		Claims:    r.claims.Load(),
		IdleTicks: r.idleTicks.Load(),
		Errors:    r.errors.Load(),
	}
}

func (r *Runner) run(ctx context.Context) {
	defer r.wg.Done()

	r.logger.Info("Worker runner started",
		"poll_interval", r.cfg.PollInterval,
		"idle_backoff", r.cfg.IdleBackoff,
		"error_backoff", r.cfg.ErrorBackoff,
		"lease_seconds", r.cfg.LeaseSeconds)

	for {
		select {
		case <-r.stopCh:
			r.logger.Info("Worker runner shutting down")
			return
		case <-ctx.Done():
			r.logger.Info("Context cancelled, worker runner shutting down")
			return
		default:
		}

		r.ticks.Add(1)
		didWork, err := r.loop.RunOnce(ctx)
		switch {
		case err != nil:
			r.errors.Add(1)
			if ctx.Err() == nil {
				r.logger.Error("Tick failed", "error", err)
			}
			r.sleep(r.cfg.ErrorBackoff)
		case didWork:
			r.claims.Add(1)
			r.sleep(r.cfg.PollInterval)
		default:
			r.idleTicks.Add(1)
			r.sleep(r.cfg.IdleBackoff)
		}
	}
}

// sleep waits for the given duration or until stop is signalled.
func (r *Runner) sleep(d time.Duration) {
	select {
	case <-r.stopCh:
	case <-time.After(d):
	}
}
