// Package reaper deletes job records once they outlive the retention horizon.
package reaper

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"scribe/internal/logging"
)

// Store is the registry surface the reaper needs.
type Store interface {
	DeleteExpired(ctx context.Context, horizon time.Duration) (int64, error)
}

// Reaper sweeps expired records on a fixed interval.
type Reaper struct {
	store    Store
	horizon  time.Duration
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	removed int64
}

// New constructs a reaper. Records older than horizon are removed every
// interval regardless of status.
func New(store Store, horizon, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Reaper{
		store:    store,
		horizon:  horizon,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "reaper"),
	}
}

// Start launches the sweep loop. Calling Start on a running reaper is a no-op.
func (r *Reaper) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
}

// Stop cancels the sweep loop and waits for it to exit.
func (r *Reaper) Stop() {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	r.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Removed returns the total number of records deleted so far.
func (r *Reaper) Removed() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removed
}

func (r *Reaper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
				logging.WarnWithContext(r.logger, "expiry sweep failed", "reaper_sweep_failed",
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "sweep retries on the next interval"),
					logging.String(logging.FieldImpact, "expired jobs stay visible until the next sweep"),
				)
			}
		}
	}
}

// RunOnce performs a single sweep and returns the number of deleted records.
func (r *Reaper) RunOnce(ctx context.Context) (int64, error) {
	removed, err := r.store.DeleteExpired(ctx, r.horizon)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		r.mu.Lock()
		r.removed += removed
		r.mu.Unlock()
		r.logger.Info("expired jobs removed",
			logging.String(logging.FieldEventType, "jobs_expired"),
			logging.Int64("removed", removed),
			logging.Duration("horizon", r.horizon),
		)
	}
	return removed, nil
}
