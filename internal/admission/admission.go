// Package admission rate limits job submissions per caller identity.
//
// Each identity owns a token bucket holding up to the configured threshold of
// submissions and refilling at threshold per window, so a caller may submit
// the threshold back to back and then one more every window/threshold.
// Buckets idle for longer than a window are full again and are reclaimed by
// Sweep.
//
// Any single window admits at most 2*threshold-1 submissions per identity: a
// full bucket at the start of the window plus the tokens refilled before it
// ends. A fixed window counter has the same excess across its boundary. The
// burst bound holds exactly: N simultaneous submissions see at least
// N-threshold rejections.
package admission

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"scribe/internal/logging"
	"scribe/internal/services"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
	Remaining  int
}

// RejectedError reports a submission refused by admission control. It wraps
// services.ErrRejected.
type RejectedError struct {
	Identity   string
	RetryAfter time.Duration
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %s: retry after %s", services.ErrRejected, e.Identity, e.RetryAfter.Round(time.Second))
}

func (e *RejectedError) Unwrap() error { return services.ErrRejected }

// ErrorKind classifies the rejection.
func (e *RejectedError) ErrorKind() string { return string(services.KindRejected) }

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Controller tracks one bucket per identity.
type Controller struct {
	threshold int
	window    time.Duration
	limit     rate.Limit
	logger    *slog.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	runMu  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController builds a controller admitting threshold submissions per
// window for each identity.
func NewController(threshold int, window time.Duration, logger *slog.Logger) *Controller {
	if threshold <= 0 {
		threshold = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Controller{
		threshold: threshold,
		window:    window,
		limit:     rate.Limit(float64(threshold) / window.Seconds()),
		logger:    logging.NewComponentLogger(logger, "admission"),
		buckets:   make(map[string]*bucket),
	}
}

func normalizeIdentity(identity string) string {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return "unknown"
	}
	return identity
}

// Allow consumes one submission for identity at now.
func (c *Controller) Allow(identity string, now time.Time) Decision {
	identity = normalizeIdentity(identity)

	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.buckets[identity]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(c.limit, c.threshold)}
		c.buckets[identity] = b
	}
	b.lastSeen = now

	reservation := b.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return Decision{Allowed: false, RetryAfter: c.window}
	}
	if delay := reservation.DelayFrom(now); delay > 0 {
		reservation.CancelAt(now)
		c.logger.Debug("submission rejected",
			logging.String("identity", identity),
			logging.Duration("retry_after", delay),
		)
		return Decision{Allowed: false, RetryAfter: delay}
	}
	remaining := int(b.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return Decision{Allowed: true, Remaining: remaining}
}

// Check is Allow expressed as an error: nil when admitted, *RejectedError otherwise.
func (c *Controller) Check(identity string, now time.Time) error {
	decision := c.Allow(identity, now)
	if decision.Allowed {
		return nil
	}
	return &RejectedError{Identity: normalizeIdentity(identity), RetryAfter: decision.RetryAfter}
}

// Sweep discards buckets idle for longer than the window and returns how many
// were removed. A reclaimed identity starts over with a full bucket, which is
// the state its bucket would have refilled to anyway.
func (c *Controller) Sweep(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for identity, b := range c.buckets {
		if now.Sub(b.lastSeen) > c.window {
			delete(c.buckets, identity)
			removed++
		}
	}
	return removed
}

// Tracked returns the number of identities currently holding a bucket.
func (c *Controller) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buckets)
}

// Start launches the sweep loop in the background. Calling Start on a running
// controller is a no-op.
func (c *Controller) Start(ctx context.Context) {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.cancel != nil {
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	go func() {
		defer close(done)
		c.Run(loopCtx)
	}()
}

// Stop cancels the sweep loop started by Start and waits for it to exit.
func (c *Controller) Stop() {
	c.runMu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.runMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run sweeps idle buckets every window until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if removed := c.Sweep(now); removed > 0 {
				c.logger.Debug("admission buckets reclaimed",
					logging.Int("removed", removed),
					logging.Int("tracked", c.Tracked()),
				)
			}
		}
	}
}
