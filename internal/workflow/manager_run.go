package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"scribe/internal/logging"
)

// Start launches the worker lanes.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.extractor == nil || m.transcriber == nil {
		m.mu.Unlock()
		return errors.New("workflow collaborators not configured")
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for lane := 1; lane <= m.workers; lane++ {
		go m.runLane(runCtx, lane)
	}
	m.logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.Int("workers", m.workers),
		logging.Duration("job_timeout", m.jobTimeout),
		logging.Duration("poll_interval", m.pollInterval),
	)
	return nil
}

// Stop cancels in-flight work and waits for every lane to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped", logging.String(logging.FieldEventType, "workflow_stop"))
}

// Notify wakes one idle lane. It never blocks.
func (m *Manager) Notify() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) runLane(ctx context.Context, lane int) {
	defer m.wg.Done()
	logger := m.logger.With(logging.Int(logging.FieldLane, lane))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, media, ok, err := m.store.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if !ok {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.processJob(ctx, logger, job, media)
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next job", "job_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check registry health; lane will retry after the poll interval"),
	)
	m.waitForJobOrShutdown(ctx)
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}
