package workflow

import (
	"context"
	"errors"
	"log/slog"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
)

// handleJobFailure records the classified failure on the job. A job that was
// reaped in the meantime is skipped silently.
func (m *Manager) handleJobFailure(ctx context.Context, logger *slog.Logger, id int64, jobErr error) {
	m.setLastError(jobErr)
	kind := services.Classify(jobErr)
	message := services.FailureMessage(jobErr)

	logging.ErrorWithContext(logger, "job failed", "job_failure",
		logging.String("resolved_status", string(jobs.StatusFailed)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, string(kind)),
		logging.String(logging.FieldErrorHint, services.Hint(kind)),
		logging.Error(jobErr),
	)

	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	applied, err := m.store.Update(persistCtx, id, jobs.Failed(message))
	switch {
	case err != nil && errors.Is(err, jobs.ErrInvalidTransition):
		logger.Warn("job already terminal; failure not recorded",
			logging.Error(err),
			logging.String(logging.FieldEventType, "job_failure_dropped"),
			logging.String(logging.FieldErrorHint, "inspect the job record for the earlier outcome"),
			logging.String(logging.FieldImpact, "the failure above is not visible to pollers"),
		)
	case err != nil:
		logger.Error("failed to persist job failure", logging.Error(err))
	case !applied:
		logger.Debug("job expired before failure was recorded", logging.String(logging.FieldEventType, "job_discarded"))
	default:
		m.failed.Add(1)
	}
}
