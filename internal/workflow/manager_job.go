package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribe/internal/jobs"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/media/wav"
	"scribe/internal/services"
)

const (
	stageExtract    = "extract"
	stageTranscribe = "transcribe"

	persistTimeout = 10 * time.Second
)

type outcome struct {
	text             string
	detectedLanguage string
	durationSeconds  float64
}

// processJob runs one claimed job to a terminal state. The media slice is
// owned by this call and dropped on return.
func (m *Manager) processJob(ctx context.Context, laneLogger *slog.Logger, job jobs.Job, media []byte) {
	m.busy.Add(1)
	defer m.busy.Add(-1)
	m.setLastJob(job.ID)

	jobCtx := services.WithJobID(ctx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, laneLogger)
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			err := services.Wrap(services.ErrInternal, "workflow", "", fmt.Sprintf("panic: %v", r), nil)
			logger.Error("job panicked",
				logging.String(logging.FieldEventType, "job_panic"),
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
			m.handleJobFailure(ctx, logger, job.ID, err)
		}
	}()

	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("original_filename", job.OriginalFilename),
		logging.Int64("size_bytes", job.SizeBytes),
		logging.String("language_hint", job.LanguageHint),
	)

	// The claim already moved the record to processing; re-applying it is a
	// no-op that also confirms the record was not reaped between statements.
	if applied, err := m.store.Update(jobCtx, job.ID, jobs.Processing()); err != nil {
		m.handleJobFailure(ctx, logger, job.ID, services.Wrap(services.ErrInternal, "workflow", "mark processing", "", err))
		return
	} else if !applied {
		logger.Debug("job expired before processing started", logging.String(logging.FieldEventType, "job_discarded"))
		return
	}

	result, err := m.run(jobCtx, logger, job, media)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			logger.Debug("job interrupted by shutdown", logging.String(logging.FieldEventType, "job_interrupted"))
			return
		}
		m.handleJobFailure(ctx, logger, job.ID, err)
		return
	}

	persistCtx, cancel := persistContext(ctx)
	defer cancel()
	applied, err := m.store.Update(persistCtx, job.ID, jobs.Completed(result.text, result.detectedLanguage, result.durationSeconds))
	if err != nil {
		m.setLastError(err)
		logging.ErrorWithContext(logger, "failed to persist job result", "job_persist_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check registry health"),
		)
		return
	}
	if !applied {
		logger.Debug("job expired before result was recorded; result discarded",
			logging.String(logging.FieldEventType, "job_discarded"),
		)
		return
	}
	m.completed.Add(1)
	logger.Info("job completed",
		logging.String(logging.FieldEventType, "job_complete"),
		logging.String("detected_language", result.detectedLanguage),
		logging.Float64("audio_duration_seconds", result.durationSeconds),
		logging.Int("text_chars", len(result.text)),
		logging.Duration("job_duration", time.Since(start)),
	)
}

// run executes the collaborators under the per-job ceiling and returns
// classified errors.
func (m *Manager) run(ctx context.Context, logger *slog.Logger, job jobs.Job, media []byte) (outcome, error) {
	runCtx, cancel := context.WithTimeout(ctx, m.jobTimeout)
	defer cancel()

	extractCtx := services.WithStage(runCtx, stageExtract)
	extractStart := time.Now()
	audio, err := m.extractor.Extract(extractCtx, media)
	if err != nil {
		return outcome{}, m.classify(runCtx, stageExtract, services.ErrExtraction, err)
	}
	if len(audio) == 0 {
		return outcome{}, services.Wrap(services.ErrExtraction, stageExtract, "", "extractor returned no audio", nil)
	}
	logging.WithContext(extractCtx, logger).Debug("audio extracted",
		logging.Int("audio_bytes", len(audio)),
		logging.Duration("stage_duration", time.Since(extractStart)),
	)

	hint := language.ToISO2(job.LanguageHint)
	transcribeCtx := services.WithStage(runCtx, stageTranscribe)
	transcribeStart := time.Now()
	transcript, err := m.transcriber.Transcribe(transcribeCtx, audio, hint)
	if err != nil {
		return outcome{}, m.classify(runCtx, stageTranscribe, services.ErrInference, err)
	}
	logging.WithContext(transcribeCtx, logger).Debug("audio transcribed",
		logging.Int("segments", len(transcript.Segments)),
		logging.Duration("stage_duration", time.Since(transcribeStart)),
	)

	result := outcome{
		text:             strings.TrimSpace(transcript.Text),
		detectedLanguage: language.ToISO2(transcript.Language),
		durationSeconds:  transcript.DurationSeconds,
	}
	if result.detectedLanguage == "" {
		result.detectedLanguage = hint
	}
	if result.durationSeconds <= 0 {
		if seconds, err := wav.Duration(audio); err == nil {
			result.durationSeconds = seconds
		}
	}
	return result, nil
}

// classify tags a collaborator error with its stage marker unless it already
// carries one. Deadline expiry becomes a timeout regardless of what the
// collaborator reported.
func (m *Manager) classify(ctx context.Context, stage string, marker error, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !errors.Is(err, services.ErrTimeout) {
		return services.Wrap(services.ErrTimeout, stage, "", fmt.Sprintf("exceeded job timeout of %s", m.jobTimeout), err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if services.Classify(err) == services.KindInternal && !errors.Is(err, services.ErrInternal) {
		return services.Wrap(marker, stage, "", "", err)
	}
	return err
}

func persistContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}
