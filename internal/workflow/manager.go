package workflow

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"scribe/internal/config"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services/whisperx"
)

// Extractor converts an uploaded container into 16 kHz mono PCM WAV bytes.
type Extractor interface {
	Extract(ctx context.Context, media []byte) ([]byte, error)
}

// Transcriber turns PCM audio into text. An empty hint requests language
// auto-detection.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, languageHint string) (whisperx.Transcript, error)
}

// Manager coordinates job processing across worker lanes.
type Manager struct {
	store       *jobs.Store
	extractor   Extractor
	transcriber Transcriber
	logger      *slog.Logger

	workers      int
	pollInterval time.Duration
	jobTimeout   time.Duration
	wake         chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJobID int64

	busy      atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithPollInterval overrides how long idle lanes wait between registry checks.
func WithPollInterval(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithJobTimeout overrides the per-job wall-clock ceiling.
func WithJobTimeout(d time.Duration) ManagerOption {
	return func(m *Manager) {
		if d > 0 {
			m.jobTimeout = d
		}
	}
}

// NewManager constructs a workflow manager. The lane count is the configured
// worker count, capped at the number of inference instances.
func NewManager(cfg *config.Config, store *jobs.Store, extractor Extractor, transcriber Transcriber, logger *slog.Logger, opts ...ManagerOption) *Manager {
	workers := cfg.Workflow.Workers
	if instances := cfg.Workflow.InferenceInstances; instances > 0 && workers > instances {
		workers = instances
	}
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		store:        store,
		extractor:    extractor,
		transcriber:  transcriber,
		logger:       logging.NewComponentLogger(logger, "workflow-manager"),
		workers:      workers,
		pollInterval: cfg.PollInterval(),
		jobTimeout:   cfg.JobTimeout(),
		wake:         make(chan struct{}, workers),
	}
	if m.pollInterval <= 0 {
		m.pollInterval = 5 * time.Second
	}
	if m.jobTimeout <= 0 {
		m.jobTimeout = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Workers returns the number of lanes the manager runs.
func (m *Manager) Workers() int {
	return m.workers
}
