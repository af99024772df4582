package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/admission"
	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/language"
	"scribe/internal/logging"
	"scribe/internal/reaper"
	"scribe/internal/services"
	"scribe/internal/workflow"
)

// Daemon coordinates the background processing services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *jobs.Store
	workflow  *workflow.Manager
	admission *admission.Controller
	reaper    *reaper.Reaper
	api       *apiServer
	now       func() time.Time

	lockPath string
	lock     *flock.Flock

	depsMu       sync.RWMutex
	dependencies []deps.Status

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// SubmitRequest carries one upload into the registry.
type SubmitRequest struct {
	Media        []byte
	LanguageHint string
	Filename     string
	Identity     string
}

// Health represents daemon runtime information.
type Health struct {
	Running      bool
	PID          int
	Active       int
	Total        int
	Counts       map[jobs.Status]int
	Workflow     workflow.StatusSummary
	Dependencies []deps.Status
	LockFilePath string
}

// Healthy reports whether the daemon is running with every required dependency.
func (h Health) Healthy() bool {
	return h.Running && len(deps.Missing(h.Dependencies)) == 0
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *jobs.Store, logger *slog.Logger, wf *workflow.Manager, adm *admission.Controller, rp *reaper.Reaper) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || wf == nil || adm == nil || rp == nil {
		return nil, errors.New("daemon requires config, store, logger, workflow manager, admission controller, and reaper")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "scribed.lock")
	d := &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		workflow:  wf,
		admission: adm,
		reaper:    rp,
		now:       time.Now,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock and launches the workflow, reaper, admission
// sweeper, and HTTP server.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := os.MkdirAll(filepath.Dir(d.lockPath), 0o755); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another scribe daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	if err := d.workflow.Start(d.ctx); err != nil {
		d.abortStart()
		return fmt.Errorf("start workflow: %w", err)
	}
	if err := d.api.start(d.ctx); err != nil {
		d.workflow.Stop()
		d.abortStart()
		return err
	}
	d.reaper.Start(d.ctx)
	d.admission.Start(d.ctx)

	d.running.Store(true)
	d.logger.Info("scribe daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.String("address", d.api.address()),
	)
	return nil
}

func (d *Daemon) abortStart() {
	_ = d.lock.Unlock()
	d.cancel()
	d.ctx = nil
	d.cancel = nil
}

// Stop halts background processing and releases the daemon lock. Jobs still
// pending or processing are abandoned with the in-memory registry.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.workflow.Stop()
	d.reaper.Stop()
	d.admission.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("scribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the HTTP listener address once started.
func (d *Daemon) Addr() string {
	return d.api.address()
}

// SetDependencies records the external dependency snapshot reported by Health.
func (d *Daemon) SetDependencies(statuses []deps.Status) {
	d.depsMu.Lock()
	d.dependencies = append([]deps.Status(nil), statuses...)
	d.depsMu.Unlock()
}

// Submit admits, validates, and registers an upload, then wakes a worker.
// Admission runs first so every attempt counts against the caller.
func (d *Daemon) Submit(ctx context.Context, req SubmitRequest) (jobs.Job, error) {
	identity := strings.TrimSpace(req.Identity)
	if err := d.admission.Check(identity, d.now()); err != nil {
		d.logger.Info("submission rejected",
			logging.String(logging.FieldEventType, "submission_rejected"),
			logging.String("identity", identity),
			logging.Error(err),
		)
		return jobs.Job{}, err
	}

	hint, err := language.Normalize(req.LanguageHint)
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrValidation, "submit", "language", fmt.Sprintf("unsupported language %q", req.LanguageHint), nil)
	}
	if len(req.Media) == 0 {
		return jobs.Job{}, services.Wrap(services.ErrValidation, "submit", "", "empty file", nil)
	}

	id, err := d.store.Create(ctx, jobs.NewJob{
		LanguageHint:     hint,
		OriginalFilename: strings.TrimSpace(req.Filename),
		Media:            req.Media,
	})
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrInternal, "submit", "create job", "", err)
	}
	job, err := d.store.Get(ctx, id)
	if err != nil {
		return jobs.Job{}, services.Wrap(services.ErrInternal, "submit", "load job", "", err)
	}
	d.workflow.Notify()

	d.logger.Info("job submitted",
		logging.String(logging.FieldEventType, "job_submitted"),
		logging.Int64(logging.FieldJobID, id),
		logging.String("identity", identity),
		logging.String("language_hint", hint),
		logging.String("original_filename", job.OriginalFilename),
		logging.Int64("size_bytes", job.SizeBytes),
	)
	return job, nil
}

// Status returns a copy of the job record or jobs.ErrNotFound.
func (d *Daemon) Status(ctx context.Context, id int64) (jobs.Job, error) {
	return d.store.Get(ctx, id)
}

// List returns job records filtered by optional statuses.
func (d *Daemon) List(ctx context.Context, statuses []jobs.Status) ([]jobs.Job, error) {
	return d.store.List(ctx, statuses...)
}

// Health reports registry counts, workflow state, and dependency availability.
func (d *Daemon) Health(ctx context.Context) (Health, error) {
	stats, err := d.store.Stats(ctx)
	if err != nil {
		return Health{}, err
	}
	active, err := d.store.CountActive(ctx)
	if err != nil {
		return Health{}, err
	}
	total := 0
	for _, count := range stats {
		total += count
	}

	d.depsMu.RLock()
	dependencies := append([]deps.Status(nil), d.dependencies...)
	d.depsMu.RUnlock()

	return Health{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Active:       active,
		Total:        total,
		Counts:       stats,
		Workflow:     d.workflow.Status(),
		Dependencies: dependencies,
		LockFilePath: d.lockPath,
	}, nil
}
