// Package daemonrun wires the scribe daemon runtime: logging, registry,
// collaborators, and the HTTP server, held until a termination signal.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"scribe/internal/admission"
	"scribe/internal/config"
	"scribe/internal/daemon"
	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/media/extract"
	"scribe/internal/preflight"
	"scribe/internal/reaper"
	"scribe/internal/services/whisperx"
	"scribe/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Ready, when set, receives the listener address once the daemon serves.
	Ready func(addr string)
}

// Run starts the scribe daemon runtime loop.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("scribe-%s.log", runID))
	level := opts.LogLevel
	if strings.TrimSpace(level) == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update scribe.log link: %v\n", err)
	}

	logConfigSummary(logger, cfg)
	dependencies := preflight.CheckSystemDeps(signalCtx, cfg)
	logDependencySnapshot(logger, dependencies)
	for _, result := range preflight.Failed(preflight.RunAll(signalCtx, cfg)) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldErrorHint, "install the missing tool or fix the path before submitting jobs"),
			logging.String(logging.FieldImpact, "jobs will fail until the check passes"),
		)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "scribed.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := jobs.Open(signalCtx)
	if err != nil {
		logger.Error("open job registry", logging.Error(err))
		return err
	}

	extractor := extract.New(extract.Config{
		FFmpegBinary:  cfg.FFmpegBinary(),
		FFprobeBinary: cfg.FFprobeBinary(),
		WorkDir:       cfg.Paths.WorkDir,
	}, logger)
	transcriber := whisperx.NewService(whisperx.Config{
		Model:       cfg.WhisperX.Model,
		CUDAEnabled: cfg.WhisperX.CUDAEnabled,
		VADMethod:   cfg.WhisperX.VADMethod,
		HFToken:     cfg.WhisperX.HFToken,
		WorkDir:     cfg.Paths.WorkDir,
	})

	workflowManager := workflow.NewManager(cfg, store, extractor, transcriber, logger)
	controller := admission.NewController(cfg.Admission.Requests, cfg.AdmissionWindow(), logger)
	expiry := reaper.New(store, cfg.RetentionHorizon(), cfg.ReaperInterval(), logger)

	d, err := daemon.New(cfg, store, logger, workflowManager, controller, expiry)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()
	d.SetDependencies(dependencies)

	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check server.bind and that no other scribed is running"),
		)
		return err
	}
	if opts.Ready != nil {
		opts.Ready(d.Addr())
	}

	<-signalCtx.Done()
	logger.Info("scribe daemon shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "scribe.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logConfigSummary(logger *slog.Logger, cfg *config.Config) {
	workers := cfg.Workflow.Workers
	if workers > cfg.Workflow.InferenceInstances {
		workers = cfg.Workflow.InferenceInstances
	}
	logger.Info("configuration summary",
		logging.String(logging.FieldEventType, "config_summary"),
		logging.String("bind", cfg.Server.Bind),
		logging.Bool("auth_enabled", strings.TrimSpace(cfg.Server.Token) != ""),
		logging.Int("max_upload_mb", cfg.Server.MaxUploadMB),
		logging.Int("admission_requests", cfg.Admission.Requests),
		logging.Duration("admission_window", cfg.AdmissionWindow()),
		logging.Int("workers", workers),
		logging.Duration("job_timeout", cfg.JobTimeout()),
		logging.Duration("retention_horizon", cfg.RetentionHorizon()),
		logging.Duration("reaper_interval", cfg.ReaperInterval()),
		logging.String("whisperx_model", cfg.WhisperX.Model),
		logging.Bool("whisperx_cuda", cfg.WhisperX.CUDAEnabled),
		logging.String("whisperx_vad_method", cfg.WhisperX.VADMethod),
		logging.String("work_dir", cfg.Paths.WorkDir),
	)
}

func logDependencySnapshot(logger *slog.Logger, statuses []deps.Status) {
	attrs := []logging.Attr{logging.String(logging.FieldEventType, "dependency_snapshot")}
	for _, status := range statuses {
		key := strings.ToLower(status.Name)
		attrs = append(attrs,
			logging.Bool(key+"_available", status.Available),
			logging.String(key+"_binary", status.Command),
		)
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
