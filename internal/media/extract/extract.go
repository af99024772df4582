// Package extract converts uploaded media into the mono 16 kHz PCM WAV audio
// the speech engine consumes.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"scribe/internal/logging"
	"scribe/internal/media/ffprobe"
	"scribe/internal/media/wav"
	"scribe/internal/services"
)

const (
	stageName  = "extract"
	sampleRate = "16000"
)

// Runner executes a command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Config selects binaries and the scratch root.
type Config struct {
	FFmpegBinary  string
	FFprobeBinary string
	WorkDir       string
}

// Extractor turns opaque media bytes into WAV audio.
type Extractor struct {
	cfg    Config
	run    Runner
	logger *slog.Logger
}

// New constructs an extractor backed by ffprobe and ffmpeg.
func New(cfg Config, logger *slog.Logger) *Extractor {
	if strings.TrimSpace(cfg.FFmpegBinary) == "" {
		cfg.FFmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(cfg.FFprobeBinary) == "" {
		cfg.FFprobeBinary = ffprobe.DefaultBinary
	}
	if strings.TrimSpace(cfg.WorkDir) == "" {
		cfg.WorkDir = os.TempDir()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{cfg: cfg, run: execRunner, logger: logger.With(logging.String(logging.FieldComponent, "extract"))}
}

// WithRunner swaps the command runner (for testing).
func (e *Extractor) WithRunner(run Runner) {
	if run != nil {
		e.run = run
	}
}

// Extract probes the media for an audio stream and decodes it to WAV. The
// scratch workspace is removed before returning on every path.
func (e *Extractor) Extract(ctx context.Context, media []byte) ([]byte, error) {
	if len(media) == 0 {
		return nil, services.Wrap(services.ErrExtraction, stageName, "", "empty media", nil)
	}

	workspace := filepath.Join(e.cfg.WorkDir, "extract-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "workspace", "", err)
	}
	defer func() {
		if err := os.RemoveAll(workspace); err != nil {
			e.logger.Warn("workspace cleanup failed",
				logging.String("path", workspace),
				logging.Error(err),
				logging.String(logging.FieldEventType, "workspace_cleanup_failed"),
			)
		}
	}()

	source := filepath.Join(workspace, "input")
	if err := os.WriteFile(source, media, 0o644); err != nil {
		return nil, services.Wrap(services.ErrInternal, stageName, "write media", "", err)
	}

	output, err := e.run(ctx, e.cfg.FFprobeBinary, ffprobe.Args(source)...)
	if err != nil {
		return nil, commandFailure(ctx, "probe", "unreadable media", err)
	}
	probe, err := ffprobe.Parse(output)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "probe", "unreadable media", err)
	}
	streams := probe.AudioStreams()
	if len(streams) == 0 {
		return nil, services.Wrap(services.ErrExtraction, stageName, "probe", "no audio stream", nil)
	}

	target := filepath.Join(workspace, "audio.wav")
	if _, err := e.run(ctx, e.cfg.FFmpegBinary, ffmpegArgs(source, target)...); err != nil {
		return nil, commandFailure(ctx, "decode", "audio decode failed", err)
	}
	audio, err := os.ReadFile(target)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "decode", "no audio produced", err)
	}
	format, err := wav.Parse(audio)
	if err != nil {
		return nil, services.Wrap(services.ErrExtraction, stageName, "decode", "", err)
	}

	e.logger.Debug("audio extracted",
		logging.Float64("duration_seconds", format.Duration()),
		logging.Float64("container_seconds", probe.DurationSeconds()),
		logging.Int("audio_streams", len(streams)),
		logging.String("audio_codec", streams[0].CodecName),
		logging.Int("input_bytes", len(media)),
		logging.Int("output_bytes", len(audio)),
	)
	return audio, nil
}

func ffmpegArgs(source, target string) []string {
	return []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", source,
		"-map", "0:a:0",
		"-vn", "-sn", "-dn",
		"-ac", "1",
		"-ar", sampleRate,
		"-c:a", "pcm_s16le",
		target,
	}
}

// commandFailure keeps the context error in the chain so a job ceiling hit
// mid-command classifies as a timeout.
func commandFailure(ctx context.Context, operation, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		err = errors.Join(ctxErr, err)
	}
	return services.Wrap(services.ErrExtraction, stageName, operation, message, err)
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, detail)
	}
	return output, nil
}
