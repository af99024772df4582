package whisperx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	langpkg "scribe/internal/language"
	"scribe/internal/media/wav"
	"scribe/internal/services"
)

const stageName = "transcribe"

// Transcript is the result of one inference call.
type Transcript struct {
	Text            string
	Language        string
	DurationSeconds float64
	Segments        []Segment
}

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return &commandError{name: name, err: err, output: strings.TrimSpace(string(output))}
	}
	return nil
}

type commandError struct {
	name   string
	err    error
	output string
}

func (e *commandError) Error() string {
	if e.output == "" {
		return fmt.Sprintf("%s: %v", e.name, e.err)
	}
	return fmt.Sprintf("%s: %v: %s", e.name, e.err, lastLine(e.output))
}

func (e *commandError) Unwrap() error { return e.err }

func lastLine(output string) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

// Transcribe runs inference over WAV audio. An empty language hint lets
// WhisperX detect the language.
func (s *Service) Transcribe(ctx context.Context, audio []byte, language string) (Transcript, error) {
	if len(audio) == 0 {
		return Transcript{}, services.Wrap(services.ErrInference, stageName, "", "no audio supplied", nil)
	}

	workspace := filepath.Join(s.workDir(), "whisperx-"+uuid.NewString())
	if err := os.MkdirAll(workspace, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrInternal, stageName, "workspace", "", err)
	}
	defer os.RemoveAll(workspace)

	source := filepath.Join(workspace, "audio.wav")
	if err := os.WriteFile(source, audio, 0o644); err != nil {
		return Transcript{}, services.Wrap(services.ErrInternal, stageName, "write audio", "", err)
	}

	args := s.buildArgs(source, workspace, language)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		if ctx.Err() != nil {
			return Transcript{}, services.Wrap(services.ErrInference, stageName, "whisperx", "interrupted", errors.Join(ctx.Err(), err))
		}
		return Transcript{}, services.Wrap(services.ErrInference, stageName, "whisperx", describeFailure(err), err)
	}

	payload, err := loadPayload(filepath.Join(workspace, "audio.json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrInference, stageName, "parse output", "", err)
	}

	transcript := Transcript{
		Text:     joinSegments(payload.Segments),
		Language: langpkg.ToISO2(payload.Language),
		Segments: payload.Segments,
	}
	if transcript.Text == "" {
		return Transcript{}, services.Wrap(services.ErrInference, stageName, "", "no speech detected", nil)
	}
	if transcript.Language == "" {
		transcript.Language = langpkg.ToISO2(language)
	}
	if seconds, err := wav.Duration(audio); err == nil && seconds > 0 {
		transcript.DurationSeconds = seconds
	} else {
		transcript.DurationSeconds = lastSegmentEnd(payload.Segments)
	}
	return transcript, nil
}

func (s *Service) workDir() string {
	if s.cfg.WorkDir != "" {
		return s.cfg.WorkDir
	}
	return os.TempDir()
}

func describeFailure(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "cannot allocate memory"):
		return "resource exhaustion"
	case strings.Contains(msg, "executable file not found"):
		return "uvx not installed"
	default:
		return "inference failed"
	}
}

// buildArgs constructs the uvx command arguments for WhisperX.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 32)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.Model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--beam_size", BeamSize,
		"--temperature", Temperature,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)
	if vadMethod == VADMethodPyannote && s.cfg.HFToken != "" {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

// Word represents a single word with timing from WhisperX output.
type Word struct {
	Word  string  `json:"word"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Segment represents a transcribed segment from WhisperX JSON output.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Words []Word  `json:"words"`
}

type whisperXPayload struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language"`
}

func loadPayload(jsonPath string) (whisperXPayload, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return whisperXPayload{}, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return whisperXPayload{}, fmt.Errorf("parse whisperx json: %w", err)
	}
	return payload, nil
}

func joinSegments(segments []Segment) string {
	var parts []string
	for _, seg := range segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

func lastSegmentEnd(segments []Segment) float64 {
	var end float64
	for _, seg := range segments {
		if seg.End > end {
			end = seg.End
		}
	}
	return end
}
