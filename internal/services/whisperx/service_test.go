package whisperx_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/services"
	"scribe/internal/services/whisperx"
	"scribe/internal/testsupport"
)

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func writeOutput(t *testing.T, args []string, body string) {
	t.Helper()
	dir := argValue(args, "--output_dir")
	if dir == "" {
		t.Fatalf("missing --output_dir in %v", args)
	}
	if err := os.WriteFile(filepath.Join(dir, "audio.json"), []byte(body), 0o644); err != nil {
		t.Fatalf("write whisperx output: %v", err)
	}
}

func TestTranscribeParsesOutput(t *testing.T) {
	workDir := t.TempDir()
	svc := whisperx.NewService(whisperx.Config{WorkDir: workDir})
	var captured []string
	svc.WithCommandRunner(func(_ context.Context, name string, args ...string) error {
		if name != whisperx.UVXCommand {
			t.Fatalf("unexpected command %q", name)
		}
		captured = args
		writeOutput(t, args, `{"language":"en","segments":[{"text":" Hello ","start":0,"end":1.2},{"text":"world.","start":1.2,"end":2.0}]}`)
		return nil
	})

	transcript, err := svc.Transcribe(context.Background(), testsupport.WAV(t, 2), "english")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Text != "Hello world." {
		t.Fatalf("unexpected text %q", transcript.Text)
	}
	if transcript.Language != "en" {
		t.Fatalf("unexpected language %q", transcript.Language)
	}
	if transcript.DurationSeconds != 2 {
		t.Fatalf("expected duration from wav header, got %v", transcript.DurationSeconds)
	}
	if argValue(captured, "--language") != "en" || argValue(captured, "--model") != "base" {
		t.Fatalf("unexpected args: %v", captured)
	}
	if argValue(captured, "--device") != "cpu" || argValue(captured, "--compute_type") != "float32" {
		t.Fatalf("expected cpu device args: %v", captured)
	}

	entries, err := os.ReadDir(workDir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspace cleanup, found %d entries", len(entries))
	}
}

func TestTranscribeAutoDetectOmitsLanguage(t *testing.T) {
	svc := whisperx.NewService(whisperx.Config{WorkDir: t.TempDir(), CUDAEnabled: true})
	svc.WithCommandRunner(func(_ context.Context, _ string, args ...string) error {
		if argValue(args, "--language") != "" {
			t.Fatalf("expected no language flag for auto-detect: %v", args)
		}
		if argValue(args, "--device") != "cuda" {
			t.Fatalf("expected cuda device: %v", args)
		}
		writeOutput(t, args, `{"language":"fr","segments":[{"text":"Bonjour","start":0,"end":0.8}]}`)
		return nil
	})
	transcript, err := svc.Transcribe(context.Background(), testsupport.WAV(t, 1), "")
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if transcript.Language != "fr" {
		t.Fatalf("expected detected language fr, got %q", transcript.Language)
	}
}

func TestTranscribeFailuresAreInference(t *testing.T) {
	cases := []struct {
		name   string
		runner func(context.Context, string, ...string) error
		want   string
	}{
		{
			name:   "command failure",
			runner: func(context.Context, string, ...string) error { return errors.New("CUDA out of memory") },
			want:   "resource exhaustion",
		},
		{
			name: "silence",
			runner: func(_ context.Context, _ string, args ...string) error {
				writeOutput(t, args, `{"language":"en","segments":[]}`)
				return nil
			},
			want: "no speech detected",
		},
		{
			name:   "missing output",
			runner: func(context.Context, string, ...string) error { return nil },
			want:   "parse output",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := whisperx.NewService(whisperx.Config{WorkDir: t.TempDir()})
			svc.WithCommandRunner(tc.runner)
			_, err := svc.Transcribe(context.Background(), testsupport.WAV(t, 1), "en")
			if !errors.Is(err, services.ErrInference) {
				t.Fatalf("expected ErrInference, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
		})
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	svc := whisperx.NewService(whisperx.Config{WorkDir: t.TempDir()})
	if _, err := svc.Transcribe(context.Background(), nil, ""); services.Classify(err) != services.KindInference {
		t.Fatalf("expected inference classification, got %v", err)
	}
}
