package extract_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"scribe/internal/media/extract"
	"scribe/internal/services"
	"scribe/internal/testsupport"
)

const probeWithAudio = `{"streams":[{"index":0,"codec_type":"video"},{"index":1,"codec_type":"audio","codec_name":"aac"}],"format":{"duration":"2.0"}}`

type scriptedRunner struct {
	t       *testing.T
	probe   func() ([]byte, error)
	decode  func(target string) error
	decoded bool
}

func (r *scriptedRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	switch name {
	case "ffprobe":
		return r.probe()
	case "ffmpeg":
		r.decoded = true
		return nil, r.decode(args[len(args)-1])
	default:
		r.t.Fatalf("unexpected command %q", name)
		return nil, nil
	}
}

func newExtractor(t *testing.T, runner *scriptedRunner) (*extract.Extractor, string) {
	t.Helper()
	workDir := t.TempDir()
	ex := extract.New(extract.Config{WorkDir: workDir}, nil)
	ex.WithRunner(runner.run)
	return ex, workDir
}

func assertClean(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read work dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected workspace removed, found %d entries", len(entries))
	}
}

func TestExtractProducesWAV(t *testing.T) {
	runner := &scriptedRunner{
		t:     t,
		probe: func() ([]byte, error) { return []byte(probeWithAudio), nil },
		decode: func(target string) error {
			return os.WriteFile(target, testsupport.WAV(t, 2), 0o644)
		},
	}
	ex, workDir := newExtractor(t, runner)

	audio, err := ex.Extract(context.Background(), []byte("container bytes"))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if string(audio[:4]) != "RIFF" {
		t.Fatalf("expected wav output")
	}
	assertClean(t, workDir)
}

func TestExtractFailures(t *testing.T) {
	cases := []struct {
		name       string
		media      []byte
		probe      func() ([]byte, error)
		decode     func(string) error
		want       string
		wantDecode bool
	}{
		{
			name:  "empty media",
			media: nil,
			want:  "empty media",
		},
		{
			name:  "probe fails",
			media: []byte("garbage"),
			probe: func() ([]byte, error) { return nil, errors.New("Invalid data found when processing input") },
			want:  "unreadable media",
		},
		{
			name:  "no audio stream",
			media: []byte("video only"),
			probe: func() ([]byte, error) { return []byte(`{"streams":[{"codec_type":"video"}]}`), nil },
			want:  "no audio stream",
		},
		{
			name:       "decode fails",
			media:      []byte("broken audio"),
			probe:      func() ([]byte, error) { return []byte(probeWithAudio), nil },
			decode:     func(string) error { return errors.New("decoder error") },
			want:       "audio decode failed",
			wantDecode: true,
		},
		{
			name:       "decode writes junk",
			media:      []byte("odd audio"),
			probe:      func() ([]byte, error) { return []byte(probeWithAudio), nil },
			decode:     func(target string) error { return os.WriteFile(target, []byte("junk"), 0o644) },
			want:       "malformed wav",
			wantDecode: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &scriptedRunner{t: t, probe: tc.probe, decode: tc.decode}
			ex, workDir := newExtractor(t, runner)

			_, err := ex.Extract(context.Background(), tc.media)
			if !errors.Is(err, services.ErrExtraction) {
				t.Fatalf("expected ErrExtraction, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q in %q", tc.want, err.Error())
			}
			if runner.decoded != tc.wantDecode {
				t.Fatalf("decode called=%v, want %v", runner.decoded, tc.wantDecode)
			}
			assertClean(t, workDir)
		})
	}
}

func TestExtractDeadlineClassifiesAsTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
	defer cancel()
	runner := &scriptedRunner{
		t: t,
		probe: func() ([]byte, error) {
			<-ctx.Done()
			return nil, errors.New("signal: killed")
		},
	}
	ex, _ := newExtractor(t, runner)

	_, err := ex.Extract(ctx, []byte("slow"))
	if services.Classify(err) != services.KindTimeout {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}
