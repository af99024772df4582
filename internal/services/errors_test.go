package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"scribe/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExtraction, "extract", "ffmpeg", "decode failed", base)
	if !errors.Is(err, services.ErrExtraction) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"extract", "ffmpeg", "decode failed", "boom"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

type kindError struct{ kind string }

func (e kindError) Error() string     { return "classified" }
func (e kindError) ErrorKind() string { return e.kind }

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"extraction", services.Wrap(services.ErrExtraction, "extract", "", "bad", nil), services.KindExtraction},
		{"inference", services.Wrap(services.ErrInference, "transcribe", "", "bad", nil), services.KindInference},
		{"rejected", fmt.Errorf("submit: %w", services.ErrRejected), services.KindRejected},
		{"not found", services.ErrNotFound, services.KindNotFound},
		{"deadline wins", services.Wrap(services.ErrExtraction, "extract", "", "killed", context.DeadlineExceeded), services.KindTimeout},
		{"classifier", kindError{kind: "inference"}, services.KindInference},
		{"unknown classifier", kindError{kind: "weird"}, services.KindInternal},
		{"plain", errors.New("boom"), services.KindInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := services.Classify(tc.err); got != tc.want {
				t.Fatalf("Classify() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestFailureMessageStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrExtraction, "extract", "ffprobe", "no audio stream in upload", nil)
	got := services.FailureMessage(err)
	want := "extraction: extract: ffprobe: no audio stream in upload"
	if got != want {
		t.Fatalf("FailureMessage() = %q, want %q", got, want)
	}
	if msg := services.FailureMessage(nil); !strings.HasPrefix(msg, "internal:") {
		t.Fatalf("expected internal prefix for nil error, got %q", msg)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := services.WithJobID(context.Background(), 42)
	ctx = services.WithStage(ctx, "extract")
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.JobIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected job id %d (ok=%v)", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "extract" {
		t.Fatalf("unexpected stage %q", stage)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("unexpected request id %q", rid)
	}
	if _, ok := services.StageFromContext(services.WithStage(context.Background(), "")); ok {
		t.Fatal("expected empty stage to be ignored")
	}
}
