package testsupport

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scribe/internal/services/whisperx"
)

// Extractor is a scripted audio extractor.
type Extractor struct {
	Fn    func(ctx context.Context, media []byte) ([]byte, error)
	calls atomic.Int64
}

// Extract records the call and delegates to Fn. A nil Fn echoes the media.
func (e *Extractor) Extract(ctx context.Context, media []byte) ([]byte, error) {
	e.calls.Add(1)
	if e.Fn == nil {
		return media, nil
	}
	return e.Fn(ctx, media)
}

// Calls returns how many times Extract ran.
func (e *Extractor) Calls() int64 { return e.calls.Load() }

// Transcriber is a scripted speech engine that tracks how many calls overlap.
type Transcriber struct {
	Fn func(ctx context.Context, audio []byte, hint string) (whisperx.Transcript, error)

	calls     atomic.Int64
	mu        sync.Mutex
	active    int
	maxActive int
	hints     []string
}

// Transcribe records the call and delegates to Fn.
func (tr *Transcriber) Transcribe(ctx context.Context, audio []byte, hint string) (whisperx.Transcript, error) {
	tr.calls.Add(1)
	tr.mu.Lock()
	tr.active++
	if tr.active > tr.maxActive {
		tr.maxActive = tr.active
	}
	tr.hints = append(tr.hints, hint)
	tr.mu.Unlock()
	defer func() {
		tr.mu.Lock()
		tr.active--
		tr.mu.Unlock()
	}()

	if tr.Fn == nil {
		return whisperx.Transcript{Text: "hello world", Language: "en", DurationSeconds: 1}, nil
	}
	return tr.Fn(ctx, audio, hint)
}

// Calls returns how many times Transcribe ran.
func (tr *Transcriber) Calls() int64 { return tr.calls.Load() }

// MaxConcurrent returns the highest number of overlapping Transcribe calls.
func (tr *Transcriber) MaxConcurrent() int {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.maxActive
}

// Hints returns the language hints received, in call order.
func (tr *Transcriber) Hints() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.hints...)
}

// WaitFor polls cond until it returns true or the timeout elapses.
func WaitFor(t testing.TB, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("condition not met within %s", timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
