package workflow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"scribe/internal/jobs"
	"scribe/internal/logging"
	"scribe/internal/services"
	"scribe/internal/services/whisperx"
	"scribe/internal/testsupport"
	"scribe/internal/workflow"
)

const waitTimeout = 5 * time.Second

type harness struct {
	store       *jobs.Store
	extractor   *testsupport.Extractor
	transcriber *testsupport.Transcriber
	manager     *workflow.Manager
}

func newHarness(t *testing.T, workers int, storeOpts []jobs.Option, opts ...workflow.ManagerOption) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(workers))
	h := &harness{
		store:       testsupport.MustOpenStore(t, storeOpts...),
		extractor:   &testsupport.Extractor{},
		transcriber: &testsupport.Transcriber{},
	}
	opts = append([]workflow.ManagerOption{workflow.WithPollInterval(20 * time.Millisecond)}, opts...)
	h.manager = workflow.NewManager(cfg, h.store, h.extractor, h.transcriber, logging.NewNop(), opts...)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	if err := h.manager.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(h.manager.Stop)
}

func (h *harness) submit(t *testing.T, hint string) int64 {
	t.Helper()
	id, err := h.store.Create(context.Background(), jobs.NewJob{
		LanguageHint:     hint,
		OriginalFilename: "clip.mp4",
		Media:            []byte("media bytes"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	h.manager.Notify()
	return id
}

func (h *harness) waitTerminal(t *testing.T, id int64) jobs.Job {
	t.Helper()
	var job jobs.Job
	testsupport.WaitFor(t, waitTimeout, func() bool {
		job = testsupport.MustGet(t, h.store, id)
		return job.Status.IsTerminal()
	})
	return job
}

func TestNewManagerCapsLanesAtInferenceInstances(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.Workers = 4
	cfg.Workflow.InferenceInstances = 2
	m := workflow.NewManager(cfg, testsupport.MustOpenStore(t), &testsupport.Extractor{}, &testsupport.Transcriber{}, logging.NewNop())
	if m.Workers() != 2 {
		t.Fatalf("expected 2 lanes, got %d", m.Workers())
	}
}

func TestManagerCompletesJob(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.transcriber.Fn = func(_ context.Context, audio []byte, hint string) (whisperx.Transcript, error) {
		return whisperx.Transcript{Text: "  The quick brown fox.  ", Language: "english", DurationSeconds: 3.5}, nil
	}
	pending := h.submit(t, "en")

	job := testsupport.MustGet(t, h.store, pending)
	if job.Status != jobs.StatusPending {
		t.Fatalf("expected pending before workers start, got %s", job.Status)
	}

	h.start(t)
	job = h.waitTerminal(t, pending)
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.Text != "The quick brown fox." {
		t.Fatalf("unexpected text %q", job.Text)
	}
	if job.DetectedLanguage != "en" {
		t.Fatalf("expected detected language en, got %q", job.DetectedLanguage)
	}
	if job.AudioDurationSeconds != 3.5 {
		t.Fatalf("unexpected duration %v", job.AudioDurationSeconds)
	}
	if job.CompletedAt.IsZero() || job.ErrorMessage != "" {
		t.Fatalf("unexpected terminal fields: %+v", job)
	}
	if hints := h.transcriber.Hints(); len(hints) != 1 || hints[0] != "en" {
		t.Fatalf("unexpected hints %v", hints)
	}
	if bytes, err := h.store.MediaBytes(context.Background()); err != nil || bytes != 0 {
		t.Fatalf("expected media released, got %d (%v)", bytes, err)
	}
	if status := h.manager.Status(); status.Completed != 1 || status.LastJobID != pending {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestManagerFallsBackToHintAndWAVDuration(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.extractor.Fn = func(context.Context, []byte) ([]byte, error) {
		return testsupport.WAV(t, 2), nil
	}
	h.transcriber.Fn = func(context.Context, []byte, string) (whisperx.Transcript, error) {
		return whisperx.Transcript{Text: "bonjour"}, nil
	}
	h.start(t)

	job := h.waitTerminal(t, h.submit(t, "French"))
	if job.Status != jobs.StatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", job.Status, job.ErrorMessage)
	}
	if job.DetectedLanguage != "fr" {
		t.Fatalf("expected hint fallback fr, got %q", job.DetectedLanguage)
	}
	if job.AudioDurationSeconds != 2 {
		t.Fatalf("expected wav duration 2, got %v", job.AudioDurationSeconds)
	}
}

func TestManagerBoundsInferenceConcurrency(t *testing.T) {
	h := newHarness(t, 2, nil)
	release := make(chan struct{})
	var releaseOnce sync.Once
	unblock := func() { releaseOnce.Do(func() { close(release) }) }
	t.Cleanup(unblock)
	h.transcriber.Fn = func(ctx context.Context, _ []byte, _ string) (whisperx.Transcript, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return whisperx.Transcript{}, ctx.Err()
		}
		return whisperx.Transcript{Text: "ok", Language: "en", DurationSeconds: 1}, nil
	}
	var ids []int64
	for range 6 {
		ids = append(ids, h.submit(t, ""))
	}
	h.start(t)

	testsupport.WaitFor(t, waitTimeout, func() bool { return h.transcriber.Calls() == 2 })
	health, err := h.store.Health(context.Background())
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Processing != 2 || health.Pending != 4 {
		t.Fatalf("expected 2 processing and 4 pending during the burst, got %+v", health)
	}
	unblock()

	for _, id := range ids {
		if job := h.waitTerminal(t, id); job.Status != jobs.StatusCompleted {
			t.Fatalf("job %d: expected completed, got %s", id, job.Status)
		}
	}
	if got := h.transcriber.MaxConcurrent(); got > 2 {
		t.Fatalf("expected at most 2 concurrent inference calls, got %d", got)
	}
	if got := h.transcriber.Calls(); got != 6 {
		t.Fatalf("expected 6 inference calls, got %d", got)
	}
}

func TestManagerExtractionFailureSkipsInference(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.extractor.Fn = func(context.Context, []byte) ([]byte, error) {
		return nil, services.Wrap(services.ErrExtraction, "extract", "probe", "no audio stream", nil)
	}
	h.start(t)

	job := h.waitTerminal(t, h.submit(t, ""))
	if job.Status != jobs.StatusFailed {
		t.Fatalf("expected failed, got %s", job.Status)
	}
	if job.ErrorMessage != "extraction: extract: probe: no audio stream" {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
	if job.Text != "" || job.CompletedAt.IsZero() {
		t.Fatalf("unexpected failed fields: %+v", job)
	}
	if h.transcriber.Calls() != 0 {
		t.Fatalf("expected no inference calls, got %d", h.transcriber.Calls())
	}
}

func TestManagerClassifiesUnmarkedErrorsByStage(t *testing.T) {
	cases := []struct {
		name      string
		extract   error
		infer     error
		wantKind  string
		wantCalls int64
	}{
		{name: "extract", extract: errors.New("ffmpeg exploded"), wantKind: "extraction: ", wantCalls: 0},
		{name: "inference", infer: errors.New("model crashed"), wantKind: "inference: ", wantCalls: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, 1, nil)
			if tc.extract != nil {
				h.extractor.Fn = func(context.Context, []byte) ([]byte, error) { return nil, tc.extract }
			}
			if tc.infer != nil {
				h.transcriber.Fn = func(context.Context, []byte, string) (whisperx.Transcript, error) {
					return whisperx.Transcript{}, tc.infer
				}
			}
			h.start(t)

			job := h.waitTerminal(t, h.submit(t, ""))
			if job.Status != jobs.StatusFailed || !strings.HasPrefix(job.ErrorMessage, tc.wantKind) {
				t.Fatalf("unexpected outcome %s %q", job.Status, job.ErrorMessage)
			}
			if h.transcriber.Calls() != tc.wantCalls {
				t.Fatalf("expected %d inference calls, got %d", tc.wantCalls, h.transcriber.Calls())
			}
		})
	}
}

func TestManagerEmptyAudioIsExtractionFailure(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.extractor.Fn = func(context.Context, []byte) ([]byte, error) { return nil, nil }
	h.start(t)

	job := h.waitTerminal(t, h.submit(t, ""))
	if !strings.HasPrefix(job.ErrorMessage, "extraction: ") {
		t.Fatalf("unexpected error message %q", job.ErrorMessage)
	}
}

func TestManagerJobTimeout(t *testing.T) {
	h := newHarness(t, 1, nil, workflow.WithJobTimeout(50*time.Millisecond))
	h.transcriber.Fn = func(ctx context.Context, _ []byte, _ string) (whisperx.Transcript, error) {
		<-ctx.Done()
		return whisperx.Transcript{}, ctx.Err()
	}
	h.start(t)

	job := h.waitTerminal(t, h.submit(t, ""))
	if job.Status != jobs.StatusFailed || !strings.HasPrefix(job.ErrorMessage, "timeout: ") {
		t.Fatalf("unexpected outcome %s %q", job.Status, job.ErrorMessage)
	}
}

func TestManagerRecoversFromPanic(t *testing.T) {
	h := newHarness(t, 1, nil)
	var once sync.Once
	h.transcriber.Fn = func(context.Context, []byte, string) (whisperx.Transcript, error) {
		var boom bool
		once.Do(func() { boom = true })
		if boom {
			panic("engine state corrupted")
		}
		return whisperx.Transcript{Text: "fine", Language: "en", DurationSeconds: 1}, nil
	}
	h.start(t)

	first := h.waitTerminal(t, h.submit(t, ""))
	if first.Status != jobs.StatusFailed || !strings.HasPrefix(first.ErrorMessage, "internal: ") {
		t.Fatalf("unexpected outcome %s %q", first.Status, first.ErrorMessage)
	}
	second := h.waitTerminal(t, h.submit(t, ""))
	if second.Status != jobs.StatusCompleted {
		t.Fatalf("expected lane to survive panic, got %s", second.Status)
	}
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestManagerDiscardsResultForReapedJob(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	h := newHarness(t, 1, []jobs.Option{jobs.WithClock(clock.Now)})
	h.transcriber.Fn = func(ctx context.Context, _ []byte, _ string) (whisperx.Transcript, error) {
		clock.Advance(time.Hour)
		if _, err := h.store.DeleteExpired(context.WithoutCancel(ctx), time.Minute); err != nil {
			t.Errorf("DeleteExpired: %v", err)
		}
		return whisperx.Transcript{Text: "late", Language: "en", DurationSeconds: 1}, nil
	}
	id := h.submit(t, "")
	h.start(t)

	testsupport.WaitFor(t, waitTimeout, func() bool {
		return h.transcriber.Calls() == 1 && h.manager.Status().Busy == 0
	})
	if _, err := h.store.Get(context.Background(), id); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected reaped job to stay gone, got %v", err)
	}
	if status := h.manager.Status(); status.Completed != 0 || status.Failed != 0 {
		t.Fatalf("expected discarded result, got %+v", status)
	}
}

func TestManagerStartStop(t *testing.T) {
	h := newHarness(t, 1, nil)
	h.start(t)
	if err := h.manager.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
	if !h.manager.Status().Running {
		t.Fatal("expected running status")
	}
	h.manager.Stop()
	h.manager.Stop()
	if h.manager.Status().Running {
		t.Fatal("expected stopped status")
	}
}

func TestManagerRequiresCollaborators(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	m := workflow.NewManager(cfg, testsupport.MustOpenStore(t), nil, &testsupport.Transcriber{}, logging.NewNop())
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("expected Start to fail without an extractor")
	}
}
