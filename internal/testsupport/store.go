package testsupport

import (
	"context"
	"testing"

	"scribe/internal/jobs"
)

// MustOpenStore opens a jobs.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, opts ...jobs.Option) *jobs.Store {
	t.Helper()

	store, err := jobs.Open(context.Background(), opts...)
	if err != nil {
		t.Fatalf("jobs.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewJob creates a pending job for tests using the provided store.
func NewJob(t testing.TB, store *jobs.Store, filename string, media []byte) int64 {
	t.Helper()

	id, err := store.Create(context.Background(), jobs.NewJob{OriginalFilename: filename, Media: media})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	return id
}

// MustGet fetches a job or fails the test.
func MustGet(t testing.TB, store *jobs.Store, id int64) jobs.Job {
	t.Helper()

	job, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("store.Get(%d): %v", id, err)
	}
	return job
}
