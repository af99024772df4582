package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Unset", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}
	if !results[0].Available || results[0].Detail != "" {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[1].Available || results[1].Detail == "" {
		t.Fatalf("expected missing binary to be unavailable with detail, got %#v", results[1])
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}
	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for unset command: %q", results[2].Detail)
	}
}

func TestRequirementsAndMissing(t *testing.T) {
	reqs := Requirements(Binaries{FFmpeg: "ffmpeg", FFprobe: "ffprobe", UVX: "uvx"})
	if len(reqs) != 3 || reqs[0].Name != "FFprobe" || reqs[2].Command != "uvx" {
		t.Fatalf("unexpected requirements %+v", reqs)
	}
	missing := Missing([]Status{
		{Requirement: Requirement{Name: "a"}, Available: true},
		{Requirement: Requirement{Name: "b"}},
		{Requirement: Requirement{Name: "c", Optional: true}},
	})
	if len(missing) != 1 || missing[0].Name != "b" {
		t.Fatalf("unexpected missing set %+v", missing)
	}
}
