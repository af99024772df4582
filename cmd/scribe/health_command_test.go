package main

import (
	"strings"
	"testing"

	"scribe/internal/api"
)

func TestHealthCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"health"}, env.configPath)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[OK] healthy")
	requireContains(t, out, "No dependency snapshot recorded")
}

func TestRenderHealthReportsMissingDependencies(t *testing.T) {
	out := renderHealth(api.Health{
		Status: "degraded",
		Counts: map[string]int{"pending": 2},
		Total:  2,
		Dependencies: []api.DependencyStatus{
			{Name: "FFmpeg", Command: "ffmpeg", Available: true},
			{Name: "uvx", Command: "uvx", Available: false, Detail: "binary \"uvx\" not found"},
		},
	}, "http://127.0.0.1:7487", false)

	requireContains(t, out, "[WARN] degraded")
	requireContains(t, out, "[OK] ffmpeg")
	requireContains(t, out, "[ERROR] binary \"uvx\" not found")
	if strings.Contains(out, "\x1b[") {
		t.Fatal("expected no colour codes when colorize is false")
	}
}
