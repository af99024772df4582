package preflight

import (
	"context"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"scribe/internal/config"
	"scribe/internal/deps"
	"scribe/internal/services/whisperx"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckVAD verifies the voice activity detection settings are usable.
func CheckVAD(cfg config.WhisperX) Result {
	const name = "Voice activity detection"
	method := strings.ToLower(strings.TrimSpace(cfg.VADMethod))
	if method == whisperx.VADMethodPyannote && strings.TrimSpace(cfg.HFToken) == "" {
		return Result{Name: name, Detail: "pyannote requires whisperx.hf_token"}
	}
	if method == "" {
		method = whisperx.VADMethodSilero
	}
	return Result{Name: name, Passed: true, Detail: method}
}

// CheckSystemDeps evaluates all system-level dependencies for the given config.
// Both the daemon and the CLI health command use this to avoid duplicating
// the requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(deps.Binaries{
		FFmpeg:  cfg.FFmpegBinary(),
		FFprobe: cfg.FFprobeBinary(),
		UVX:     whisperx.UVXCommand,
	}))
}
