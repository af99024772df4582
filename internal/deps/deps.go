// Package deps reports availability of the external binaries scribe shells out to.
package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an external command and what scribe uses it for.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is a Requirement plus the outcome of resolving it on PATH.
type Status struct {
	Requirement
	Available bool
	Detail    string
}

// Binaries names the commands used by extraction and inference.
type Binaries struct {
	FFmpeg  string
	FFprobe string
	UVX     string
}

// Requirements lists what a transcription job needs, in pipeline order.
func Requirements(bin Binaries) []Requirement {
	return []Requirement{
		{Name: "FFprobe", Command: bin.FFprobe, Description: "Detects audio streams in uploads"},
		{Name: "FFmpeg", Command: bin.FFmpeg, Description: "Decodes uploads into 16 kHz mono PCM"},
		{Name: "uvx", Command: bin.UVX, Description: "Launches WhisperX inference"},
	}
}

var lookPath = exec.LookPath

// CheckBinaries resolves each requirement's command.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results[i] = Status{Requirement: req}
		switch {
		case req.Command == "":
			results[i].Detail = "command not configured"
		default:
			if _, err := lookPath(req.Command); err != nil {
				results[i].Detail = fmt.Sprintf("binary %q not found", req.Command)
			} else {
				results[i].Available = true
			}
		}
	}
	return results
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}
