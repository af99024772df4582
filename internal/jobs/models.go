package jobs

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a transcription job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is a copy of one registry record. Result fields are populated only for
// completed jobs and ErrorMessage only for failed ones.
type Job struct {
	ID                   int64
	Status               Status
	LanguageHint         string
	OriginalFilename     string
	SizeBytes            int64
	Text                 string
	DetectedLanguage     string
	AudioDurationSeconds float64
	ErrorMessage         string
	CreatedAt            time.Time
	CompletedAt          time.Time
}

// NewJob describes an accepted upload.
type NewJob struct {
	LanguageHint     string
	OriginalFilename string
	Media            []byte
}

// Mutation is the requested change applied by Store.Update. Status selects
// the target state; result and error fields are only honoured for the
// matching terminal state.
type Mutation struct {
	Status               Status
	Text                 string
	DetectedLanguage     string
	AudioDurationSeconds float64
	ErrorMessage         string
}

// Processing marks a job as picked up by a worker.
func Processing() Mutation {
	return Mutation{Status: StatusProcessing}
}

// Completed records a successful transcription.
func Completed(text, detectedLanguage string, durationSeconds float64) Mutation {
	return Mutation{
		Status:               StatusCompleted,
		Text:                 text,
		DetectedLanguage:     detectedLanguage,
		AudioDurationSeconds: durationSeconds,
	}
}

// Failed records a classified failure message.
func Failed(message string) Mutation {
	return Mutation{Status: StatusFailed, ErrorMessage: message}
}

// HealthSummary describes aggregated registry counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Active returns the number of jobs not yet terminal.
func (h HealthSummary) Active() int {
	return h.Pending + h.Processing
}
