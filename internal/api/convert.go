package api

import (
	"time"

	"scribe/internal/deps"
	"scribe/internal/jobs"
	"scribe/internal/workflow"
)

// FromJob converts a job record to its API representation.
func FromJob(job jobs.Job) Job {
	dto := Job{
		ID:               job.ID,
		Status:           string(job.Status),
		LanguageHint:     job.LanguageHint,
		OriginalFilename: job.OriginalFilename,
		SizeBytes:        job.SizeBytes,
		CreatedAt:        FormatTime(job.CreatedAt),
		CompletedAt:      FormatTime(job.CompletedAt),
	}
	switch job.Status {
	case jobs.StatusCompleted:
		text, lang, duration := job.Text, job.DetectedLanguage, job.AudioDurationSeconds
		dto.Text = &text
		if lang != "" {
			dto.DetectedLanguage = &lang
		}
		dto.AudioDurationSeconds = &duration
	case jobs.StatusFailed:
		msg := job.ErrorMessage
		dto.ErrorMessage = &msg
	}
	return dto
}

// FromJobs converts a slice of job records into API DTOs.
func FromJobs(records []jobs.Job) []Job {
	out := make([]Job, 0, len(records))
	for _, job := range records {
		out = append(out, FromJob(job))
	}
	return out
}

// FromSubmitted builds the acknowledgement for a newly created job.
func FromSubmitted(job jobs.Job) SubmitResponse {
	return SubmitResponse{
		ID:        job.ID,
		Status:    string(job.Status),
		Message:   "Transcription started. Use the ID to check status.",
		CreatedAt: FormatTime(job.CreatedAt),
	}
}

// FromStatusSummary converts a workflow status summary to API payload.
func FromStatusSummary(summary workflow.StatusSummary) WorkflowStatus {
	return WorkflowStatus{
		Running:   summary.Running,
		Workers:   summary.Workers,
		Busy:      summary.Busy,
		Completed: summary.Completed,
		Failed:    summary.Failed,
		LastJobID: summary.LastJobID,
		LastError: summary.LastError,
	}
}

// MergeStats produces a string-keyed representation of per-status counts
// with every status present.
func MergeStats(stats map[jobs.Status]int) map[string]int {
	out := make(map[string]int, len(jobs.AllStatuses()))
	for _, status := range jobs.AllStatuses() {
		out[string(status)] = stats[status]
	}
	return out
}

// FromDependencies converts dependency checks to API payloads.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	if len(statuses) == 0 {
		return nil
	}
	out := make([]DependencyStatus, len(statuses))
	for i, dep := range statuses {
		out[i] = DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		}
	}
	return out
}

// FormatTime renders t for API payloads; the zero time renders empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
