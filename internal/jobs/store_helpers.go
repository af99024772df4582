package jobs

import (
	"database/sql"
	"strings"
)

const jobColumns = "id, status, language_hint, original_filename, size_bytes, text, detected_language, audio_duration_seconds, error_message, created_at, completed_at"

func scanJob(scanner interface{ Scan(dest ...any) error }) (Job, error) {
	var (
		job         Job
		statusStr   string
		createdRaw  sql.NullInt64
		completedAt sql.NullInt64
	)
	if err := scanner.Scan(
		&job.ID,
		&statusStr,
		&job.LanguageHint,
		&job.OriginalFilename,
		&job.SizeBytes,
		&job.Text,
		&job.DetectedLanguage,
		&job.AudioDurationSeconds,
		&job.ErrorMessage,
		&createdRaw,
		&completedAt,
	); err != nil {
		return Job{}, err
	}
	job.Status = Status(statusStr)
	job.CreatedAt = fromUnixNano(createdRaw)
	job.CompletedAt = fromUnixNano(completedAt)
	return job, nil
}

func statusPlaceholders(statuses []Status) (string, []any) {
	marks := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, status := range statuses {
		marks[i] = "?"
		args[i] = string(status)
	}
	return strings.Join(marks, ", "), args
}
