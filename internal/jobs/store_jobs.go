package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Create inserts a pending job holding the upload payload and returns its id.
func (s *Store) Create(ctx context.Context, job NewJob) (int64, error) {
	ctx = ensureContext(ctx)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO jobs (status, language_hint, original_filename, size_bytes, media, created_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		StatusPending,
		strings.TrimSpace(job.LanguageHint),
		strings.TrimSpace(job.OriginalFilename),
		int64(len(job.Media)),
		job.Media,
		s.timestamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Get returns a copy of the job or ErrNotFound.
func (s *Store) Get(ctx context.Context, id int64) (Job, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Job{}, fmt.Errorf("get job %d: %w", id, err)
	}
	return job, nil
}

// Update applies a mutation atomically. It reports applied=false with a nil
// error when the job no longer exists, which is how results for jobs reaped
// mid-flight are discarded. Forbidden transitions return ErrInvalidTransition
// and leave the record untouched. Re-applying processing is a no-op.
func (s *Store) Update(ctx context.Context, id int64, m Mutation) (bool, error) {
	ctx = ensureContext(ctx)
	if _, ok := statusSet[m.Status]; !ok {
		return false, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, m.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read job %d: %w", id, err)
	}
	from := Status(current)
	if !CanTransition(from, m.Status) {
		return false, transitionError(id, from, m.Status)
	}
	if from == m.Status {
		return true, nil
	}

	switch m.Status {
	case StatusProcessing:
		_, err = tx.ExecContext(ctx, `UPDATE jobs SET status = ?, media = NULL WHERE id = ?`, m.Status, id)
	case StatusCompleted:
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, media = NULL, text = ?, detected_language = ?,
                 audio_duration_seconds = ?, error_message = '', completed_at = ?
             WHERE id = ?`,
			m.Status, m.Text, m.DetectedLanguage, m.AudioDurationSeconds, s.timestamp(), id)
	case StatusFailed:
		message := strings.TrimSpace(m.ErrorMessage)
		if message == "" {
			message = "internal: failed without error detail"
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE jobs SET status = ?, media = NULL, text = '', detected_language = '',
                 audio_duration_seconds = 0, error_message = ?, completed_at = ?
             WHERE id = ?`,
			m.Status, message, s.timestamp(), id)
	}
	if err != nil {
		return false, fmt.Errorf("update job %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit job %d: %w", id, err)
	}
	return true, nil
}

// Claim moves the oldest pending job to processing and returns it with its
// upload payload. The payload is removed from the registry in the same
// transaction, so each upload is handed to exactly one caller. ok is false
// when nothing is pending.
func (s *Store) Claim(ctx context.Context) (Job, []byte, bool, error) {
	ctx = ensureContext(ctx)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Job{}, nil, false, fmt.Errorf("begin claim tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var media []byte
	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+`, media FROM jobs WHERE status = ? ORDER BY id LIMIT 1`,
		StatusPending)
	var (
		job         Job
		statusStr   string
		createdRaw  sql.NullInt64
		completedAt sql.NullInt64
	)
	err = row.Scan(
		&job.ID, &statusStr, &job.LanguageHint, &job.OriginalFilename, &job.SizeBytes,
		&job.Text, &job.DetectedLanguage, &job.AudioDurationSeconds, &job.ErrorMessage,
		&createdRaw, &completedAt, &media,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Job{}, nil, false, nil
	}
	if err != nil {
		return Job{}, nil, false, fmt.Errorf("select pending job: %w", err)
	}
	job.CreatedAt = fromUnixNano(createdRaw)
	job.CompletedAt = fromUnixNano(completedAt)

	if _, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ?, media = NULL WHERE id = ? AND status = ?`,
		StatusProcessing, job.ID, StatusPending); err != nil {
		return Job{}, nil, false, fmt.Errorf("claim job %d: %w", job.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return Job{}, nil, false, fmt.Errorf("commit claim %d: %w", job.ID, err)
	}
	job.Status = StatusProcessing
	return job, media, true, nil
}

// List returns jobs ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]Job, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + jobColumns + ` FROM jobs`
	var args []any
	if len(statuses) > 0 {
		marks, statusArgs := statusPlaceholders(statuses)
		query += ` WHERE status IN (` + marks + `)`
		args = statusArgs
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
