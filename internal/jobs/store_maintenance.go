package jobs

import (
	"context"
	"fmt"
	"time"
)

// DeleteExpired removes every job, whatever its status, created more than
// horizon ago. Pending payloads go with their records.
func (s *Store) DeleteExpired(ctx context.Context, horizon time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	cutoff := s.now().UTC().Add(-horizon).UnixNano()
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired jobs: %w", err)
	}
	return res.RowsAffected()
}

// CountActive returns the number of pending and processing jobs.
func (s *Store) CountActive(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)
	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM jobs WHERE status IN (?, ?)`,
		StatusPending, StatusProcessing,
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return count, nil
}

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates registry state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	return health, nil
}

// MediaBytes returns the total size of upload payloads still held by the
// registry. Only pending jobs hold payloads.
func (s *Store) MediaBytes(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var total int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(LENGTH(media)), 0) FROM jobs WHERE media IS NOT NULL`,
	).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum media bytes: %w", err)
	}
	return total, nil
}
