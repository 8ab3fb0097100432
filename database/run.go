package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type RunRow struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"duration"`
	State         string        `json:"state"`
	Rows          int           `json:"rows"`
	Written       int           `json:"written"`
	Skipped       int           `json:"skipped"`
	Fallbacks     int           `json:"fallbacks"`
	ErrorCategory string        `json:"errorCategory,omitempty"`
	Error         string        `json:"error,omitempty"`
}

func (d *Database) SaveRun(ctx context.Context, r RunRow) error {
	_, err := d.write.ExecContext(ctx, `
		INSERT INTO run (id, started_at, duration_ms, state, row_count, written, skipped, fallbacks, error_category, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UnixMilli(),
		r.Duration.Milliseconds(),
		r.State,
		r.Rows,
		r.Written,
		r.Skipped,
		r.Fallbacks,
		nullString(r.ErrorCategory),
		nullString(r.Error))
	if err != nil {
		return fmt.Errorf("saving run %s: %w", r.ID, err)
	}
	return nil
}

// GetRuns returns the latest runs, newest first.
func (d *Database) GetRuns(ctx context.Context, limit int) ([]RunRow, error) {
	if limit < 1 {
		limit = 10
	}

	rows, err := d.read.QueryContext(ctx, `
		SELECT id, started_at, duration_ms, state, row_count, written, skipped, fallbacks, error_category, error
		FROM run
		ORDER BY started_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("fetching runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var (
			r          RunRow
			startedAt  int64
			durationMs int64
			category   sql.NullString
			msg        sql.NullString
		)
		err := rows.Scan(&r.ID, &startedAt, &durationMs, &r.State, &r.Rows, &r.Written, &r.Skipped, &r.Fallbacks, &category, &msg)
		if err != nil {
			return nil, fmt.Errorf("scanning run row: %w", err)
		}
		r.StartedAt = time.UnixMilli(startedAt).UTC()
		r.Duration = time.Duration(durationMs) * time.Millisecond
		r.ErrorCategory = category.String
		r.Error = msg.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading run rows: %w", err)
	}

	return runs, nil
}

func (d *Database) PurgeRuns(ctx context.Context, retentionDays int) error {
	return d.purgeBefore(ctx, "run", "started_at", retentionDays)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
