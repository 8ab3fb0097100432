package database

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/icodeforyou/rdn-scraper/convert"
	"github.com/icodeforyou/rdn-scraper/types"
)

// Write stores the batch in a single transaction. Points with the same
// measurement, tags and time replace the stored fields.
func (d *Database) Write(ctx context.Context, batch types.Batch) error {
	d.logger.Debug("writing batch", "name", batch.Name, "points", batch.Len())

	tx, err := d.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch %q: %w", batch.Name, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO point (measurement, tags, ts, fields, written_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(measurement, tags, ts) DO UPDATE SET
			fields = excluded.fields,
			written_at = excluded.written_at`)
	if err != nil {
		return fmt.Errorf("prepare batch %q: %w", batch.Name, err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, p := range batch.Points {
		tags, err := encodeTags(p.Tags)
		if err != nil {
			return fmt.Errorf("encoding tags of %s: %w", p.Measurement, err)
		}
		fields, err := encodeFields(p.Fields)
		if err != nil {
			return fmt.Errorf("encoding fields of %s: %w", p.Measurement, err)
		}
		if _, err := stmt.ExecContext(ctx, p.Measurement, tags, p.Time.UnixMilli(), fields, now); err != nil {
			return fmt.Errorf("saving point %s at %s: %w", p.Measurement, p.Time.UTC().Format(time.RFC3339), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch %q: %w", batch.Name, err)
	}
	return nil
}

// GetPoints returns the points of measurement at or after from, oldest first.
func (d *Database) GetPoints(ctx context.Context, measurement string, from time.Time) ([]types.Point, error) {
	rows, err := d.read.QueryContext(ctx, `
		SELECT measurement, tags, ts, fields
		FROM point
		WHERE measurement = ? AND ts >= ?
		ORDER BY ts, tags ASC`,
		measurement, from.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("fetching %s points: %w", measurement, err)
	}
	defer rows.Close()

	var points []types.Point
	for rows.Next() {
		var (
			p      types.Point
			tags   string
			fields string
			ts     int64
		)
		if err := rows.Scan(&p.Measurement, &tags, &ts, &fields); err != nil {
			return nil, fmt.Errorf("scanning point row: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &p.Tags); err != nil {
			return nil, fmt.Errorf("decoding tags: %w", err)
		}
		if err := json.Unmarshal([]byte(fields), &p.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields: %w", err)
		}
		p.Time = time.UnixMilli(ts).UTC()
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading point rows: %w", err)
	}

	return points, nil
}

func (d *Database) PurgePoints(ctx context.Context, retentionDays int) error {
	return d.purgeBefore(ctx, "point", "ts", retentionDays)
}

func encodeTags(tags map[string]string) (string, error) {
	if len(tags) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(tags) // map keys are sorted, so equal tag sets encode equally
	return string(b), err
}

func encodeFields(fields map[string]any) (string, error) {
	rounded := make(map[string]any, len(fields))
	for k, v := range fields {
		if f, ok := v.(float64); ok {
			v = convert.RoundFloat64(f, 4)
		}
		rounded[k] = v
	}
	b, err := json.Marshal(rounded)
	return string(b), err
}
