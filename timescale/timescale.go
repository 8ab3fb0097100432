package timescale

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/rdn-scraper/types"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
	CREATE TABLE IF NOT EXISTS point (
		time        TIMESTAMPTZ NOT NULL,
		measurement TEXT NOT NULL,
		tags        JSONB NOT NULL DEFAULT '{}',
		fields      JSONB NOT NULL,
		written_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (measurement, tags, time)
	)`

const hypertableSQL = `SELECT create_hypertable('point', 'time', if_not_exists => TRUE, migrate_data => TRUE)`

const upsertSQL = `
	INSERT INTO point (time, measurement, tags, fields, written_at)
	VALUES ($1, $2, $3, $4, now())
	ON CONFLICT (measurement, tags, time) DO UPDATE SET
		fields = EXCLUDED.fields,
		written_at = EXCLUDED.written_at`

// Sink writes batches to a TimescaleDB (or plain PostgreSQL) table.
type Sink struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
}

// Connect creates the pool and makes sure the point table exists.
func Connect(ctx context.Context, opts Options) (*Sink, error) {
	poolCfg, err := pgxpool.ParseConfig(BuildConnString(opts))
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = int32(opts.MaxConns)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Sink{
		logger: slog.Default().With(slog.String("module", "timescale")),
		pool:   pool,
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Sink) migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create point table: %w", err)
	}
	// Plain PostgreSQL has no hypertables, the table works without one.
	if _, err := s.pool.Exec(ctx, hypertableSQL); err != nil {
		s.logger.Warn("point table is not a hypertable", slog.Any("error", err))
	}
	return nil
}

func (s *Sink) Write(ctx context.Context, batch types.Batch) error {
	if batch.Len() == 0 {
		return nil
	}

	start := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch %q: %w", batch.Name, err)
	}
	defer tx.Rollback(ctx)

	results := tx.SendBatch(ctx, queueBatch(batch))
	for _, p := range batch.Points {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("saving point %s at %s: %w", p.Measurement, p.Time.UTC().Format(time.RFC3339), err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("closing batch %q: %w", batch.Name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch %q: %w", batch.Name, err)
	}

	s.logger.Debug("flushed points",
		"batch", batch.Name,
		"count", batch.Len(),
		"duration", time.Since(start),
	)
	return nil
}

func (s *Sink) Close() error {
	s.pool.Close()
	return nil
}

func queueBatch(batch types.Batch) *pgx.Batch {
	b := &pgx.Batch{}
	for _, p := range batch.Points {
		tags := p.Tags
		if tags == nil {
			tags = map[string]string{}
		}
		b.Queue(upsertSQL, p.Time.UTC(), p.Measurement, tags, p.Fields)
	}
	return b
}
