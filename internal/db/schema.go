package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IngestionSchema creates the table this service owns. pipeline_jobs belongs
// to the pipeline and is only read.
const IngestionSchema = `
CREATE TABLE IF NOT EXISTS report_ingestions (
	id              BIGSERIAL PRIMARY KEY,
	job_id          TEXT NOT NULL,
	storage_path    TEXT NOT NULL,
	total_markets   INTEGER NOT NULL,
	avg_edge        DOUBLE PRECISION NOT NULL,
	high_confidence INTEGER NOT NULL,
	strong_buys     INTEGER NOT NULL,
	ingested_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// JobsSchema mirrors the pipeline's table; used by integration tests.
const JobsSchema = `
CREATE TABLE IF NOT EXISTS pipeline_jobs (
	id           UUID PRIMARY KEY,
	status       TEXT NOT NULL,
	storage_path TEXT,
	command      TEXT NOT NULL DEFAULT '',
	error        TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

func Migrate(ctx context.Context, p *pgxpool.Pool) error {
	if _, err := p.Exec(ctx, IngestionSchema); err != nil {
		return fmt.Errorf("create report_ingestions: %w", err)
	}
	return nil
}
