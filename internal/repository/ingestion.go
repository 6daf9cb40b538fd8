package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/watchtower-backend/internal/models"
)

// IngestionRepo keeps a history of every report the poller loaded.
type IngestionRepo struct {
	pool *pgxpool.Pool
}

func NewIngestionRepo(pool *pgxpool.Pool) *IngestionRepo {
	return &IngestionRepo{pool: pool}
}

func (r *IngestionRepo) Record(ctx context.Context, in *models.IngestionRecord) (*models.IngestionRecord, error) {
	ts := in.IngestedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	row := r.pool.QueryRow(ctx,
		`INSERT INTO report_ingestions
		 (job_id, storage_path, total_markets, avg_edge, high_confidence, strong_buys, ingested_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 RETURNING id, job_id, storage_path, total_markets, avg_edge, high_confidence, strong_buys, ingested_at`,
		in.JobID, in.StoragePath, in.TotalMarkets, in.AvgEdge, in.HighConfidence, in.StrongBuys, ts,
	)
	rec, err := scanIngestion(row)
	if err != nil {
		return nil, fmt.Errorf("record ingestion: %w", err)
	}
	return rec, nil
}

// LastPath returns the storage path of the newest ingestion, or "" when the
// history is empty.
func (r *IngestionRepo) LastPath(ctx context.Context) (string, error) {
	var path string
	err := r.pool.QueryRow(ctx,
		`SELECT storage_path FROM report_ingestions ORDER BY ingested_at DESC, id DESC LIMIT 1`,
	).Scan(&path)
	if err != nil {
		if isNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("last ingestion: %w", err)
	}
	return path, nil
}

func (r *IngestionRepo) List(ctx context.Context, limit int) ([]models.IngestionRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, job_id, storage_path, total_markets, avg_edge, high_confidence, strong_buys, ingested_at
		 FROM report_ingestions ORDER BY ingested_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	defer rows.Close()

	out := []models.IngestionRecord{}
	for rows.Next() {
		rec, err := scanIngestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func scanIngestion(row scannable) (*models.IngestionRecord, error) {
	var rec models.IngestionRecord
	err := row.Scan(
		&rec.ID, &rec.JobID, &rec.StoragePath, &rec.TotalMarkets,
		&rec.AvgEdge, &rec.HighConfidence, &rec.StrongBuys, &rec.IngestedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
