package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kjannette/watchtower-backend/internal/models"
)

const jobColumns = `id::text, status, storage_path, command, error, created_at`

// JobRepo reads pipeline runs. The pipeline owns the table; this service
// never writes to it.
type JobRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{pool: pool, now: time.Now}
}

// List returns the most recent jobs, newest first.
func (r *JobRepo) List(ctx context.Context, limit int) ([]models.Job, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM pipeline_jobs ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	return collectJobs(rows)
}

// Get returns the job with the given id, or nil when it does not exist.
func (r *JobRepo) Get(ctx context.Context, id string) (*models.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM pipeline_jobs WHERE id = $1::uuid`,
		id,
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return j, nil
}

// LatestCompleted returns the newest completed job that produced a report,
// or nil when there is none.
func (r *JobRepo) LatestCompleted(ctx context.Context) (*models.Job, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM pipeline_jobs
		 WHERE status = $1 AND storage_path IS NOT NULL AND storage_path <> ''
		 ORDER BY created_at DESC LIMIT 1`,
		models.JobCompleted,
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("latest completed job: %w", err)
	}
	return j, nil
}

// CountToday returns the number of jobs created since midnight UTC.
func (r *JobRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM pipeline_jobs WHERE created_at >= $1`,
		DayStart(r.now()),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count today's jobs: %w", err)
	}
	return count, nil
}

func scanJob(row scannable) (*models.Job, error) {
	var j models.Job
	if err := row.Scan(&j.ID, &j.Status, &j.StoragePath, &j.Command, &j.Error, &j.CreatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}

func collectJobs(rows rowsIter) ([]models.Job, error) {
	out := []models.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}
