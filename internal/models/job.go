package models

import "time"

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is one run of the external analysis pipeline, as tracked in pipeline_jobs.
type Job struct {
	ID          string    `json:"id"`
	Status      string    `json:"status"`
	StoragePath *string   `json:"storage_path,omitempty"`
	Command     string    `json:"command"`
	Error       *string   `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasReport reports whether the job finished and left a CSV in storage.
func (j *Job) HasReport() bool {
	return j.Status == JobCompleted && j.StoragePath != nil && *j.StoragePath != ""
}

// JobConfig is the payload accepted by the pipeline's custom-run endpoint.
type JobConfig struct {
	Platforms    []string `json:"platforms" validate:"required,min=1,dive,required"`
	MinLiquidity float64  `json:"min_liquidity" validate:"gte=0"`
	MaxHours     int      `json:"max_hours" validate:"gt=0"`
	ExtraArgs    []string `json:"extra_args"`
}

// DefaultJobConfig mirrors the defaults the pipeline applies to a custom run.
func DefaultJobConfig() JobConfig {
	return JobConfig{
		Platforms:    []string{"manifold", "polymarket"},
		MinLiquidity: 500,
		MaxHours:     720,
		ExtraArgs:    []string{},
	}
}

type IngestionRecord struct {
	ID             int64     `json:"id"`
	JobID          string    `json:"jobId"`
	StoragePath    string    `json:"storagePath"`
	TotalMarkets   int       `json:"totalMarkets"`
	AvgEdge        float64   `json:"avgEdge"`
	HighConfidence int       `json:"highConfidence"`
	StrongBuys     int       `json:"strongBuys"`
	IngestedAt     time.Time `json:"ingestedAt"`
}

// DefaultUpdateConfig is the pipeline's built-in scheduled refresh run.
func DefaultUpdateConfig() JobConfig {
	return JobConfig{
		Platforms:    []string{"manifold", "polymarket"},
		MinLiquidity: 1155,
		MaxHours:     30000,
		ExtraArgs:    []string{},
	}
}
