package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kjannette/watchtower-backend/internal/httputil"
	"github.com/kjannette/watchtower-backend/internal/models"
	"go.uber.org/zap"
)

// StartResponse is what the pipeline answers when a run is accepted.
type StartResponse struct {
	JobID     string   `json:"job_id"`
	Status    string   `json:"status"`
	Platforms []string `json:"platforms"`
}

// PipelineClient talks to the analysis pipeline's HTTP API.
type PipelineClient struct {
	baseURL      string
	httpClient   *http.Client
	retry        httputil.RetryConfig
	log          *zap.Logger
	pollInterval time.Duration
	maxPolls     int
}

type PipelineOptions struct {
	PollInterval time.Duration
	MaxPolls     int
}

func NewPipelineClient(baseURL string, log *zap.Logger, opts PipelineOptions) *PipelineClient {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		// a full pipeline run can take well over an hour
		maxPolls = 1440
	}
	log = log.Named("pipeline")
	return &PipelineClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
			Logger:      log,
		},
		log:          log,
		pollInterval: interval,
		maxPolls:     maxPolls,
	}
}

// StartJob submits a custom run.
func (c *PipelineClient) StartJob(ctx context.Context, cfg models.JobConfig) (*StartResponse, error) {
	if cfg.ExtraArgs == nil {
		cfg.ExtraArgs = []string{}
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode job config: %w", err)
	}
	return c.start(ctx, "/custom", body)
}

// StartDefaultUpdate asks the pipeline to run its built-in refresh job.
func (c *PipelineClient) StartDefaultUpdate(ctx context.Context) (*StartResponse, error) {
	return c.start(ctx, "/update", nil)
}

func (c *PipelineClient) start(ctx context.Context, path string, body []byte) (*StartResponse, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("start job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("start job: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out StartResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode start response: %w", err)
	}
	if out.JobID == "" {
		return nil, fmt.Errorf("pipeline did not return a job id")
	}
	c.log.Info("job started", zap.String("job_id", out.JobID), zap.Strings("platforms", out.Platforms))
	return &out, nil
}

// ListJobs returns every job the pipeline knows about, newest first.
func (c *PipelineClient) ListJobs(ctx context.Context) ([]models.Job, error) {
	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs", nil)
	})
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list jobs: status %d", resp.StatusCode)
	}

	var jobs []models.Job
	if err := json.NewDecoder(resp.Body).Decode(&jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	return jobs, nil
}

// WaitForJob polls the job list until the job completes or fails. A failed
// job is returned together with an error.
func (c *PipelineClient) WaitForJob(ctx context.Context, jobID string) (*models.Job, error) {
	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		jobs, err := c.ListJobs(ctx)
		if err != nil {
			c.log.Warn("status check failed", zap.String("job_id", jobID), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		job := findJob(jobs, jobID)
		if job == nil {
			continue
		}
		switch job.Status {
		case models.JobCompleted:
			return job, nil
		case models.JobFailed:
			msg := "unknown error"
			if job.Error != nil && *job.Error != "" {
				msg = *job.Error
			}
			return job, fmt.Errorf("job %s failed: %s", jobID, msg)
		default:
			c.log.Debug("job still running", zap.String("job_id", jobID), zap.String("status", job.Status))
		}
	}
	return nil, fmt.Errorf("job %s did not finish after %d checks", jobID, c.maxPolls)
}

func findJob(jobs []models.Job, id string) *models.Job {
	for i := range jobs {
		if jobs[i].ID == id {
			return &jobs[i]
		}
	}
	return nil
}
