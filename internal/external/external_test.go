package external_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kjannette/watchtower-backend/internal/external"
	"github.com/kjannette/watchtower-backend/internal/models"
	"go.uber.org/zap"
)

const csvBody = "Rank,Platform\n1,manifold\n"

func TestStorageFetchReport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/public/reports/job_1_out.csv" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(csvBody))
	}))
	defer srv.Close()

	client := external.NewStorageClient(srv.URL+"/", zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	text, err := client.FetchReport(ctx, "reports/job_1_out.csv")
	if err != nil {
		t.Fatalf("FetchReport: %v", err)
	}
	if text != csvBody {
		t.Fatalf("unexpected body %q", text)
	}

	_, err = client.FetchReport(ctx, "reports/missing.csv")
	if !errors.Is(err, external.ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	if _, err := client.FetchReport(ctx, ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestStorageObjectURL(t *testing.T) {
	client := external.NewStorageClient("https://store.example/", zap.NewNop())
	got := client.ObjectURL("reports/job 1.csv")
	want := "https://store.example/storage/v1/object/public/reports/job%201.csv"
	if got != want {
		t.Fatalf("ObjectURL = %q, want %q", got, want)
	}
}

func TestPipelineStartJob(t *testing.T) {
	var got models.JobConfig
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/custom" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"job_id": "4b1c", "status": "started", "platforms": got.Platforms,
		})
	}))
	defer srv.Close()

	client := external.NewPipelineClient(srv.URL, zap.NewNop(), external.PipelineOptions{})
	cfg := models.DefaultJobConfig()
	cfg.ExtraArgs = nil

	resp, err := client.StartJob(context.Background(), cfg)
	if err != nil {
		t.Fatalf("StartJob: %v", err)
	}
	if resp.JobID != "4b1c" || resp.Status != "started" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(got.Platforms) != 2 || got.MinLiquidity != 500 || got.MaxHours != 720 {
		t.Fatalf("pipeline received %+v", got)
	}
	if got.ExtraArgs == nil {
		t.Fatal("extra_args should be sent as an empty list")
	}
}

func TestPipelineStartJob_Rejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"Platforms list cannot be empty"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := external.NewPipelineClient(srv.URL, zap.NewNop(), external.PipelineOptions{})
	if _, err := client.StartJob(context.Background(), models.JobConfig{}); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestPipelineWaitForJob(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := models.JobRunning
		if calls.Add(1) >= 3 {
			status = models.JobCompleted
		}
		path := "reports/a.csv"
		json.NewEncoder(w).Encode([]models.Job{
			{ID: "other", Status: models.JobFailed},
			{ID: "target", Status: status, StoragePath: &path},
		})
	}))
	defer srv.Close()

	client := external.NewPipelineClient(srv.URL, zap.NewNop(), external.PipelineOptions{
		PollInterval: 10 * time.Millisecond,
		MaxPolls:     10,
	})
	job, err := client.WaitForJob(context.Background(), "target")
	if err != nil {
		t.Fatalf("WaitForJob: %v", err)
	}
	if !job.HasReport() {
		t.Fatalf("expected completed job with report, got %+v", job)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 status checks, got %d", calls.Load())
	}
}

func TestPipelineWaitForJob_Failed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		msg := "ssh timeout"
		json.NewEncoder(w).Encode([]models.Job{{ID: "target", Status: models.JobFailed, Error: &msg}})
	}))
	defer srv.Close()

	client := external.NewPipelineClient(srv.URL, zap.NewNop(), external.PipelineOptions{PollInterval: time.Millisecond, MaxPolls: 3})
	job, err := client.WaitForJob(context.Background(), "target")
	if err == nil {
		t.Fatal("expected error for failed job")
	}
	if job == nil || job.Status != models.JobFailed {
		t.Fatalf("expected failed job returned, got %+v", job)
	}
}

func TestPipelineWaitForJob_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer srv.Close()

	client := external.NewPipelineClient(srv.URL, zap.NewNop(), external.PipelineOptions{PollInterval: time.Millisecond, MaxPolls: 2})
	if _, err := client.WaitForJob(context.Background(), "target"); err == nil {
		t.Fatal("expected error after max polls")
	}
}
