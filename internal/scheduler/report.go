package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/external"
	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/report"
)

// JobSource finds the job whose report should be shown.
type JobSource interface {
	LatestCompleted(ctx context.Context) (*models.Job, error)
}

// ReportFetcher downloads report text by storage path.
type ReportFetcher interface {
	FetchReport(ctx context.Context, storagePath string) (string, error)
}

// IngestionLog persists one summary per newly seen report.
type IngestionLog interface {
	Record(ctx context.Context, in *models.IngestionRecord) (*models.IngestionRecord, error)
	LastPath(ctx context.Context) (string, error)
}

type ReportPollerConfig struct {
	Interval    time.Duration // default 5s
	PollTimeout time.Duration // default 60s
	// OnNewReport runs after a report from a new storage path was loaded.
	OnNewReport func(job *models.Job, summary report.Summary)
}

type ReportPoller struct {
	jobs    JobSource
	fetcher ReportFetcher
	history IngestionLog
	store   *dashboard.Store
	metrics *Metrics
	log     *zap.Logger
	cfg     ReportPollerConfig
	group   singleflight.Group

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	lastPath string
	unpinned bool
}

// NewReportPoller wires a poller. history may be nil.
func NewReportPoller(jobs JobSource, fetcher ReportFetcher, history IngestionLog, store *dashboard.Store,
	metrics *Metrics, log *zap.Logger, cfg ReportPollerConfig) *ReportPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60 * time.Second
	}
	if metrics == nil {
		metrics = NewMetrics(nil, store)
	}
	return &ReportPoller{
		jobs:    jobs,
		fetcher: fetcher,
		history: history,
		store:   store,
		metrics: metrics,
		log:     log.Named("poller"),
		cfg:     cfg,
	}
}

func (p *ReportPoller) Start() {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		p.log.Warn("already running")
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	stop := p.stopCh
	p.mu.Unlock()

	// Initial fetch on startup
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PollTimeout)
		defer cancel()
		p.seedLastPath(ctx)
		if err := p.FetchNow(ctx); err != nil {
			p.log.Warn("initial report fetch failed", zap.Error(err))
		}
	}()

	go func() {
		ticker := time.NewTicker(p.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), p.cfg.PollTimeout)
				if err := p.FetchNow(ctx); err != nil {
					p.log.Warn("report poll failed", zap.Error(err))
				}
				cancel()
			}
		}
	}()

	p.log.Info("started", zap.Duration("interval", p.cfg.Interval))
}

func (p *ReportPoller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	close(p.stopCh)
	p.running = false
	p.log.Info("stopped")
}

func (p *ReportPoller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// FetchNow polls once. Calls made while a poll is in flight share its result.
func (p *ReportPoller) FetchNow(ctx context.Context) error {
	_, err, _ := p.group.Do("poll", func() (any, error) {
		return nil, p.poll(ctx)
	})
	return err
}

// Unpin lets the next poll replace an uploaded collection with the latest
// job report.
func (p *ReportPoller) Unpin() {
	p.mu.Lock()
	p.unpinned = true
	p.mu.Unlock()
}

func (p *ReportPoller) seedLastPath(ctx context.Context) {
	if p.history == nil {
		return
	}
	path, err := p.history.LastPath(ctx)
	if err != nil {
		p.log.Warn("could not load last ingested path", zap.Error(err))
		return
	}
	p.mu.Lock()
	if p.lastPath == "" {
		p.lastPath = path
	}
	p.mu.Unlock()
}

func (p *ReportPoller) poll(ctx context.Context) error {
	start := time.Now()
	defer func() { p.metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	job, err := p.jobs.LatestCompleted(ctx)
	if err != nil {
		p.metrics.Polls.WithLabelValues(resultFailure).Inc()
		return fmt.Errorf("latest job: %w", err)
	}
	if job == nil || !job.HasReport() {
		p.clear("no completed job")
		return nil
	}
	path := *job.StoragePath

	p.mu.Lock()
	isNew := path != p.lastPath
	unpinned := p.unpinned
	p.mu.Unlock()

	// An uploaded collection stays until a newer report shows up.
	if !isNew && !unpinned && p.store.Load().Source == dashboard.SourceUpload {
		p.metrics.Polls.WithLabelValues(resultPinned).Inc()
		return nil
	}

	text, err := p.fetcher.FetchReport(ctx, path)
	if err != nil {
		if errors.Is(err, external.ErrReportNotFound) {
			p.clear("report missing from storage")
			return nil
		}
		p.metrics.Polls.WithLabelValues(resultFailure).Inc()
		return fmt.Errorf("fetch report: %w", err)
	}

	records := report.Ingest(text)
	// an upload stored while the report was downloading still wins
	_, swapped := p.store.ReplaceUnless(records, dashboard.SourceJob, job.ID, path, func(cur *dashboard.Snapshot) bool {
		return !isNew && !unpinned && cur.Source == dashboard.SourceUpload
	})
	if !swapped {
		p.metrics.Polls.WithLabelValues(resultPinned).Inc()
		return nil
	}
	p.metrics.Polls.WithLabelValues(resultOK).Inc()

	p.mu.Lock()
	p.lastPath = path
	p.unpinned = false
	p.mu.Unlock()

	if isNew {
		p.recordNew(ctx, job, records)
	}
	return nil
}

func (p *ReportPoller) clear(reason string) {
	p.mu.Lock()
	unpinned := p.unpinned
	p.unpinned = false
	p.mu.Unlock()

	_, cleared := p.store.ReplaceUnless(nil, dashboard.SourceNone, "", "", func(cur *dashboard.Snapshot) bool {
		return !unpinned && cur.Source == dashboard.SourceUpload
	})
	if !cleared {
		p.metrics.Polls.WithLabelValues(resultPinned).Inc()
		return
	}
	p.metrics.Polls.WithLabelValues(resultNoData).Inc()
	p.log.Debug("collection cleared", zap.String("reason", reason))
}

func (p *ReportPoller) recordNew(ctx context.Context, job *models.Job, records []models.MarketRecord) {
	summary := report.Summarize(records)
	p.metrics.Ingestions.Inc()
	p.log.Info("new report loaded",
		zap.String("job_id", job.ID),
		zap.String("storage_path", *job.StoragePath),
		zap.Int("markets", summary.TotalMarkets),
		zap.Float64("avg_edge", summary.AvgEdge),
	)

	if p.history != nil {
		_, err := p.history.Record(ctx, &models.IngestionRecord{
			JobID:          job.ID,
			StoragePath:    *job.StoragePath,
			TotalMarkets:   summary.TotalMarkets,
			AvgEdge:        summary.AvgEdge,
			HighConfidence: summary.HighConfidence,
			StrongBuys:     summary.StrongBuys,
			IngestedAt:     time.Now(),
		})
		if err != nil {
			p.log.Warn("could not record ingestion", zap.Error(err))
		}
	}

	if p.cfg.OnNewReport != nil {
		p.cfg.OnNewReport(job, summary)
	}
}
