package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kjannette/watchtower-backend/internal/api"
	"github.com/kjannette/watchtower-backend/internal/config"
	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/db"
	"github.com/kjannette/watchtower-backend/internal/external"
	"github.com/kjannette/watchtower-backend/internal/launch"
	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/notifications"
	"github.com/kjannette/watchtower-backend/internal/report"
	"github.com/kjannette/watchtower-backend/internal/repository"
	"github.com/kjannette/watchtower-backend/internal/scheduler"
)

const banner = `
╔══════════════════════════════════════╗
║     Watchtower Dashboard Backend     ║
║                                      ║
╚══════════════════════════════════════╝
`

func main() {
	fmt.Print(banner)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	cfg.Print(os.Stdout)

	log, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	for _, w := range cfg.Warnings() {
		log.Warn(w)
	}

	if err := run(cfg, log); err != nil {
		log.Error("fatal", zap.Error(err))
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	log.Info("connecting to database", zap.String("host", cfg.DBHost), zap.Int("port", cfg.DBPort), zap.String("db", cfg.DBName))
	pool, err := db.Connect(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer func() {
		pool.Close()
		log.Info("database pool closed")
	}()
	if err := db.TestConnection(ctx, pool, log); err != nil {
		return err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}

	// Repos
	jobRepo := repository.NewJobRepo(pool)
	ingestRepo := repository.NewIngestionRepo(pool)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	notify := notifications.NewSender(cfg.WebhookURL, cfg.BotName, log)
	storage := external.NewStorageClient(cfg.StorageBaseURL, log)
	store := dashboard.NewStore()
	metrics := scheduler.NewMetrics(reg, store)

	poller := scheduler.NewReportPoller(jobRepo, storage, ingestRepo, store, metrics, log, scheduler.ReportPollerConfig{
		Interval: cfg.PollInterval,
		OnNewReport: func(job *models.Job, sum report.Summary) {
			notify.NotifyNewReport(context.Background(), job, sum)
		},
	})

	deps := api.Deps{
		Store:      store,
		Jobs:       jobRepo,
		Ingestions: ingestRepo,
		Refresher:  poller,
		Notifier:   notify,
		DB:         pool,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Logger:     log,
	}
	if cfg.PipelineAPIURL != "" {
		deps.Launcher = external.NewPipelineClient(cfg.PipelineAPIURL, log, external.PipelineOptions{
			PollInterval: cfg.JobPollEvery,
		})
		deps.Guard = launch.NewGuardian(launch.Limits{
			MaxDailyJobs:      cfg.MaxDailyJobs,
			LaunchesPerMinute: cfg.LaunchesPerMinute,
			MaxRunHours:       cfg.MaxRunHours,
		}, jobRepo)
	}
	srv := api.NewServer(deps, cfg.APIPort, cfg.APIKey, cfg.CORSAllowOrigin)

	poller.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		poller.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("api shutdown: %w", err)
		}
		return nil
	})

	log.Info("all services started")
	return g.Wait()
}
