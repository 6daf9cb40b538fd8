package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/dashboard"
	"github.com/kjannette/watchtower-backend/internal/external"
	"github.com/kjannette/watchtower-backend/internal/models"
)

const maxQueryLimit = 1000

// JobStore reads pipeline runs.
type JobStore interface {
	List(ctx context.Context, limit int) ([]models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
}

type IngestionLister interface {
	List(ctx context.Context, limit int) ([]models.IngestionRecord, error)
}

// Launcher submits pipeline runs and waits for them.
type Launcher interface {
	StartJob(ctx context.Context, cfg models.JobConfig) (*external.StartResponse, error)
	StartDefaultUpdate(ctx context.Context) (*external.StartResponse, error)
	WaitForJob(ctx context.Context, jobID string) (*models.Job, error)
}

type LaunchGuard interface {
	PreLaunchCheck(ctx context.Context, cfg models.JobConfig) error
}

// Refresher reloads the collection from the latest job report.
type Refresher interface {
	FetchNow(ctx context.Context) error
	Unpin()
}

type JobNotifier interface {
	NotifyJobFinished(ctx context.Context, jobID string, err error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the HTTP handlers. Nil optional
// fields disable the routes or checks that need them.
type Deps struct {
	Store      *dashboard.Store
	Jobs       JobStore
	Ingestions IngestionLister
	Launcher   Launcher
	Guard      LaunchGuard
	Refresher  Refresher
	Notifier   JobNotifier
	DB         Pinger
	Metrics    http.Handler
	Logger     *zap.Logger
}

type Server struct {
	Deps
	log        *zap.Logger
	validate   *validator.Validate
	router     chi.Router
	httpServer *http.Server
	apiKey     string

	// background job watchers outlive the request that started them
	bgCtx    context.Context
	bgCancel context.CancelFunc
	bg       sync.WaitGroup
	jobWait  time.Duration
}

func NewServer(d Deps, port int, apiKey, corsOrigin string) *Server {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if d.Store == nil {
		d.Store = dashboard.NewStore()
	}
	bgCtx, bgCancel := context.WithCancel(context.Background())
	s := &Server{
		Deps:     d,
		log:      log.Named("api"),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		apiKey:   apiKey,
		bgCtx:    bgCtx,
		bgCancel: bgCancel,
		jobWait:  4 * time.Hour,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(corsMiddleware(corsOrigin))
	r.Use(s.authMiddleware)

	// no auth required
	r.Get("/health", s.handleHealth)
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/markets", s.handleMarkets)
		r.Get("/markets/export.xlsx", s.handleExport)
		r.Get("/markets/{rank}", s.handleMarket)
		r.Get("/stats", s.handleStats)
		r.Get("/charts", s.handleCharts)

		r.Get("/jobs", s.handleJobs)
		r.Post("/jobs", s.handleLaunchJob)
		r.Post("/jobs/update", s.handleLaunchUpdate)
		r.Get("/jobs/{id}", s.handleJob)

		r.Post("/reports/upload", s.handleUpload)
		r.Post("/refresh", s.handleRefresh)
		r.Get("/ingestions", s.handleIngestions)
	})
	s.router = r

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks until the server stops. A clean shutdown returns nil.
func (s *Server) Start() error {
	s.log.Info("REST API server started",
		zap.String("addr", s.httpServer.Addr),
		zap.Bool("auth", s.apiKey != ""),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.bgCancel()
	s.bg.Wait()
	return err
}

// --- middleware ---

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiKey == "" || r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, r, http.StatusUnauthorized, "missing Authorization header")
			return
		}

		token := strings.TrimPrefix(auth, "Bearer ")
		if token == auth || token != s.apiKey {
			writeError(w, r, http.StatusUnauthorized, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(allowOrigin string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			return
		}
		s.log.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.log.Error("handler panic",
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("path", r.URL.Path),
					zap.Any("panic", rec),
					zap.Stack("stack"),
				)
				writeError(w, r, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// --- validation helpers ---

func parseLimit(r *http.Request, defaultLimit int) int {
	v := r.URL.Query().Get("limit")
	if v == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxQueryLimit {
		return maxQueryLimit
	}
	return n
}

// --- response helpers ---

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}
