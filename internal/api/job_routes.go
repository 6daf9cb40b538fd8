package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/external"
	"github.com/kjannette/watchtower-backend/internal/launch"
	"github.com/kjannette/watchtower-backend/internal/models"
)

const followUpTimeout = time.Minute

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "job history not available")
		return
	}
	jobs, err := s.Jobs.List(r.Context(), parseLimit(r, 50))
	if err != nil {
		s.log.Error("list jobs", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to fetch jobs")
		return
	}
	writeJSON(w, r, http.StatusOK, jobs)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid job id")
		return
	}
	if s.Jobs == nil {
		writeError(w, r, http.StatusServiceUnavailable, "job history not available")
		return
	}
	job, err := s.Jobs.Get(r.Context(), id)
	if err != nil {
		s.log.Error("get job", zap.String("job_id", id), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to fetch job")
		return
	}
	if job == nil {
		writeError(w, r, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, r, http.StatusOK, job)
}

func (s *Server) handleLaunchJob(w http.ResponseWriter, r *http.Request) {
	cfg := models.DefaultJobConfig()
	if err := render.DecodeJSON(r.Body, &cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cfg.Platforms = normalizePlatforms(cfg.Platforms)
	if err := s.validate.Struct(cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, validationMessage(err))
		return
	}

	s.launch(w, r, cfg, func(ctx context.Context) (*external.StartResponse, error) {
		return s.Launcher.StartJob(ctx, cfg)
	})
}

func (s *Server) handleLaunchUpdate(w http.ResponseWriter, r *http.Request) {
	s.launch(w, r, models.DefaultUpdateConfig(), func(ctx context.Context) (*external.StartResponse, error) {
		return s.Launcher.StartDefaultUpdate(ctx)
	})
}

func (s *Server) launch(w http.ResponseWriter, r *http.Request, cfg models.JobConfig,
	start func(context.Context) (*external.StartResponse, error)) {
	if s.Launcher == nil {
		writeError(w, r, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}
	if s.Guard != nil {
		if err := s.Guard.PreLaunchCheck(r.Context(), cfg); err != nil {
			if errors.Is(err, launch.ErrLaunchBlocked) {
				s.log.Warn("launch refused", zap.Error(err))
				writeError(w, r, http.StatusTooManyRequests, err.Error())
				return
			}
			s.log.Error("launch check", zap.Error(err))
			writeError(w, r, http.StatusInternalServerError, "launch check failed")
			return
		}
	}

	resp, err := start(r.Context())
	if err != nil {
		s.log.Error("start job", zap.Error(err))
		writeError(w, r, http.StatusBadGateway, "failed to start pipeline job")
		return
	}
	if resp.Status == "" {
		resp.Status = "started"
	}
	if resp.Platforms == nil {
		resp.Platforms = cfg.Platforms
	}

	s.watchJob(resp.JobID)
	writeJSON(w, r, http.StatusAccepted, resp)
}

// watchJob waits for a started job in the background and reloads the
// collection once it finishes.
func (s *Server) watchJob(jobID string) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(s.bgCtx, s.jobWait)
		defer cancel()

		log := s.log.With(zap.String("job_id", jobID))
		_, err := s.Launcher.WaitForJob(ctx, jobID)
		if errors.Is(err, context.Canceled) {
			return
		}
		if err != nil {
			log.Warn("job did not complete", zap.Error(err))
		} else {
			log.Info("job completed")
		}
		// the wait context may have expired; follow-ups get their own
		followCtx, followCancel := context.WithTimeout(context.Background(), followUpTimeout)
		defer followCancel()
		if s.Notifier != nil {
			s.Notifier.NotifyJobFinished(followCtx, jobID, err)
		}
		if err == nil && s.Refresher != nil {
			if err := s.Refresher.FetchNow(followCtx); err != nil {
				log.Warn("refresh after job failed", zap.Error(err))
			}
		}
	}()
}

func normalizePlatforms(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, p := range in {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid job config"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
