package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/httputil"
	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/report"
)

const defaultBotName = "Watchtower"

// Sender posts chat messages to a Slack or Discord webhook. Without a
// webhook URL it only logs.
type Sender struct {
	webhookURL string
	botName    string
	httpClient *http.Client
	retry      httputil.RetryConfig
	log        *zap.Logger
}

func NewSender(webhookURL, botName string, log *zap.Logger) *Sender {
	if botName == "" {
		botName = defaultBotName
	}
	log = log.Named("notify")
	return &Sender{
		webhookURL: webhookURL,
		botName:    botName,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    5 * time.Second,
			Logger:      log,
		},
		log: log,
	}
}

// Send delivers msg. Failures are logged, never returned.
func (s *Sender) Send(ctx context.Context, msg string) {
	formatted := fmt.Sprintf("[%s] %s", s.botName, msg)
	s.log.Info("notification", zap.String("message", msg))

	if s.webhookURL == "" {
		return
	}

	body, err := json.Marshal(s.formatPayload(formatted))
	if err != nil {
		s.log.Error("marshal payload", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	resp, err := httputil.Do(ctx, s.httpClient, s.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		s.log.Warn("webhook delivery failed", zap.Error(err))
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		s.log.Warn("webhook rejected message", zap.Int("status", resp.StatusCode))
	}
}

// NotifyNewReport announces a freshly ingested report.
func (s *Sender) NotifyNewReport(ctx context.Context, job *models.Job, sum report.Summary) {
	s.Send(ctx, NewReportMessage(job, sum))
}

// NotifyJobFinished announces the end of a run started from this service.
func (s *Sender) NotifyJobFinished(ctx context.Context, jobID string, err error) {
	if err != nil {
		s.Send(ctx, fmt.Sprintf("Pipeline job %s failed: %v", jobID, err))
		return
	}
	s.Send(ctx, fmt.Sprintf("Pipeline job %s completed", jobID))
}

func NewReportMessage(job *models.Job, sum report.Summary) string {
	path := ""
	if job.StoragePath != nil {
		path = *job.StoragePath
	}
	return fmt.Sprintf("New report %s: %d markets, avg edge %s, %d high confidence, %d strong buys",
		path, sum.TotalMarkets, report.FormatPercent(sum.AvgEdge), sum.HighConfidence, sum.StrongBuys)
}

func (s *Sender) formatPayload(msg string) map[string]string {
	if strings.Contains(s.webhookURL, "discord") {
		return map[string]string{
			"content":  msg,
			"username": s.botName,
		}
	}
	return map[string]string{
		"text":     fmt.Sprintf("`%s`", msg),
		"username": s.botName,
	}
}

func (s *Sender) Enabled() bool {
	return s.webhookURL != ""
}
