package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kjannette/watchtower-backend/internal/models"
	"github.com/kjannette/watchtower-backend/internal/report"
)

func capture(t *testing.T) (*httptest.Server, *map[string]string) {
	t.Helper()
	received := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &received)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &received
}

func TestSend_NoWebhook(t *testing.T) {
	s := NewSender("", "TestBot", zap.NewNop())
	if s.Enabled() {
		t.Fatal("should not be enabled with empty URL")
	}
	s.Send(context.Background(), "hello from test")
}

func TestSend_SlackFormat(t *testing.T) {
	srv, received := capture(t)

	s := NewSender(srv.URL, "TestBot", zap.NewNop())
	if !s.Enabled() {
		t.Fatal("should be enabled")
	}
	s.Send(context.Background(), "report loaded")

	if (*received)["username"] != "TestBot" {
		t.Fatalf("username: got %s", (*received)["username"])
	}
	if (*received)["text"] != "`[TestBot] report loaded`" {
		t.Fatalf("text: got %q", (*received)["text"])
	}
}

func TestSend_DiscordFormat(t *testing.T) {
	srv, received := capture(t)

	// URL containing "discord" triggers Discord format
	s := NewSender(srv.URL+"/discord/webhook", "WatchBot", zap.NewNop())
	s.Send(context.Background(), "job finished")

	if (*received)["content"] != "[WatchBot] job finished" {
		t.Fatalf("content: got %q", (*received)["content"])
	}
	if _, hasText := (*received)["text"]; hasText {
		t.Fatal("Discord payload should not have 'text' field")
	}
}

func TestSend_WebhookError(t *testing.T) {
	s := NewSender("http://localhost:1/bogus", "TestBot", zap.NewNop())
	s.retry.MaxAttempts = 1
	// must not panic
	s.Send(context.Background(), "this will fail gracefully")
}

func TestDefaultBotName(t *testing.T) {
	s := NewSender("", "", zap.NewNop())
	if s.botName != "Watchtower" {
		t.Fatalf("expected default bot name, got %s", s.botName)
	}
}

func TestNewReportMessage(t *testing.T) {
	path := "reports/job_1.csv"
	msg := NewReportMessage(
		&models.Job{ID: "1", StoragePath: &path},
		report.Summary{TotalMarkets: 12, AvgEdge: 0.153, HighConfidence: 4, StrongBuys: 2},
	)
	want := "New report reports/job_1.csv: 12 markets, avg edge 15.3%, 4 high confidence, 2 strong buys"
	if msg != want {
		t.Fatalf("got %q, want %q", msg, want)
	}
}

func TestNotifyJobFinished(t *testing.T) {
	srv, received := capture(t)
	s := NewSender(srv.URL, "", zap.NewNop())

	s.NotifyJobFinished(context.Background(), "abc", errors.New("ssh timeout"))
	if !strings.Contains((*received)["text"], "abc failed: ssh timeout") {
		t.Fatalf("unexpected failure text %q", (*received)["text"])
	}

	s.NotifyJobFinished(context.Background(), "abc", nil)
	if !strings.Contains((*received)["text"], "abc completed") {
		t.Fatalf("unexpected success text %q", (*received)["text"])
	}
}
