package config

import (
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap/zapcore"
)

type Config struct {
	// Secrets (from .env)
	WebhookURL      string `envconfig:"WEBHOOK_URL"`
	BotName         string `envconfig:"BOT_NAME" default:"Watchtower"`
	APIKey          string `envconfig:"API_KEY"`
	CORSAllowOrigin string `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`

	// Database
	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBName     string `envconfig:"DB_NAME" default:"watchtower"`
	DBUser     string `envconfig:"DB_USER"`
	DBPassword string `envconfig:"DB_PASSWORD"`

	// Upstream services
	PipelineAPIURL string `envconfig:"PIPELINE_API_URL" default:"http://localhost:8000"`
	StorageBaseURL string `envconfig:"STORAGE_BASE_URL"`

	// Polling
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"5s"`
	JobPollEvery time.Duration `envconfig:"JOB_POLL_INTERVAL" default:"5s"`

	// Launch limits
	MaxDailyJobs      int `envconfig:"MAX_DAILY_JOBS" default:"10"`
	LaunchesPerMinute int `envconfig:"LAUNCHES_PER_MINUTE" default:"2"`
	MaxRunHours       int `envconfig:"MAX_RUN_HOURS" default:"0"`

	// Server
	APIPort  int    `envconfig:"API_PORT" default:"3001"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// Load reads .env (if present) and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.StorageBaseURL == "" {
		errs = append(errs, "STORAGE_BASE_URL is required")
	} else if !validURL(c.StorageBaseURL) {
		errs = append(errs, fmt.Sprintf("STORAGE_BASE_URL %q is not an http(s) URL", c.StorageBaseURL))
	}
	if c.PipelineAPIURL != "" && !validURL(c.PipelineAPIURL) {
		errs = append(errs, fmt.Sprintf("PIPELINE_API_URL %q is not an http(s) URL", c.PipelineAPIURL))
	}
	if c.DBName == "" {
		errs = append(errs, "DB_NAME is required")
	}
	if c.PollInterval < time.Second {
		errs = append(errs, fmt.Sprintf("POLL_INTERVAL must be at least 1s, got %s", c.PollInterval))
	}
	if c.JobPollEvery < time.Second {
		errs = append(errs, fmt.Sprintf("JOB_POLL_INTERVAL must be at least 1s, got %s", c.JobPollEvery))
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		errs = append(errs, fmt.Sprintf("API_PORT %d out of range", c.APIPort))
	}
	if c.MaxDailyJobs < 0 || c.LaunchesPerMinute < 0 || c.MaxRunHours < 0 {
		errs = append(errs, "launch limits must not be negative")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL %q is not a valid level", c.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

// Warnings lists settings that are valid but probably unintended.
func (c *Config) Warnings() []string {
	var w []string
	if c.APIKey == "" {
		w = append(w, "API_KEY not set, REST API has no authentication")
	}
	if c.PipelineAPIURL == "" {
		w = append(w, "PIPELINE_API_URL not set, job launch is disabled")
	}
	if c.MaxDailyJobs == 0 && c.LaunchesPerMinute == 0 {
		w = append(w, "MAX_DAILY_JOBS and LAUNCHES_PER_MINUTE are both 0, no launch limits active")
	}
	return w
}

func (c *Config) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Watchtower Backend Configuration ===")
	fmt.Fprintf(w, "Database: %s@%s:%d/%s\n", c.DBUser, c.DBHost, c.DBPort, c.DBName)
	fmt.Fprintf(w, "Storage: %s\n", c.StorageBaseURL)
	fmt.Fprintf(w, "Pipeline API: %s\n", boolLabel(c.PipelineAPIURL != "", c.PipelineAPIURL, "not set"))
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "Poll interval: %s\n", c.PollInterval)
	fmt.Fprintf(w, "Job status interval: %s\n", c.JobPollEvery)
	fmt.Fprintf(w, "Max daily jobs: %s\n", limitLabel(c.MaxDailyJobs))
	fmt.Fprintf(w, "Launches/minute: %s\n", limitLabel(c.LaunchesPerMinute))
	fmt.Fprintf(w, "Max run hours: %s\n", limitLabel(c.MaxRunHours))
	fmt.Fprintln(w, "--------------------------------------")
	fmt.Fprintf(w, "API port: %d\n", c.APIPort)
	fmt.Fprintf(w, "Auth: %s\n", boolLabel(c.APIKey != "", "bearer token", "disabled"))
	fmt.Fprintf(w, "Webhook: %s\n", boolLabel(c.WebhookURL != "", "configured", "not set"))
	fmt.Fprintf(w, "Log level: %s\n", c.LogLevel)
	fmt.Fprintln(w, "======================================")
}

func (c *Config) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// --- helpers ---

func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func limitLabel(n int) string {
	if n == 0 {
		return "unlimited"
	}
	return fmt.Sprint(n)
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
