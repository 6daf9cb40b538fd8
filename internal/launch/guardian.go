// Package launch decides whether a new pipeline run may be submitted.
package launch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/kjannette/watchtower-backend/internal/models"
)

// ErrLaunchBlocked wraps every refusal so handlers can map it to 429.
var ErrLaunchBlocked = errors.New("launch blocked")

// DailyJobCounter abstracts the job-counting dependency so Guardian
// can be tested without a real database.
type DailyJobCounter interface {
	CountToday(ctx context.Context) (int, error)
}

// Limits holds the launch thresholds from config.
// A zero value for any field means that check is disabled.
type Limits struct {
	MaxDailyJobs      int
	LaunchesPerMinute int
	MaxRunHours       int
}

type Guardian struct {
	limits  Limits
	counter DailyJobCounter
	limiter *rate.Limiter
}

func NewGuardian(limits Limits, counter DailyJobCounter) *Guardian {
	g := &Guardian{limits: limits, counter: counter}
	if limits.LaunchesPerMinute > 0 {
		every := time.Minute / time.Duration(limits.LaunchesPerMinute)
		g.limiter = rate.NewLimiter(rate.Every(every), limits.LaunchesPerMinute)
	}
	return g
}

// PreLaunchCheck returns nil if the run may start. A refusal wraps
// ErrLaunchBlocked; counter failures block too.
func (g *Guardian) PreLaunchCheck(ctx context.Context, cfg models.JobConfig) error {
	if g.limits.MaxRunHours > 0 && cfg.MaxHours > g.limits.MaxRunHours {
		return fmt.Errorf("%w: max_hours %d exceeds limit %d", ErrLaunchBlocked, cfg.MaxHours, g.limits.MaxRunHours)
	}

	if g.limits.MaxDailyJobs > 0 && g.counter != nil {
		count, err := g.counter.CountToday(ctx)
		if err != nil {
			return fmt.Errorf("%w: unable to verify daily job count: %w", ErrLaunchBlocked, err)
		}
		if count >= g.limits.MaxDailyJobs {
			return fmt.Errorf("%w: daily limit of %d jobs reached (%d started today)",
				ErrLaunchBlocked, g.limits.MaxDailyJobs, count)
		}
	}

	if g.limiter != nil && !g.limiter.Allow() {
		return fmt.Errorf("%w: more than %d launches per minute", ErrLaunchBlocked, g.limits.LaunchesPerMinute)
	}

	return nil
}
