package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

const defaultSessionMaxAge = 24 * time.Hour

type sessionSweepRepo interface {
	EndSessionsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// SessionSweepJobParams configures the share-session sweep.
type SessionSweepJobParams struct {
	Logger   *logger.Logger
	Sessions sessionSweepRepo
	MaxAge   time.Duration
	Now      func() time.Time
}

// NewSessionSweepJob ends share sessions that outlived the maximum age.
// Hosts that forget to end a market-day session stop leaking access to
// their inventory after this runs.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("sessions repository required")
	}
	maxAge := params.MaxAge
	if maxAge <= 0 {
		maxAge = defaultSessionMaxAge
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &sessionSweepJob{
		logg:     params.Logger,
		sessions: params.Sessions,
		maxAge:   maxAge,
		now:      now,
	}, nil
}

type sessionSweepJob struct {
	logg     *logger.Logger
	sessions sessionSweepRepo
	maxAge   time.Duration
	now      func() time.Time
}

func (j *sessionSweepJob) Name() string { return "session-sweep" }

func (j *sessionSweepJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.maxAge)
	ended, err := j.sessions.EndSessionsCreatedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("end stale sessions: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"sessions_ended": ended,
	})
	j.logg.Info(logCtx, "session sweep complete")
	return nil
}
