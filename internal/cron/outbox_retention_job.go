package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

const defaultOutboxRetention = 14 * 24 * time.Hour

type outboxRetentionRepo interface {
	DeleteOlderThan(cutoff time.Time) (int64, error)
}

// OutboxRetentionJobParams configures the outbox cleanup job.
type OutboxRetentionJobParams struct {
	Logger    *logger.Logger
	Outbox    outboxRetentionRepo
	Retention time.Duration
	Now       func() time.Time
}

// NewOutboxRetentionJob drops published outbox rows past the retention
// window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultOutboxRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		outbox:    params.Outbox,
		retention: retention,
		now:       now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	outbox    outboxRetentionRepo
	retention time.Duration
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.outbox.DeleteOlderThan(cutoff)
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "outbox retention cleanup complete")
	return nil
}
