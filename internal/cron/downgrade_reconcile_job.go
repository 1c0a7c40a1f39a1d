package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/mdelarosa/tallypos-backend/internal/enforcement"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
)

const defaultReconcileLimit = 250

type cappedSubscriptionLister interface {
	ListCapped(ctx context.Context, limit int) ([]models.Subscription, error)
}

type planLimitSource interface {
	LimitForState(ctx context.Context, state plans.State) (*int, error)
}

type downgradeEnforcer interface {
	Enforce(ctx context.Context, userID uuid.UUID, limit int, triggeredByWebhook bool) (*enforcement.Result, error)
}

// DowngradeReconcileJobParams configures the downgrade reconcile cron job.
type DowngradeReconcileJobParams struct {
	Logger        *logger.Logger
	Subscriptions cappedSubscriptionLister
	Plans         planLimitSource
	Enforcer      downgradeEnforcer
	Limit         int
	Now           func() time.Time
}

// NewDowngradeReconcileJob builds the safety net behind webhook-driven
// enforcement: any vendor whose snapshot says capped but whose data still
// exceeds the cap gets trimmed on the next cycle.
func NewDowngradeReconcileJob(params DowngradeReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscriptions repository required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan limit source required")
	}
	if params.Enforcer == nil {
		return nil, fmt.Errorf("enforcer required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &downgradeReconcileJob{
		logg:     params.Logger,
		subs:     params.Subscriptions,
		plans:    params.Plans,
		enforcer: params.Enforcer,
		limit:    limit,
	}, nil
}

type downgradeReconcileJob struct {
	logg     *logger.Logger
	subs     cappedSubscriptionLister
	plans    planLimitSource
	enforcer downgradeEnforcer
	limit    int
}

func (j *downgradeReconcileJob) Name() string { return "downgrade-reconcile" }

func (j *downgradeReconcileJob) Run(ctx context.Context) error {
	snapshot, err := j.subs.ListCapped(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("list capped subscriptions: %w", err)
	}

	var errs error
	enforced := 0
	for i := range snapshot {
		if err := j.reconcile(ctx, &snapshot[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		enforced++
	}
	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(snapshot),
		"enforced":   enforced,
	})
	j.logg.Info(reportCtx, "downgrade reconcile loop complete")
	return errs
}

func (j *downgradeReconcileJob) reconcile(ctx context.Context, sub *models.Subscription) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
	})

	tier := sub.PlanTier
	if !sub.Status.CountsAsEntitled() {
		tier = enums.PlanTierFree
	}
	limit, err := j.plans.LimitForState(logCtx, plans.State{Tier: tier, Paused: sub.Paused})
	if err != nil {
		return fmt.Errorf("resolve limit for %s: %w", sub.UserID, err)
	}
	if limit == nil {
		// Snapshot matched the capped filter but the effective state is
		// uncapped; nothing to trim.
		return nil
	}
	result, err := j.enforcer.Enforce(logCtx, sub.UserID, *limit, false)
	if err != nil {
		return fmt.Errorf("enforce limit for %s: %w", sub.UserID, err)
	}
	if result.RemovedInventory > 0 || result.RemovedStaged > 0 {
		trimCtx := j.logg.WithFields(logCtx, map[string]any{
			"removed_items":  result.RemovedInventory,
			"removed_staged": result.RemovedStaged,
		})
		j.logg.Info(trimCtx, "vendor trimmed to plan cap")
	}
	return nil
}
