package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/internal/enforcement"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

type stubSessionRepo struct {
	cutoff time.Time
	ended  int64
}

func (s *stubSessionRepo) EndSessionsCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.ended, nil
}

func TestSessionSweepUsesMaxAgeCutoff(t *testing.T) {
	repo := &stubSessionRepo{ended: 3}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	job, err := NewSessionSweepJob(SessionSweepJobParams{
		Logger:   testLogger(),
		Sessions: repo,
		MaxAge:   6 * time.Hour,
		Now:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := now.Add(-6 * time.Hour)
	if !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
}

type stubOutboxRepo struct {
	cutoff  time.Time
	deleted int64
}

func (s *stubOutboxRepo) DeleteOlderThan(cutoff time.Time) (int64, error) {
	s.cutoff = cutoff
	return s.deleted, nil
}

func TestOutboxRetentionUsesRetentionWindow(t *testing.T) {
	repo := &stubOutboxRepo{deleted: 12}
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:    testLogger(),
		Outbox:    repo,
		Retention: 48 * time.Hour,
		Now:       func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	want := now.Add(-48 * time.Hour)
	if !repo.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s, got %s", want, repo.cutoff)
	}
}

type stubCappedLister struct {
	subs []models.Subscription
}

func (s *stubCappedLister) ListCapped(ctx context.Context, limit int) ([]models.Subscription, error) {
	return s.subs, nil
}

type stubLimitSource struct {
	freeLimit int
}

func (s *stubLimitSource) LimitForState(ctx context.Context, state plans.State) (*int, error) {
	return plans.LimitFor(state.Tier, state.Paused, s.freeLimit, nil), nil
}

type reconcileEnforcer struct {
	calls map[uuid.UUID]int
}

func (r *reconcileEnforcer) Enforce(ctx context.Context, userID uuid.UUID, limit int, triggeredByWebhook bool) (*enforcement.Result, error) {
	if r.calls == nil {
		r.calls = make(map[uuid.UUID]int)
	}
	r.calls[userID] = limit
	return &enforcement.Result{}, nil
}

func TestDowngradeReconcileEnforcesCappedVendors(t *testing.T) {
	pausedUser := uuid.New()
	canceledUser := uuid.New()
	lister := &stubCappedLister{subs: []models.Subscription{
		{ID: uuid.New(), UserID: pausedUser, PlanTier: enums.PlanTierPro, Status: enums.SubscriptionStatusActive, Paused: true},
		{ID: uuid.New(), UserID: canceledUser, PlanTier: enums.PlanTierPro, Status: enums.SubscriptionStatusCanceled},
	}}
	enforcer := &reconcileEnforcer{}
	job, err := NewDowngradeReconcileJob(DowngradeReconcileJobParams{
		Logger:        testLogger(),
		Subscriptions: lister,
		Plans:         &stubLimitSource{freeLimit: 5},
		Enforcer:      enforcer,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(enforcer.calls) != 2 {
		t.Fatalf("expected 2 enforcements, got %d", len(enforcer.calls))
	}
	if enforcer.calls[pausedUser] != 5 || enforcer.calls[canceledUser] != 5 {
		t.Fatalf("expected free cap enforced, got %v", enforcer.calls)
	}
}
