package plans

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

type fakeRepo struct {
	sub      *models.Subscription
	plan     *models.BillingPlan
	subCalls int
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) FindLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	f.subCalls++
	return f.sub, nil
}

func (f *fakeRepo) FindBillingPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	return f.plan, nil
}

func (f *fakeRepo) FindBillingPlanByID(ctx context.Context, id string) (*models.BillingPlan, error) {
	return f.plan, nil
}

func (f *fakeRepo) FindDefaultBillingPlan(ctx context.Context) (*models.BillingPlan, error) {
	return f.plan, nil
}

func (f *fakeRepo) ListBillingPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error) {
	if f.plan == nil {
		return nil, nil
	}
	return []models.BillingPlan{*f.plan}, nil
}

type fakeCache struct {
	entries map[string]State
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]State)}
}

func (f *fakeCache) Get(ctx context.Context, userID string) (*State, error) {
	state, ok := f.entries[userID]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

func (f *fakeCache) Set(ctx context.Context, userID string, state State) error {
	f.entries[userID] = state
	return nil
}

func (f *fakeCache) Invalidate(ctx context.Context, userID string) error {
	delete(f.entries, userID)
	return nil
}

func newTestService(t *testing.T, repo Repository, cache Cache) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Cache:  cache,
		Config: config.PlansConfig{FreeTierItemLimit: 5},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestStateForNoSubscriptionResolvesFree(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeRepo{}, newFakeCache())

	state, err := svc.StateFor(ctx, uuid.New())
	if err != nil {
		t.Fatalf("state for: %v", err)
	}
	if state.Tier != enums.PlanTierFree || state.Paused {
		t.Fatalf("expected free/unpaused, got %+v", state)
	}
}

func TestStateForEntitledSubscription(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := &fakeRepo{sub: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierPro,
		Status:   enums.SubscriptionStatusActive,
	}}
	svc := newTestService(t, repo, newFakeCache())

	state, err := svc.StateFor(ctx, userID)
	if err != nil {
		t.Fatalf("state for: %v", err)
	}
	if state.Tier != enums.PlanTierPro || state.Paused {
		t.Fatalf("expected pro/unpaused, got %+v", state)
	}
}

func TestStateForPausedSubscription(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := &fakeRepo{sub: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierPro,
		Status:   enums.SubscriptionStatusActive,
		Paused:   true,
	}}
	svc := newTestService(t, repo, newFakeCache())

	state, err := svc.StateFor(ctx, userID)
	if err != nil {
		t.Fatalf("state for: %v", err)
	}
	if !state.Paused {
		t.Fatal("expected paused state")
	}

	limit, err := svc.LimitForState(ctx, state)
	if err != nil {
		t.Fatalf("limit for state: %v", err)
	}
	if limit == nil || *limit != 5 {
		t.Fatalf("paused subscription should get the free cap, got %v", limit)
	}
}

func TestStateForCanceledSubscriptionResolvesFree(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := &fakeRepo{sub: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierPro,
		Status:   enums.SubscriptionStatusCanceled,
	}}
	svc := newTestService(t, repo, newFakeCache())

	state, err := svc.StateFor(ctx, userID)
	if err != nil {
		t.Fatalf("state for: %v", err)
	}
	if state.Tier != enums.PlanTierFree {
		t.Fatalf("canceled subscription should resolve free, got %s", state.Tier)
	}
}

func TestStateForUsesCacheUntilInvalidated(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := &fakeRepo{sub: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierPro,
		Status:   enums.SubscriptionStatusActive,
	}}
	cache := newFakeCache()
	svc := newTestService(t, repo, cache)

	if _, err := svc.StateFor(ctx, userID); err != nil {
		t.Fatalf("first state for: %v", err)
	}
	if _, err := svc.StateFor(ctx, userID); err != nil {
		t.Fatalf("second state for: %v", err)
	}
	if repo.subCalls != 1 {
		t.Fatalf("expected one db read, got %d", repo.subCalls)
	}

	if err := svc.Invalidate(ctx, userID); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, err := svc.StateFor(ctx, userID); err != nil {
		t.Fatalf("state for after invalidate: %v", err)
	}
	if repo.subCalls != 2 {
		t.Fatalf("expected reread after invalidate, got %d reads", repo.subCalls)
	}
}

func TestLimitForPaidTierReadsPlanRow(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	max := 500
	repo := &fakeRepo{
		sub: &models.Subscription{
			UserID:   userID,
			PlanTier: enums.PlanTierPro,
			Status:   enums.SubscriptionStatusActive,
		},
		plan: &models.BillingPlan{Tier: enums.PlanTierPro, MaxItems: &max},
	}
	svc := newTestService(t, repo, newFakeCache())

	limit, err := svc.LimitFor(ctx, userID)
	if err != nil {
		t.Fatalf("limit for: %v", err)
	}
	if limit == nil || *limit != max {
		t.Fatalf("expected plan cap %d, got %v", max, limit)
	}
}

func TestLimitForPaidTierWithoutPlanRowIsUnlimited(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	repo := &fakeRepo{sub: &models.Subscription{
		UserID:   userID,
		PlanTier: enums.PlanTierEnterprise,
		Status:   enums.SubscriptionStatusActive,
	}}
	svc := newTestService(t, repo, newFakeCache())

	limit, err := svc.LimitFor(ctx, userID)
	if err != nil {
		t.Fatalf("limit for: %v", err)
	}
	if limit != nil {
		t.Fatalf("expected unlimited, got %d", *limit)
	}
}
