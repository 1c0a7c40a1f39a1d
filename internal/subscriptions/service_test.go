package subscriptions

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/enforcement"
	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
)

func TestSyncFromStripeCreatesSnapshot(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()
	stripeSub := stripeSubFixture("sub_new", stripe.SubscriptionStatusActive, "price_pro", userID)

	snapshot, err := fx.svc.SyncFromStripe(context.Background(), stripeSub, true)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if snapshot.PlanTier != enums.PlanTierPro {
		t.Fatalf("expected pro tier, got %s", snapshot.PlanTier)
	}
	if snapshot.UserID != userID {
		t.Fatalf("expected user %s, got %s", userID, snapshot.UserID)
	}
	if got := fx.outbox.eventTypes(); len(got) != 1 || got[0] != enums.EventSubscriptionUpdated {
		t.Fatalf("expected subscription event, got %v", got)
	}
	if len(fx.plans.invalidated) != 1 || fx.plans.invalidated[0] != userID {
		t.Fatalf("expected cache invalidation for %s, got %v", userID, fx.plans.invalidated)
	}
	if len(fx.enforcer.calls) != 0 {
		t.Fatalf("entitled paid plan must not trigger enforcement, got %v", fx.enforcer.calls)
	}
}

func TestSyncFromStripeUpdatesExistingSnapshot(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()

	first := stripeSubFixture("sub_123", stripe.SubscriptionStatusActive, "price_pro", userID)
	if _, err := fx.svc.SyncFromStripe(context.Background(), first, true); err != nil {
		t.Fatalf("first sync: %v", err)
	}

	// Later events often arrive without metadata; the stored row supplies the user.
	second := stripeSubFixture("sub_123", stripe.SubscriptionStatusPastDue, "price_pro", userID)
	second.Metadata = nil
	snapshot, err := fx.svc.SyncFromStripe(context.Background(), second, true)
	if err != nil {
		t.Fatalf("second sync: %v", err)
	}
	if snapshot.UserID != userID {
		t.Fatalf("expected user carried over, got %s", snapshot.UserID)
	}
	if snapshot.Status != enums.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due, got %s", snapshot.Status)
	}
	if len(fx.repo.subs) != 1 {
		t.Fatalf("expected single snapshot row, got %d", len(fx.repo.subs))
	}
	if len(fx.enforcer.calls) != 0 {
		t.Fatal("past_due keeps entitlement and must not trigger enforcement")
	}
}

func TestSyncPausedSubscriptionEnforcesFreeLimit(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()
	stripeSub := stripeSubFixture("sub_paused", stripe.SubscriptionStatusActive, "price_pro", userID)
	stripeSub.PauseCollection = &stripe.SubscriptionPauseCollection{
		Behavior: stripe.SubscriptionPauseCollectionBehaviorVoid,
	}

	if _, err := fx.svc.SyncFromStripe(context.Background(), stripeSub, true); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(fx.enforcer.calls) != 1 {
		t.Fatalf("expected one enforcement call, got %d", len(fx.enforcer.calls))
	}
	call := fx.enforcer.calls[0]
	if call.userID != userID || call.limit != 5 || !call.webhook {
		t.Fatalf("unexpected enforcement call %+v", call)
	}
}

func TestSyncCanceledSubscriptionDowngrades(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()
	stripeSub := stripeSubFixture("sub_gone", stripe.SubscriptionStatusCanceled, "price_pro", userID)

	snapshot, err := fx.svc.SyncFromStripe(context.Background(), stripeSub, true)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if snapshot.PlanTier != enums.PlanTierPro {
		t.Fatalf("snapshot keeps the priced tier, got %s", snapshot.PlanTier)
	}
	if len(fx.enforcer.calls) != 1 || fx.enforcer.calls[0].limit != 5 {
		t.Fatalf("canceled subscription must enforce the free cap, got %v", fx.enforcer.calls)
	}
}

func TestSyncUnknownPriceFallsBackToFree(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()
	stripeSub := stripeSubFixture("sub_odd", stripe.SubscriptionStatusActive, "price_unknown", userID)

	snapshot, err := fx.svc.SyncFromStripe(context.Background(), stripeSub, false)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if snapshot.PlanTier != enums.PlanTierFree {
		t.Fatalf("expected free fallback, got %s", snapshot.PlanTier)
	}
	if len(fx.enforcer.calls) != 1 || fx.enforcer.calls[0].webhook {
		t.Fatalf("expected non-webhook enforcement, got %v", fx.enforcer.calls)
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()

	dto, err := fx.svc.CreateCheckoutSession(context.Background(), userID, enums.PlanTierPro)
	if err != nil {
		t.Fatalf("create checkout: %v", err)
	}
	if dto.SessionID != "cs_test" || dto.URL == "" {
		t.Fatalf("unexpected checkout dto %+v", dto)
	}
	if fx.stripe.checkoutParams == nil {
		t.Fatal("expected checkout params captured")
	}
	meta := fx.stripe.checkoutParams.SubscriptionData.Metadata
	if meta["user_id"] != userID.String() {
		t.Fatalf("expected user metadata, got %v", meta)
	}

	_, err = fx.svc.CreateCheckoutSession(context.Background(), userID, enums.PlanTierFree)
	assertSubscriptionsCode(t, err, pkgerrors.CodeValidation)

	_, err = fx.svc.CreateCheckoutSession(context.Background(), userID, enums.PlanTierEnterprise)
	assertSubscriptionsCode(t, err, pkgerrors.CodeNotFound)
}

func TestPauseSyncsSnapshot(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	userID := uuid.New()
	seed := stripeSubFixture("sub_123", stripe.SubscriptionStatusActive, "price_pro", userID)
	if _, err := fx.svc.SyncFromStripe(context.Background(), seed, true); err != nil {
		t.Fatalf("seed sync: %v", err)
	}

	paused := stripeSubFixture("sub_123", stripe.SubscriptionStatusActive, "price_pro", userID)
	paused.PauseCollection = &stripe.SubscriptionPauseCollection{
		Behavior: stripe.SubscriptionPauseCollectionBehaviorVoid,
	}
	fx.stripe.pauseResult = paused

	dto, err := fx.svc.Pause(context.Background(), userID)
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if !dto.Paused {
		t.Fatal("expected paused snapshot")
	}
	if len(fx.enforcer.calls) != 1 || fx.enforcer.calls[0].webhook {
		t.Fatalf("pause must enforce in-band, got %v", fx.enforcer.calls)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	fx := newSubscriptionsFixture(t)
	_, err := fx.svc.GetSubscription(context.Background(), uuid.New())
	assertSubscriptionsCode(t, err, pkgerrors.CodeNotFound)
}

type subscriptionsFixture struct {
	svc      Service
	repo     *memSubscriptionRepo
	stripe   *stubBillingClient
	outbox   *stubOutbox
	plans    *stubPlanCache
	enforcer *stubEnforcer
}

func newSubscriptionsFixture(t *testing.T) *subscriptionsFixture {
	t.Helper()
	price := "price_pro"
	repo := newMemSubscriptionRepo()
	repo.plans = append(repo.plans, &models.BillingPlan{
		ID:            "plan-pro",
		Name:          "Pro",
		Tier:          enums.PlanTierPro,
		Status:        enums.PlanStatusActive,
		StripePriceID: &price,
	})
	sink := &stubOutbox{}
	billing := &stubBillingClient{}
	cache := &stubPlanCache{freeLimit: 5}
	enforcer := &stubEnforcer{}
	svc, err := NewService(ServiceParams{
		Repo:     repo,
		Stripe:   billing,
		Tx:       stubTxRunner{},
		Outbox:   sink,
		Plans:    cache,
		Enforcer: enforcer,
		Config:   config.StripeConfig{SuccessURL: "https://pos.test/ok", CancelURL: "https://pos.test/no"},
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &subscriptionsFixture{svc: svc, repo: repo, stripe: billing, outbox: sink, plans: cache, enforcer: enforcer}
}

func assertSubscriptionsCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type memSubscriptionRepo struct {
	subs  map[string]*models.Subscription
	plans []*models.BillingPlan
}

func newMemSubscriptionRepo() *memSubscriptionRepo {
	return &memSubscriptionRepo{subs: make(map[string]*models.Subscription)}
}

func (m *memSubscriptionRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memSubscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	sub.ID = uuid.New()
	m.subs[sub.StripeSubscriptionID] = sub
	return nil
}

func (m *memSubscriptionRepo) Save(ctx context.Context, sub *models.Subscription) error {
	m.subs[sub.StripeSubscriptionID] = sub
	return nil
}

func (m *memSubscriptionRepo) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	return m.subs[stripeID], nil
}

func (m *memSubscriptionRepo) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	for _, sub := range m.subs {
		if sub.UserID == userID {
			return sub, nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionRepo) ListCapped(ctx context.Context, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	for _, sub := range m.subs {
		if sub.Paused || sub.PlanTier == enums.PlanTierFree || !sub.Status.CountsAsEntitled() {
			rows = append(rows, *sub)
		}
	}
	return rows, nil
}

func (m *memSubscriptionRepo) FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	for _, plan := range m.plans {
		if plan.Tier == tier && plan.Status == enums.PlanStatusActive {
			return plan, nil
		}
	}
	return nil, nil
}

func (m *memSubscriptionRepo) FindPlanByPriceID(ctx context.Context, priceID string) (*models.BillingPlan, error) {
	for _, plan := range m.plans {
		if plan.StripePriceID != nil && *plan.StripePriceID == priceID {
			return plan, nil
		}
	}
	return nil, nil
}

type stubBillingClient struct {
	checkoutParams *stripe.CheckoutSessionParams
	pauseResult    *stripe.Subscription
	resumeResult   *stripe.Subscription
}

func (s *stubBillingClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	s.checkoutParams = params
	return &stripe.CheckoutSession{ID: "cs_test", URL: "https://checkout.stripe.test/cs_test"}, nil
}

func (s *stubBillingClient) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	return &stripe.Subscription{ID: id}, nil
}

func (s *stubBillingClient) Pause(ctx context.Context, id string) (*stripe.Subscription, error) {
	return s.pauseResult, nil
}

func (s *stubBillingClient) Resume(ctx context.Context, id string) (*stripe.Subscription, error) {
	return s.resumeResult, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) eventTypes() []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.EventType)
	}
	return types
}

type stubPlanCache struct {
	freeLimit   int
	invalidated []uuid.UUID
}

func (s *stubPlanCache) Invalidate(ctx context.Context, userID uuid.UUID) error {
	s.invalidated = append(s.invalidated, userID)
	return nil
}

func (s *stubPlanCache) LimitForState(ctx context.Context, state plans.State) (*int, error) {
	return plans.LimitFor(state.Tier, state.Paused, s.freeLimit, nil), nil
}

type enforceCall struct {
	userID  uuid.UUID
	limit   int
	webhook bool
}

type stubEnforcer struct {
	calls []enforceCall
}

func (s *stubEnforcer) Enforce(ctx context.Context, userID uuid.UUID, limit int, triggeredByWebhook bool) (*enforcement.Result, error) {
	s.calls = append(s.calls, enforceCall{userID: userID, limit: limit, webhook: triggeredByWebhook})
	return &enforcement.Result{}, nil
}
