package subscriptions

import (
	"context"
	"errors"

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
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// planCache invalidates and re-derives the effective plan state after a
// billing change lands.
type planCache interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
	LimitForState(ctx context.Context, state plans.State) (*int, error)
}

type limitEnforcer interface {
	Enforce(ctx context.Context, userID uuid.UUID, limit int, triggeredByWebhook bool) (*enforcement.Result, error)
}

// Service owns the Stripe subscription lifecycle: checkout handoff,
// pause/resume, and snapshot sync driven by webhooks.
type Service interface {
	CreateCheckoutSession(ctx context.Context, userID uuid.UUID, tier enums.PlanTier) (*CheckoutSessionDTO, error)
	GetSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
	Pause(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
	Resume(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error)
	SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription, triggeredByWebhook bool) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo     Repository
	Stripe   StripeBillingClient
	Tx       txRunner
	Outbox   outboxPublisher
	Plans    planCache
	Enforcer limitEnforcer
	Config   config.StripeConfig
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	stripe   StripeBillingClient
	tx       txRunner
	outbox   outboxPublisher
	plans    planCache
	enforcer limitEnforcer
	config   config.StripeConfig
	logger   *logger.Logger
}

// NewService builds the subscription service. Stripe may be nil when billing
// is not configured; checkout and pause/resume then fail with a dependency
// error while reads keep working.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	if params.Plans == nil {
		return nil, errors.New("plan cache is required")
	}
	if params.Enforcer == nil {
		return nil, errors.New("enforcer is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		repo:     params.Repo,
		stripe:   params.Stripe,
		tx:       params.Tx,
		outbox:   params.Outbox,
		plans:    params.Plans,
		enforcer: params.Enforcer,
		config:   params.Config,
		logger:   params.Logger,
	}, nil
}

// CreateCheckoutSession starts a hosted Stripe checkout for the requested
// paid tier. The vendor id travels in the subscription metadata so webhook
// sync can attribute the subscription without a customer lookup.
func (s *service) CreateCheckoutSession(ctx context.Context, userID uuid.UUID, tier enums.PlanTier) (*CheckoutSessionDTO, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	if tier == enums.PlanTierFree || !tier.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout requires a paid tier")
	}

	plan, err := s.repo.FindPlanByTier(ctx, tier)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find plan by tier")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active plan for the requested tier")
	}
	if plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "plan is missing a stripe price")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(s.config.SuccessURL),
		CancelURL:         stripe.String(s.config.CancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(*plan.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": userID.String()},
		},
	}
	checkout, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	s.logger.Info(
		s.logger.WithField(ctx, "user_id", userID.String()),
		"stripe checkout session created",
	)
	return &CheckoutSessionDTO{SessionID: checkout.ID, URL: checkout.URL}, nil
}

func (s *service) GetSubscription(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription on file")
	}
	return subscriptionToDTO(sub), nil
}

// Pause voids invoice collection on the vendor's subscription. The refreshed
// snapshot is synced immediately so free-tier limits apply without waiting
// for the webhook.
func (s *service) Pause(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.loadBillable(ctx, userID)
	if err != nil {
		return nil, err
	}
	stripeSub, err := s.stripe.Pause(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pause subscription")
	}
	updated, err := s.SyncFromStripe(ctx, stripeSub, false)
	if err != nil {
		return nil, err
	}
	return subscriptionToDTO(updated), nil
}

// Resume clears pause_collection and restores the paid-tier quota.
func (s *service) Resume(ctx context.Context, userID uuid.UUID) (*SubscriptionDTO, error) {
	sub, err := s.loadBillable(ctx, userID)
	if err != nil {
		return nil, err
	}
	stripeSub, err := s.stripe.Resume(ctx, sub.StripeSubscriptionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resume subscription")
	}
	updated, err := s.SyncFromStripe(ctx, stripeSub, false)
	if err != nil {
		return nil, err
	}
	return subscriptionToDTO(updated), nil
}

func (s *service) loadBillable(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing is not configured")
	}
	sub, err := s.repo.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no subscription on file")
	}
	return sub, nil
}

// SyncFromStripe upserts the local snapshot from Stripe's view of the
// subscription, emits the change-feed event, drops the cached plan state,
// and trims the vendor's inventory when the effective plan is capped. It is
// the single convergence point for webhooks and in-band pause/resume.
func (s *service) SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription, triggeredByWebhook bool) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	existing, err := s.repo.FindByStripeID(ctx, stripeSub.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find subscription snapshot")
	}

	userID, err := s.resolveUserID(existing, stripeSub)
	if err != nil {
		return nil, err
	}
	tier, err := s.resolveTier(ctx, stripeSub)
	if err != nil {
		return nil, err
	}

	var snapshot *models.Subscription
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if existing == nil {
			built, buildErr := BuildSubscriptionFromStripe(stripeSub, userID, tier)
			if buildErr != nil {
				return buildErr
			}
			if createErr := repo.Create(ctx, built); createErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, createErr, "create subscription snapshot")
			}
			snapshot = built
		} else {
			if updateErr := UpdateSubscriptionFromStripe(existing, stripeSub, tier); updateErr != nil {
				return updateErr
			}
			if saveErr := repo.Save(ctx, existing); saveErr != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, saveErr, "save subscription snapshot")
			}
			snapshot = existing
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSubscriptionUpdated,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   snapshot.ID,
			OwnerUserID:   userID,
			Data: payloads.SubscriptionUpdatedEvent{
				UserID:               userID,
				StripeSubscriptionID: snapshot.StripeSubscriptionID,
				PlanTier:             snapshot.PlanTier.String(),
				Status:               snapshot.Status.String(),
				Paused:               snapshot.Paused,
				CurrentPeriodEnd:     snapshot.CurrentPeriodEnd,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if err := s.plans.Invalidate(ctx, userID); err != nil {
		s.logger.Warn(
			s.logger.WithField(ctx, "error", err.Error()),
			"plan cache invalidation failed",
		)
	}

	if err := s.enforceIfCapped(ctx, snapshot, triggeredByWebhook); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) resolveUserID(existing *models.Subscription, stripeSub *stripe.Subscription) (uuid.UUID, error) {
	if existing != nil {
		return existing.UserID, nil
	}
	return UserIDFromMetadata(stripeSub.Metadata)
}

// resolveTier maps the subscription's price back to a local plan. An
// unrecognized price degrades to free rather than failing the sync.
func (s *service) resolveTier(ctx context.Context, stripeSub *stripe.Subscription) (enums.PlanTier, error) {
	priceID := determinePriceID(stripeSub)
	if priceID == "" {
		return enums.PlanTierFree, nil
	}
	plan, err := s.repo.FindPlanByPriceID(ctx, priceID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "find plan by price")
	}
	if plan == nil {
		s.logger.Warn(
			s.logger.WithField(ctx, "price_id", priceID),
			"stripe price has no local plan, treating as free",
		)
		return enums.PlanTierFree, nil
	}
	return plan.Tier, nil
}

// enforceIfCapped trims the vendor's data when the post-sync plan state
// carries an item limit. Entitled paid states resolve to a nil limit and
// skip the trim entirely.
func (s *service) enforceIfCapped(ctx context.Context, snapshot *models.Subscription, triggeredByWebhook bool) error {
	tier := snapshot.PlanTier
	if !snapshot.Status.CountsAsEntitled() {
		tier = enums.PlanTierFree
	}
	state := plans.State{Tier: tier, Paused: snapshot.Paused}
	limit, err := s.plans.LimitForState(ctx, state)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve plan limit")
	}
	if limit == nil {
		return nil
	}
	if _, err := s.enforcer.Enforce(ctx, snapshot.UserID, *limit, triggeredByWebhook); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "enforce plan limit")
	}
	return nil
}
