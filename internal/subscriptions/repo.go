package subscriptions

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository exposes persistence for subscription snapshots and plan lookups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Save(ctx context.Context, sub *models.Subscription) error
	FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error)
	FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	ListCapped(ctx context.Context, limit int) ([]models.Subscription, error)
	FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error)
	FindPlanByPriceID(ctx context.Context, priceID string) (*models.BillingPlan, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Save(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByStripeID(ctx context.Context, stripeID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		First(&sub, "stripe_subscription_id = ?", stripeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListCapped returns snapshots whose effective plan no longer grants an
// uncapped quota: paused collection, a lapsed status, or the free tier.
func (r *repository) ListCapped(ctx context.Context, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where(
			"paused = ? OR plan_tier = ? OR status NOT IN ?",
			true,
			enums.PlanTierFree,
			[]enums.SubscriptionStatus{
				enums.SubscriptionStatusActive,
				enums.SubscriptionStatusTrialing,
				enums.SubscriptionStatusPastDue,
			},
		).
		Order("updated_at DESC").
		Limit(limit).
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) FindPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	err := r.db.WithContext(ctx).
		Where("tier = ? AND status = ?", tier, enums.PlanStatusActive).
		Order("updated_at DESC").
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindPlanByPriceID(ctx context.Context, priceID string) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	err := r.db.WithContext(ctx).
		Where("stripe_price_id = ?", priceID).
		First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
