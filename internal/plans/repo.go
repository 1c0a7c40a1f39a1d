package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository reads the billing rows that drive plan resolution.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
	FindBillingPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error)
	FindBillingPlanByID(ctx context.Context, id string) (*models.BillingPlan, error)
	FindDefaultBillingPlan(ctx context.Context) (*models.BillingPlan, error)
	ListBillingPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error)
}

// ListBillingPlansQuery configures billing plan list queries.
type ListBillingPlansQuery struct {
	Status    *enums.PlanStatus
	IsDefault *bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a plans repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindLatestSubscriptionByUser(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&sub).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

func (r *repository) FindBillingPlanByTier(ctx context.Context, tier enums.PlanTier) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("tier = ? AND status = ?", tier, enums.PlanStatusActive).
		Order("updated_at DESC").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindBillingPlanByID(ctx context.Context, id string) (*models.BillingPlan, error) {
	if id == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) FindDefaultBillingPlan(ctx context.Context) (*models.BillingPlan, error) {
	var plan models.BillingPlan
	if err := r.db.WithContext(ctx).
		Where("is_default = true").
		Order("updated_at DESC").
		First(&plan).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) ListBillingPlans(ctx context.Context, params ListBillingPlansQuery) ([]models.BillingPlan, error) {
	query := r.db.WithContext(ctx).Model(&models.BillingPlan{})
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.IsDefault != nil {
		query = query.Where("is_default = ?", *params.IsDefault)
	}

	var plans []models.BillingPlan
	if err := query.Order("is_default DESC, name ASC").Find(&plans).Error; err != nil {
		return nil, err
	}
	return plans, nil
}
