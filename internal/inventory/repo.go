package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

// Repository exposes persistence operations for live inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error)
	Save(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.InventoryItem, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error)
	ListLowStockByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	AdjustQuantity(ctx context.Context, ownerID, id uuid.UUID, delta int) (int64, error)
	SetImageKey(ctx context.Context, ownerID, id uuid.UUID, key string) error
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

func (r *repository) Create(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) Save(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// Delete removes the item only when it belongs to the owner. Returns the
// number of rows removed so callers can distinguish missing from deleted.
func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND id = ?", ownerID, id).
		Delete(&models.InventoryItem{})
	return result.RowsAffected, result.Error
}

func (r *repository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := r.db.WithContext(ctx).
		First(&item, "owner_user_id = ? AND id = ?", ownerID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error) {
	var rows []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("updated_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListLowStockByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error) {
	var rows []models.InventoryItem
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND low_stock_threshold > 0 AND quantity <= low_stock_threshold", ownerID).
		Order("quantity ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

// AdjustQuantity applies a signed delta guarded against going negative. A
// zero row count means the item is missing or the decrement would underflow.
func (r *repository) AdjustQuantity(ctx context.Context, ownerID, id uuid.UUID, delta int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ? AND id = ? AND quantity + ? >= 0", ownerID, id, delta).
		Update("quantity", gorm.Expr("quantity + ?", delta))
	return result.RowsAffected, result.Error
}

func (r *repository) SetImageKey(ctx context.Context, ownerID, id uuid.UUID, key string) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ? AND id = ?", ownerID, id).
		Update("image_key", key).Error
}
