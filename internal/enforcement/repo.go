package enforcement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository covers the reads and batch deletes the downgrade trim needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListInventoryByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error)
	DeleteInventoryByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
	ListStagedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.StagedItem, error)
	DeleteStagedByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an enforcement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) ListInventoryByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteInventoryByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND id IN ?", ownerID, ids).
		Delete(&models.InventoryItem{})
	return result.RowsAffected, result.Error
}

// ListStagedByOwner returns only rows still in the staged state; released and
// converted rows no longer count against the quota.
func (r *repository) ListStagedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.StagedItem, error) {
	var items []models.StagedItem
	if err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND status = ?", ownerID, enums.StagedItemStatusStaged).
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repository) DeleteStagedByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND id IN ?", ownerID, ids).
		Delete(&models.StagedItem{})
	return result.RowsAffected, result.Error
}
