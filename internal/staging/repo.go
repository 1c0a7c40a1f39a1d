package staging

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository exposes persistence operations for staged inventory rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error)
	Save(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.StagedItem, error)
	ListByEvent(ctx context.Context, ownerID, eventID uuid.UUID) ([]models.StagedItem, error)
	FindEvent(ctx context.Context, ownerID, eventID uuid.UUID) (*models.MarketEvent, error)
	CountStagedByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	CountInventoryByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)
	CreateInventoryItem(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error)
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

func (r *repository) Create(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) Save(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error) {
	if err := r.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND id = ?", ownerID, id).
		Delete(&models.StagedItem{})
	return result.RowsAffected, result.Error
}

func (r *repository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.StagedItem, error) {
	var item models.StagedItem
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

func (r *repository) ListByEvent(ctx context.Context, ownerID, eventID uuid.UUID) ([]models.StagedItem, error) {
	var rows []models.StagedItem
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND event_id = ?", ownerID, eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) FindEvent(ctx context.Context, ownerID, eventID uuid.UUID) (*models.MarketEvent, error) {
	var event models.MarketEvent
	err := r.db.WithContext(ctx).
		First(&event, "owner_user_id = ? AND id = ?", ownerID, eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) CountStagedByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StagedItem{}).
		Where("owner_user_id = ? AND status = ?", ownerID, enums.StagedItemStatusStaged).
		Count(&count).Error
	return count, err
}

func (r *repository) CountInventoryByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ?", ownerID).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}
