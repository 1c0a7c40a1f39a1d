package events

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Repository exposes persistence operations for market events.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error)
	Save(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.MarketEvent, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.MarketEvent, error)
	CountStagedByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
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

func (r *repository) Create(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error) {
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) Save(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error) {
	if err := r.db.WithContext(ctx).Save(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

func (r *repository) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("owner_user_id = ? AND id = ?", ownerID, id).
		Delete(&models.MarketEvent{})
	return result.RowsAffected, result.Error
}

func (r *repository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.MarketEvent, error) {
	var event models.MarketEvent
	err := r.db.WithContext(ctx).
		First(&event, "owner_user_id = ? AND id = ?", ownerID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &event, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.MarketEvent, error) {
	var rows []models.MarketEvent
	err := r.db.WithContext(ctx).
		Where("owner_user_id = ?", ownerID).
		Order("starts_at DESC NULLS LAST, created_at DESC").
		Find(&rows).Error
	return rows, err
}

// CountStagedByEvent counts rows still in the staged state. Released and
// converted rows don't block event deletion.
func (r *repository) CountStagedByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.StagedItem{}).
		Where("event_id = ? AND status = ?", eventID, enums.StagedItemStatusStaged).
		Count(&count).Error
	return count, err
}
