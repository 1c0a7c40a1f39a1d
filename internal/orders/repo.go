package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/pagination"
)

// Repository exposes persistence operations for orders and their stock effects.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Order, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID, eventID *uuid.UUID, page pagination.Params) ([]models.Order, error)
	MarkVoided(ctx context.Context, ownerID, id uuid.UUID) (int64, error)
	DecrementStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) (int64, error)
	RestoreStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) error
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

// Create inserts the order together with its line items.
func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems").
		First(&order, "owner_user_id = ? AND id = ?", ownerID, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

// ListByOwner pages newest-first. The caller passes a limit already padded
// with the extra detection row; rows past the cursor tuple are excluded.
func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID, eventID *uuid.UUID, page pagination.Params) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Preload("LineItems").
		Where("owner_user_id = ?", ownerID)
	if eventID != nil {
		query = query.Where("event_id = ?", *eventID)
	}
	cursor, err := pagination.ParseCursor(page.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}
	var rows []models.Order
	err = query.
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(page.Limit)).
		Find(&rows).Error
	return rows, err
}

// MarkVoided flips a completed order to voided. A zero row count means the
// order is missing or not in the completed state.
func (r *repository) MarkVoided(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("owner_user_id = ? AND id = ? AND status = ?", ownerID, id, enums.OrderStatusCompleted).
		Update("status", enums.OrderStatusVoided)
	return result.RowsAffected, result.Error
}

// DecrementStock takes qty units off the item, refusing to underflow. A zero
// row count means the item is missing or has insufficient stock.
func (r *repository) DecrementStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ? AND id = ? AND quantity >= ?", ownerID, itemID, qty).
		Update("quantity", gorm.Expr("quantity - ?", qty))
	return result.RowsAffected, result.Error
}

// RestoreStock puts qty units back after a void. Missing items are skipped;
// the item may have been deleted since the sale.
func (r *repository) RestoreStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).
		Model(&models.InventoryItem{}).
		Where("owner_user_id = ? AND id = ?", ownerID, itemID).
		Update("quantity", gorm.Expr("quantity + ?", qty)).Error
}
