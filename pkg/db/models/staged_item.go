package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// StagedItem is inventory prepared for a market event but not yet counted in
// live stock. Lifecycle: staged -> released (back to untracked) or
// converted (materialized into a live InventoryItem).
type StagedItem struct {
	ID              uuid.UUID              `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID     uuid.UUID              `gorm:"column:owner_user_id;type:uuid;not null;index"`
	EventID         uuid.UUID              `gorm:"column:event_id;type:uuid;not null;index"`
	Name            string                 `gorm:"column:name;not null"`
	SKU             *string                `gorm:"column:sku"`
	Quantity        int                    `gorm:"column:quantity;not null;default:0"`
	PriceCents      int                    `gorm:"column:price_cents;not null;default:0"`
	Status          enums.StagedItemStatus `gorm:"column:status;type:staged_item_status;not null;default:'staged'"`
	ConvertedItemID *uuid.UUID             `gorm:"column:converted_item_id;type:uuid"`
	CreatedAt       time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
