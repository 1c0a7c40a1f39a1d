package models

import (
	"time"

	"github.com/google/uuid"
)

// InventoryItem is one live tracked product owned by a vendor.
type InventoryItem struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID       uuid.UUID `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name              string    `gorm:"column:name;not null"`
	SKU               *string   `gorm:"column:sku"`
	Quantity          int       `gorm:"column:quantity;not null;default:0"`
	PriceCents        int       `gorm:"column:price_cents;not null;default:0"`
	LowStockThreshold int       `gorm:"column:low_stock_threshold;not null;default:0"`
	ImageKey          *string   `gorm:"column:image_key"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
