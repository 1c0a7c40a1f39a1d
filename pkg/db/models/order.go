package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// Order records one completed sale at the stall.
type Order struct {
	ID              uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID     uuid.UUID           `gorm:"column:owner_user_id;type:uuid;not null;index"`
	EventID         *uuid.UUID          `gorm:"column:event_id;type:uuid"`
	DeviceID        *uuid.UUID          `gorm:"column:device_id;type:uuid"`
	Status          enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'completed'"`
	PaymentMethod   enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null"`
	TotalCents      int                 `gorm:"column:total_cents;not null;default:0"`
	TenderedCents   *int                `gorm:"column:tendered_cents"`
	ChangeCents     *int                `gorm:"column:change_cents"`
	SquarePaymentID *string             `gorm:"column:square_payment_id"`
	Note            *string             `gorm:"column:note"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	LineItems []OrderLineItem `gorm:"foreignKey:OrderID"`
}

// OrderLineItem is one sold item inside an order. ItemID is nullable so an
// ad hoc sale (not backed by tracked inventory) can still be recorded.
type OrderLineItem struct {
	ID             uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	ItemID         *uuid.UUID `gorm:"column:item_id;type:uuid"`
	Name           string     `gorm:"column:name;not null"`
	UnitPriceCents int        `gorm:"column:unit_price_cents;not null;default:0"`
	Quantity       int        `gorm:"column:quantity;not null;default:1"`
	SubtotalCents  int        `gorm:"column:subtotal_cents;not null;default:0"`
}
