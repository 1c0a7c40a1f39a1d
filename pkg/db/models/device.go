package models

import (
	"time"

	"github.com/google/uuid"
)

// Device registers a physical device a vendor signs in from. The device id is
// what session create/join calls carry so the host can tell participants apart.
type Device struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey"`
	VendorID   uuid.UUID  `gorm:"column:vendor_id;type:uuid;not null;index"`
	Label      *string    `gorm:"column:label"`
	Platform   *string    `gorm:"column:platform"`
	LastSeenAt *time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}
