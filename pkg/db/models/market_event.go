package models

import (
	"time"

	"github.com/google/uuid"
)

// MarketEvent is a live inventory scope: a market, convention, or popup the
// vendor stages inventory for and sells at.
type MarketEvent struct {
	ID          uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerUserID uuid.UUID  `gorm:"column:owner_user_id;type:uuid;not null;index"`
	Name        string     `gorm:"column:name;not null"`
	Location    *string    `gorm:"column:location"`
	StartsAt    *time.Time `gorm:"column:starts_at"`
	EndsAt      *time.Time `gorm:"column:ends_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
