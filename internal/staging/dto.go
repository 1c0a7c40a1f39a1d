package staging

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// StageItemInput holds the validated payload to stage an item for an event.
type StageItemInput struct {
	Name       string  `json:"name" validate:"required"`
	SKU        *string `json:"sku,omitempty"`
	Quantity   int     `json:"quantity" validate:"gte=0"`
	PriceCents int     `json:"price_cents" validate:"gte=0"`
}

// StagedItemDTO is the API-facing view of a staged inventory row.
type StagedItemDTO struct {
	ID              uuid.UUID              `json:"id"`
	EventID         uuid.UUID              `json:"event_id"`
	Name            string                 `json:"name"`
	SKU             *string                `json:"sku,omitempty"`
	Quantity        int                    `json:"quantity"`
	PriceCents      int                    `json:"price_cents"`
	Status          enums.StagedItemStatus `json:"status"`
	ConvertedItemID *uuid.UUID             `json:"converted_item_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func stagedToDTO(item *models.StagedItem) *StagedItemDTO {
	if item == nil {
		return nil
	}
	return &StagedItemDTO{
		ID:              item.ID,
		EventID:         item.EventID,
		Name:            item.Name,
		SKU:             item.SKU,
		Quantity:        item.Quantity,
		PriceCents:      item.PriceCents,
		Status:          item.Status,
		ConvertedItemID: item.ConvertedItemID,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
	}
}
