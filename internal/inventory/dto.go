package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

// CreateItemInput holds the validated payload to create a live item.
type CreateItemInput struct {
	Name              string  `json:"name" validate:"required"`
	SKU               *string `json:"sku,omitempty"`
	Quantity          int     `json:"quantity" validate:"gte=0"`
	PriceCents        int     `json:"price_cents" validate:"gte=0"`
	LowStockThreshold int     `json:"low_stock_threshold" validate:"gte=0"`
}

// UpdateItemInput holds optional mutation values for an item.
type UpdateItemInput struct {
	Name              *string `json:"name,omitempty"`
	SKU               *string `json:"sku,omitempty"`
	Quantity          *int    `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	PriceCents        *int    `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	LowStockThreshold *int    `json:"low_stock_threshold,omitempty" validate:"omitempty,gte=0"`
}

// AdjustQuantityInput moves an item's stock count by a signed delta.
type AdjustQuantityInput struct {
	Delta int `json:"delta" validate:"required"`
}

// ItemDTO is the API-facing view of an inventory item.
type ItemDTO struct {
	ID                uuid.UUID `json:"id"`
	Name              string    `json:"name"`
	SKU               *string   `json:"sku,omitempty"`
	Quantity          int       `json:"quantity"`
	PriceCents        int       `json:"price_cents"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	ImageURL          *string   `json:"image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ImageUploadDTO carries a presigned upload slot for an item image.
type ImageUploadDTO struct {
	UploadURL string `json:"upload_url"`
	ImageKey  string `json:"image_key"`
}

func itemToDTO(item *models.InventoryItem, imageURL *string) *ItemDTO {
	if item == nil {
		return nil
	}
	return &ItemDTO{
		ID:                item.ID,
		Name:              item.Name,
		SKU:               item.SKU,
		Quantity:          item.Quantity,
		PriceCents:        item.PriceCents,
		LowStockThreshold: item.LowStockThreshold,
		LowStock:          item.LowStockThreshold > 0 && item.Quantity <= item.LowStockThreshold,
		ImageURL:          imageURL,
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
	}
}
