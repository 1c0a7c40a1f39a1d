package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// OrderLineInput is one sold item in a create request. ItemID is optional so
// ad hoc sales can be rung up without a tracked inventory row.
type OrderLineInput struct {
	ItemID         *uuid.UUID `json:"item_id,omitempty"`
	Name           string     `json:"name" validate:"required"`
	UnitPriceCents int        `json:"unit_price_cents" validate:"gte=0"`
	Quantity       int        `json:"quantity" validate:"gt=0"`
}

// CreateOrderInput holds the validated payload to record a sale.
type CreateOrderInput struct {
	EventID        *uuid.UUID          `json:"event_id,omitempty"`
	PaymentMethod  enums.PaymentMethod `json:"payment_method" validate:"required"`
	TenderedCents  *int                `json:"tendered_cents,omitempty"`
	SquareSourceID *string             `json:"square_source_id,omitempty"`
	Note           *string             `json:"note,omitempty"`
	Lines          []OrderLineInput    `json:"lines" validate:"required,min=1,dive"`
}

// OrderLineDTO is the API-facing view of one order line.
type OrderLineDTO struct {
	ID             uuid.UUID  `json:"id"`
	ItemID         *uuid.UUID `json:"item_id,omitempty"`
	Name           string     `json:"name"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Quantity       int        `json:"quantity"`
	SubtotalCents  int        `json:"subtotal_cents"`
}

// OrderDTO is the API-facing view of a recorded sale.
type OrderDTO struct {
	ID              uuid.UUID           `json:"id"`
	EventID         *uuid.UUID          `json:"event_id,omitempty"`
	DeviceID        *uuid.UUID          `json:"device_id,omitempty"`
	Status          enums.OrderStatus   `json:"status"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method"`
	TotalCents      int                 `json:"total_cents"`
	TenderedCents   *int                `json:"tendered_cents,omitempty"`
	ChangeCents     *int                `json:"change_cents,omitempty"`
	SquarePaymentID *string             `json:"square_payment_id,omitempty"`
	Note            *string             `json:"note,omitempty"`
	Lines           []OrderLineDTO      `json:"lines"`
	CreatedAt       time.Time           `json:"created_at"`
}

// OrderPage is one page of a cursor-paginated order listing.
type OrderPage struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

func orderToDTO(order *models.Order) *OrderDTO {
	if order == nil {
		return nil
	}
	lines := make([]OrderLineDTO, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		lines = append(lines, OrderLineDTO{
			ID:             line.ID,
			ItemID:         line.ItemID,
			Name:           line.Name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			SubtotalCents:  line.SubtotalCents,
		})
	}
	return &OrderDTO{
		ID:              order.ID,
		EventID:         order.EventID,
		DeviceID:        order.DeviceID,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		TotalCents:      order.TotalCents,
		TenderedCents:   order.TenderedCents,
		ChangeCents:     order.ChangeCents,
		SquarePaymentID: order.SquarePaymentID,
		Note:            order.Note,
		Lines:           lines,
		CreatedAt:       order.CreatedAt,
	}
}
