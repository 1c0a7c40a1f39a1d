package orders

import (
	"context"
	"fmt"

	"github.com/mdelarosa/tallypos-backend/pkg/square"
)

// SquareCharger adapts the Square client to the service's card tender hook.
type SquareCharger struct {
	client *square.Client
}

// NewSquareCharger wraps the provided Square client.
func NewSquareCharger(client *square.Client) (*SquareCharger, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareCharger{client: client}, nil
}

// ChargeCard creates a Square payment and returns its id.
func (c *SquareCharger) ChargeCard(ctx context.Context, params CardChargeParams) (string, error) {
	payment, err := c.client.CreatePayment(ctx, square.PaymentCreateParams{
		AmountCents: params.AmountCents,
		SourceID:    params.SourceID,
		ReferenceID: params.ReferenceID,
		Note:        params.Note,
	})
	if err != nil {
		return "", err
	}
	if payment == nil {
		return "", fmt.Errorf("square returned no payment")
	}
	id := payment.GetID()
	if id == nil {
		return "", fmt.Errorf("square payment missing id")
	}
	return *id, nil
}
