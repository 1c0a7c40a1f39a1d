package subscriptions

import (
	"time"

	"github.com/google/uuid"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
)

// SubscriptionDTO is the API-facing view of a vendor's billing snapshot.
type SubscriptionDTO struct {
	ID                 uuid.UUID                `json:"id"`
	PlanTier           enums.PlanTier           `json:"planTier"`
	Status             enums.SubscriptionStatus `json:"status"`
	Paused             bool                     `json:"paused"`
	CurrentPeriodStart *time.Time               `json:"currentPeriodStart,omitempty"`
	CurrentPeriodEnd   time.Time                `json:"currentPeriodEnd"`
	CancelAtPeriodEnd  bool                     `json:"cancelAtPeriodEnd"`
	CanceledAt         *time.Time               `json:"canceledAt,omitempty"`
}

// CheckoutSessionDTO carries the hosted checkout handoff back to the client.
type CheckoutSessionDTO struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func subscriptionToDTO(sub *models.Subscription) *SubscriptionDTO {
	if sub == nil {
		return nil
	}
	return &SubscriptionDTO{
		ID:                 sub.ID,
		PlanTier:           sub.PlanTier,
		Status:             sub.Status,
		Paused:             sub.Paused,
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CanceledAt:         sub.CanceledAt,
	}
}
