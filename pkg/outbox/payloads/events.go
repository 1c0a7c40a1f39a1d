package payloads

import (
	"time"

	"github.com/google/uuid"
)

// ItemChangeEvent mirrors one live inventory row after an insert or update,
// or identifies the row that was deleted.
type ItemChangeEvent struct {
	ItemID      uuid.UUID  `json:"itemId"`
	OwnerUserID uuid.UUID  `json:"ownerUserId"`
	Name        string     `json:"name,omitempty"`
	SKU         *string    `json:"sku,omitempty"`
	Quantity    int        `json:"quantity"`
	PriceCents  int        `json:"priceCents"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

// StagedItemChangeEvent mirrors one staged inventory row.
type StagedItemChangeEvent struct {
	StagedItemID uuid.UUID  `json:"stagedItemId"`
	OwnerUserID  uuid.UUID  `json:"ownerUserId"`
	EventID      uuid.UUID  `json:"eventId"`
	Name         string     `json:"name,omitempty"`
	Quantity     int        `json:"quantity"`
	Status       string     `json:"status,omitempty"`
	ConvertedTo  *uuid.UUID `json:"convertedTo,omitempty"`
}

// OrderRecordedEvent announces a completed sale with its stock effects.
type OrderRecordedEvent struct {
	OrderID       uuid.UUID       `json:"orderId"`
	OwnerUserID   uuid.UUID       `json:"ownerUserId"`
	EventID       *uuid.UUID      `json:"eventId,omitempty"`
	PaymentMethod string          `json:"paymentMethod"`
	TotalCents    int             `json:"totalCents"`
	Lines         []OrderLineData `json:"lines"`
}

// OrderLineData is one line inside an OrderRecordedEvent.
type OrderLineData struct {
	ItemID        *uuid.UUID `json:"itemId,omitempty"`
	Name          string     `json:"name"`
	Quantity      int        `json:"quantity"`
	SubtotalCents int        `json:"subtotalCents"`
}

// OrderVoidedEvent announces a voided sale so followers can restore counts.
type OrderVoidedEvent struct {
	OrderID     uuid.UUID `json:"orderId"`
	OwnerUserID uuid.UUID `json:"ownerUserId"`
}

// SessionLifecycleEvent covers create/join/approve/end/leave transitions.
type SessionLifecycleEvent struct {
	SessionID  uuid.UUID  `json:"sessionId"`
	Code       string     `json:"code"`
	HostUserID uuid.UUID  `json:"hostUserId"`
	UserID     *uuid.UUID `json:"userId,omitempty"`
	DeviceID   *uuid.UUID `json:"deviceId,omitempty"`
	Status     string     `json:"status,omitempty"`
	JoinStatus string     `json:"joinStatus,omitempty"`
}

// PlanChangedEvent announces an effective plan transition for a vendor.
type PlanChangedEvent struct {
	UserID   uuid.UUID `json:"userId"`
	FromTier string    `json:"fromTier"`
	ToTier   string    `json:"toTier"`
	Paused   bool      `json:"paused"`
}

// PlanLimitEnforcedEvent reports a downgrade trim: how many live and staged
// rows were removed to fit the new quota.
type PlanLimitEnforcedEvent struct {
	UserID             uuid.UUID `json:"userId"`
	Limit              int       `json:"limit"`
	RemovedItems       int       `json:"removedItems"`
	RemovedStaged      int       `json:"removedStaged"`
	KeptItems          int       `json:"keptItems"`
	KeptStaged         int       `json:"keptStaged"`
	EnforcedAt         time.Time `json:"enforcedAt"`
	TriggeredByWebhook bool      `json:"triggeredByWebhook"`
}

// SubscriptionUpdatedEvent mirrors the persisted Stripe snapshot.
type SubscriptionUpdatedEvent struct {
	UserID               uuid.UUID `json:"userId"`
	StripeSubscriptionID string    `json:"stripeSubscriptionId"`
	PlanTier             string    `json:"planTier"`
	Status               string    `json:"status"`
	Paused               bool      `json:"paused"`
	CurrentPeriodEnd     time.Time `json:"currentPeriodEnd"`
}
