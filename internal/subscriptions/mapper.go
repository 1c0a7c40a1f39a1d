package subscriptions

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
)

// BuildSubscriptionFromStripe maps a Stripe subscription into the canonical
// snapshot model.
func BuildSubscriptionFromStripe(stripeSub *stripe.Subscription, userID uuid.UUID, tier enums.PlanTier) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	status, err := mapStripeStatus(stripeSub.Status)
	if err != nil {
		return nil, err
	}
	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	startTS, endTS := periodFromSubscription(stripeSub)
	priceID := determinePriceID(stripeSub)

	return &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: stripeSub.ID,
		PlanTier:             tier,
		Status:               status,
		Paused:               isPaused(stripeSub),
		PriceID:              trimmedPtr(priceID),
		CurrentPeriodStart:   toTimePtr(startTS),
		CurrentPeriodEnd:     toTime(endTS),
		CancelAtPeriodEnd:    stripeSub.CancelAtPeriodEnd,
		CanceledAt:           toTimePtr(stripeSub.CanceledAt),
		Metadata:             metadata,
	}, nil
}

// UpdateSubscriptionFromStripe mutates the stored snapshot with new Stripe data.
func UpdateSubscriptionFromStripe(target *models.Subscription, stripeSub *stripe.Subscription, tier enums.PlanTier) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	status, err := mapStripeStatus(stripeSub.Status)
	if err != nil {
		return err
	}
	metadata, err := marshalMetadata(stripeSub.Metadata)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal metadata")
	}

	target.StripeSubscriptionID = stripeSub.ID
	target.PlanTier = tier
	target.Status = status
	target.Paused = isPaused(stripeSub)
	if priceID := determinePriceID(stripeSub); priceID != "" {
		target.PriceID = &priceID
	}
	startTS, endTS := periodFromSubscription(stripeSub)
	target.CurrentPeriodStart = toTimePtr(startTS)
	target.CurrentPeriodEnd = toTime(endTS)
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.CanceledAt = toTimePtr(stripeSub.CanceledAt)
	target.Metadata = metadata
	return nil
}

// UserIDFromMetadata extracts the vendor id attached to checkout metadata.
func UserIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	if metadata == nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription metadata is required")
	}
	raw, ok := metadata["user_id"]
	if !ok || strings.TrimSpace(raw) == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "user_id missing from metadata")
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id metadata")
	}
	return id, nil
}

func mapStripeStatus(raw stripe.SubscriptionStatus) (enums.SubscriptionStatus, error) {
	normalized := strings.ToLower(strings.TrimSpace(string(raw)))
	if normalized == "" {
		return enums.SubscriptionStatusActive, nil
	}
	parsed, err := enums.ParseSubscriptionStatus(normalized)
	if err != nil {
		return enums.SubscriptionStatusActive, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unknown stripe status")
	}
	return parsed, nil
}

// isPaused reports whether invoice collection is paused. Stripe keeps the
// status at active while pause_collection is set.
func isPaused(sub *stripe.Subscription) bool {
	if sub == nil {
		return false
	}
	if sub.Status == stripe.SubscriptionStatusPaused {
		return true
	}
	return sub.PauseCollection != nil && sub.PauseCollection.Behavior != ""
}

func determinePriceID(sub *stripe.Subscription) string {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return ""
	}
	if sub.Items.Data[0].Price != nil {
		return sub.Items.Data[0].Price.ID
	}
	return ""
}

func periodFromSubscription(sub *stripe.Subscription) (int64, int64) {
	if sub == nil || sub.Items == nil || len(sub.Items.Data) == 0 {
		return 0, 0
	}
	item := sub.Items.Data[0]
	return item.CurrentPeriodStart, item.CurrentPeriodEnd
}

func marshalMetadata(metadata map[string]string) (json.RawMessage, error) {
	if len(metadata) == 0 {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func trimmedPtr(value string) *string {
	if s := strings.TrimSpace(value); s != "" {
		return &s
	}
	return nil
}

func toTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}

func toTimePtr(ts int64) *time.Time {
	if ts == 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}
