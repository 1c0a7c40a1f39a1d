package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/mdelarosa/tallypos-backend/internal/subscriptions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
)

// subscriptionSyncer is the slice of the subscription service the webhook
// needs: converge a snapshot from Stripe's payload.
type subscriptionSyncer interface {
	SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription, triggeredByWebhook bool) (*models.Subscription, error)
}

type ServiceParams struct {
	Subscriptions subscriptionSyncer
	StripeClient  subscriptions.StripeBillingClient
}

// Service routes verified Stripe events into subscription sync. Signature
// verification happens at the transport layer before events reach here.
type Service struct {
	subscriptions subscriptionSyncer
	stripe        subscriptions.StripeBillingClient
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Subscriptions == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription syncer required")
	}
	if params.StripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "stripe client required")
	}
	return &Service{
		subscriptions: params.Subscriptions,
		stripe:        params.StripeClient,
	}, nil
}

// HandleEvent syncs the affected subscription for lifecycle and invoice
// events. Unrecognized event types are acknowledged without work so Stripe
// stops retrying them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		_, err := s.subscriptions.SyncFromStripe(ctx, &stripeSub, true)
		return err
	case stripe.EventTypeInvoicePaid, stripe.EventTypeInvoicePaymentFailed:
		// Invoice payloads only reference the subscription, so re-fetch the
		// full object before syncing.
		subscriptionID := event.GetObjectValue("subscription")
		if subscriptionID == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
		}
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		_, err = s.subscriptions.SyncFromStripe(ctx, stripeSub, true)
		return err
	default:
		return nil
	}
}
