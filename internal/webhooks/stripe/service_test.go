package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
)

func TestHandleSubscriptionEventSyncsPayload(t *testing.T) {
	syncer := &stubSyncer{}
	service := buildWebhookService(t, syncer, &stubStripeClient{})

	userID := uuid.New()
	subscription := &stripe.Subscription{
		ID:       "sub_test",
		Status:   stripe.SubscriptionStatusActive,
		Metadata: map[string]string{"user_id": userID.String()},
	}
	raw, _ := json.Marshal(subscription)
	event := &stripe.Event{
		Type: stripe.EventTypeCustomerSubscriptionCreated,
		Data: &stripe.EventData{Raw: raw},
	}

	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(syncer.synced) != 1 || syncer.synced[0].ID != "sub_test" {
		t.Fatalf("expected one sync for sub_test, got %+v", syncer.synced)
	}
	if !syncer.viaWebhook[0] {
		t.Fatal("expected webhook-triggered sync")
	}
}

func TestHandleInvoiceEventFetchesSubscription(t *testing.T) {
	syncer := &stubSyncer{}
	client := &stubStripeClient{
		getResp: &stripe.Subscription{ID: "sub_invoice", Status: stripe.SubscriptionStatusPastDue},
	}
	service := buildWebhookService(t, syncer, client)

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaymentFailed,
		Data: &stripe.EventData{
			Object: map[string]interface{}{"subscription": "sub_invoice"},
		},
	}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if client.fetched != "sub_invoice" {
		t.Fatalf("expected fetch of sub_invoice, got %q", client.fetched)
	}
	if len(syncer.synced) != 1 || syncer.synced[0].Status != stripe.SubscriptionStatusPastDue {
		t.Fatalf("expected past_due sync, got %+v", syncer.synced)
	}
}

func TestHandleInvoiceEventMissingSubscriptionID(t *testing.T) {
	syncer := &stubSyncer{}
	service := buildWebhookService(t, syncer, &stubStripeClient{})

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Object: map[string]interface{}{}},
	}
	if err := service.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected error for missing subscription id")
	}
	if len(syncer.synced) != 0 {
		t.Fatal("nothing should sync without a subscription id")
	}
}

func TestHandleUnknownEventIsAcknowledged(t *testing.T) {
	syncer := &stubSyncer{}
	service := buildWebhookService(t, syncer, &stubStripeClient{})

	event := &stripe.Event{
		Type: stripe.EventType("charge.refunded"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown events must be acknowledged, got %v", err)
	}
	if len(syncer.synced) != 0 {
		t.Fatal("unknown events must not sync")
	}
}

func TestIdempotencyGuardMarksAndClears(t *testing.T) {
	store := &memIdempotencyStore{keys: make(map[string]string)}
	guard, err := NewIdempotencyGuard(store, time.Minute, "stripe")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery must not be seen, got %v/%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("replay must be seen, got %v/%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("delete marker: %v", err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("cleared marker must allow a retry, got %v/%v", seen, err)
	}
}

func buildWebhookService(t *testing.T, syncer *stubSyncer, client *stubStripeClient) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Subscriptions: syncer,
		StripeClient:  client,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

type stubSyncer struct {
	synced     []*stripe.Subscription
	viaWebhook []bool
}

func (s *stubSyncer) SyncFromStripe(ctx context.Context, stripeSub *stripe.Subscription, triggeredByWebhook bool) (*models.Subscription, error) {
	s.synced = append(s.synced, stripeSub)
	s.viaWebhook = append(s.viaWebhook, triggeredByWebhook)
	return &models.Subscription{ID: uuid.New()}, nil
}

type stubStripeClient struct {
	getResp *stripe.Subscription
	fetched string
}

func (s *stubStripeClient) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return nil, nil
}

func (s *stubStripeClient) Get(ctx context.Context, id string, params *stripe.SubscriptionParams) (*stripe.Subscription, error) {
	s.fetched = id
	return s.getResp, nil
}

func (s *stubStripeClient) Pause(ctx context.Context, id string) (*stripe.Subscription, error) {
	return nil, nil
}

func (s *stubStripeClient) Resume(ctx context.Context, id string) (*stripe.Subscription, error) {
	return nil, nil
}

type memIdempotencyStore struct {
	keys map[string]string
}

func (m *memIdempotencyStore) Get(ctx context.Context, key string) (string, error) {
	return m.keys[key], nil
}

func (m *memIdempotencyStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memIdempotencyStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (m *memIdempotencyStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}
