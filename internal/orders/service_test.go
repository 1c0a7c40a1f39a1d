package orders

import (
	"context"
	"io"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/pagination"
)

func TestCreateCashOrderComputesChangeAndDecrementsStock(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())
	itemID := fx.repo.addItem(scope.OwnerUserID, 10)

	tendered := 2000
	dto, err := fx.svc.CreateOrder(context.Background(), scope, uuid.New(), CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCash,
		TenderedCents: &tendered,
		Lines: []OrderLineInput{
			{ItemID: &itemID, Name: "Mug", UnitPriceCents: 750, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if dto.TotalCents != 1500 {
		t.Fatalf("expected total 1500, got %d", dto.TotalCents)
	}
	if dto.ChangeCents == nil || *dto.ChangeCents != 500 {
		t.Fatalf("expected change 500, got %v", dto.ChangeCents)
	}
	if qty := fx.repo.items[itemID]; qty != 8 {
		t.Fatalf("expected stock 8, got %d", qty)
	}
	if got := fx.outbox.eventTypes(); len(got) != 1 || got[0] != enums.EventOrderRecorded {
		t.Fatalf("expected recorded event, got %v", got)
	}
}

func TestCreateCashOrderRejectsShortTender(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())

	tendered := 100
	_, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCash,
		TenderedCents: &tendered,
		Lines: []OrderLineInput{
			{Name: "Mug", UnitPriceCents: 750, Quantity: 1},
		},
	})
	assertOrdersCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())
	itemID := fx.repo.addItem(scope.OwnerUserID, 1)

	tendered := 5000
	_, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCash,
		TenderedCents: &tendered,
		Lines: []OrderLineInput{
			{ItemID: &itemID, Name: "Mug", UnitPriceCents: 750, Quantity: 3},
		},
	})
	assertOrdersCode(t, err, pkgerrors.CodeStateConflict)
	if len(fx.repo.orders) != 0 {
		t.Fatal("order must not persist when a decrement fails")
	}
}

func TestCreateCardOrderChargesSquare(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())

	source := "cnon:card-nonce"
	dto, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod:  enums.PaymentMethodCard,
		SquareSourceID: &source,
		Lines: []OrderLineInput{
			{Name: "Print", UnitPriceCents: 2500, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if dto.SquarePaymentID == nil || *dto.SquarePaymentID != "payment-1" {
		t.Fatalf("expected square payment id, got %v", dto.SquarePaymentID)
	}
	if fx.charger.amount != 2500 {
		t.Fatalf("expected charge of 2500, got %d", fx.charger.amount)
	}

	_, err = fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCard,
		Lines: []OrderLineInput{
			{Name: "Print", UnitPriceCents: 2500, Quantity: 1},
		},
	})
	assertOrdersCode(t, err, pkgerrors.CodeValidation)
}

func TestAdHocLineSkipsStock(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())

	tendered := 1000
	dto, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCash,
		TenderedCents: &tendered,
		Lines: []OrderLineInput{
			{Name: "Custom commission", UnitPriceCents: 1000, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if len(dto.Lines) != 1 || dto.Lines[0].ItemID != nil {
		t.Fatalf("unexpected lines %+v", dto.Lines)
	}
}

func TestVoidOrderRestoresStockOnce(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())
	itemID := fx.repo.addItem(scope.OwnerUserID, 5)

	tendered := 1500
	dto, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
		PaymentMethod: enums.PaymentMethodCash,
		TenderedCents: &tendered,
		Lines: []OrderLineInput{
			{ItemID: &itemID, Name: "Mug", UnitPriceCents: 750, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if qty := fx.repo.items[itemID]; qty != 3 {
		t.Fatalf("expected stock 3 after sale, got %d", qty)
	}

	voided, err := fx.svc.VoidOrder(context.Background(), scope, dto.ID)
	if err != nil {
		t.Fatalf("void order: %v", err)
	}
	if voided.Status != enums.OrderStatusVoided {
		t.Fatalf("expected voided status, got %s", voided.Status)
	}
	if qty := fx.repo.items[itemID]; qty != 5 {
		t.Fatalf("expected stock restored to 5, got %d", qty)
	}
	if got := fx.outbox.eventTypes(); got[len(got)-1] != enums.EventOrderVoided {
		t.Fatalf("expected voided event, got %v", got)
	}

	_, err = fx.svc.VoidOrder(context.Background(), scope, dto.ID)
	assertOrdersCode(t, err, pkgerrors.CodeStateConflict)
}

func TestListOrdersPaginatesNewestFirst(t *testing.T) {
	fx := newOrdersFixture(t)
	scope := orderScope(uuid.New())

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		tendered := 1000
		dto, err := fx.svc.CreateOrder(context.Background(), scope, uuid.Nil, CreateOrderInput{
			PaymentMethod: enums.PaymentMethodCash,
			TenderedCents: &tendered,
			Lines: []OrderLineInput{
				{Name: "Sticker", UnitPriceCents: 500, Quantity: 1},
			},
		})
		if err != nil {
			t.Fatalf("create order %d: %v", i, err)
		}
		fx.repo.orders[dto.ID].CreatedAt = base.Add(time.Duration(i) * time.Minute)
	}

	page, err := fx.svc.ListOrders(context.Background(), scope, nil, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page.Orders) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(page.Orders))
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor on truncated page")
	}
	if !page.Orders[0].CreatedAt.After(page.Orders[1].CreatedAt) {
		t.Fatalf("expected newest-first ordering")
	}

	full, err := fx.svc.ListOrders(context.Background(), scope, nil, pagination.Params{})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(full.Orders) != 3 {
		t.Fatalf("expected 3 orders, got %d", len(full.Orders))
	}
	if full.NextCursor != "" {
		t.Fatalf("unexpected next cursor on final page")
	}
}

type ordersFixture struct {
	svc     Service
	repo    *memOrderRepo
	outbox  *stubOutbox
	charger *stubCharger
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	repo := newMemOrderRepo()
	sink := &stubOutbox{}
	charger := &stubCharger{paymentID: "payment-1"}
	svc, err := NewService(ServiceParams{
		Repo:    repo,
		Tx:      stubTxRunner{},
		Outbox:  sink,
		Charger: charger,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &ordersFixture{svc: svc, repo: repo, outbox: sink, charger: charger}
}

func orderScope(userID uuid.UUID) sessions.Scope {
	return sessions.Scope{OwnerUserID: userID, Plan: plans.State{Tier: enums.PlanTierPro}}
}

func assertOrdersCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type memOrderRepo struct {
	orders     map[uuid.UUID]*models.Order
	items      map[uuid.UUID]int
	itemOwners map[uuid.UUID]uuid.UUID
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:     make(map[uuid.UUID]*models.Order),
		items:      make(map[uuid.UUID]int),
		itemOwners: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *memOrderRepo) addItem(ownerID uuid.UUID, qty int) uuid.UUID {
	id := uuid.New()
	m.items[id] = qty
	m.itemOwners[id] = ownerID
	return id
}

func (m *memOrderRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memOrderRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	order.ID = uuid.New()
	order.CreatedAt = time.Now().UTC()
	for i := range order.LineItems {
		order.LineItems[i].ID = uuid.New()
		order.LineItems[i].OrderID = order.ID
	}
	clone := *order
	m.orders[order.ID] = &clone
	return order, nil
}

func (m *memOrderRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.Order, error) {
	order, ok := m.orders[id]
	if !ok || order.OwnerUserID != ownerID {
		return nil, nil
	}
	clone := *order
	return &clone, nil
}

func (m *memOrderRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID, eventID *uuid.UUID, page pagination.Params) ([]models.Order, error) {
	var rows []models.Order
	for _, order := range m.orders {
		if order.OwnerUserID != ownerID {
			continue
		}
		if eventID != nil && (order.EventID == nil || *order.EventID != *eventID) {
			continue
		}
		rows = append(rows, *order)
	}
	sort.Slice(rows, func(i, j int) bool {
		return rows[i].CreatedAt.After(rows[j].CreatedAt)
	})
	if max := pagination.LimitWithBuffer(page.Limit); len(rows) > max {
		rows = rows[:max]
	}
	return rows, nil
}

func (m *memOrderRepo) MarkVoided(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	order, ok := m.orders[id]
	if !ok || order.OwnerUserID != ownerID || order.Status != enums.OrderStatusCompleted {
		return 0, nil
	}
	order.Status = enums.OrderStatusVoided
	return 1, nil
}

func (m *memOrderRepo) DecrementStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) (int64, error) {
	if m.itemOwners[itemID] != ownerID || m.items[itemID] < qty {
		return 0, nil
	}
	m.items[itemID] -= qty
	return 1, nil
}

func (m *memOrderRepo) RestoreStock(ctx context.Context, ownerID, itemID uuid.UUID, qty int) error {
	if m.itemOwners[itemID] == ownerID {
		m.items[itemID] += qty
	}
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) eventTypes() []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.EventType)
	}
	return types
}

type stubCharger struct {
	paymentID string
	amount    int64
}

func (s *stubCharger) ChargeCard(ctx context.Context, params CardChargeParams) (string, error) {
	s.amount = params.AmountCents
	return s.paymentID, nil
}
