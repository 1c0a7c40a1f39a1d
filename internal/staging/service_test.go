package staging

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
)

func TestStageItemSharesQuotaWithLiveInventory(t *testing.T) {
	fx := newStagingFixture(t, intPtr(3))
	scope := stagingScope(uuid.New())
	eventID := fx.repo.addEvent(scope.OwnerUserID)
	fx.repo.liveCount = 2

	if _, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{Name: "First"}); err != nil {
		t.Fatalf("stage first: %v", err)
	}
	_, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{Name: "Second"})
	assertStagingCode(t, err, pkgerrors.CodePlanLimit)
}

func TestStageItemRequiresEvent(t *testing.T) {
	fx := newStagingFixture(t, nil)
	scope := stagingScope(uuid.New())

	_, err := fx.svc.StageItem(context.Background(), scope, uuid.New(), StageItemInput{Name: "Lost"})
	assertStagingCode(t, err, pkgerrors.CodeNotFound)
}

func TestReleaseItemOnlyOnce(t *testing.T) {
	fx := newStagingFixture(t, nil)
	scope := stagingScope(uuid.New())
	eventID := fx.repo.addEvent(scope.OwnerUserID)

	dto, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{Name: "Candle", Quantity: 4})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	released, err := fx.svc.ReleaseItem(context.Background(), scope, dto.ID)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released.Status != enums.StagedItemStatusReleased {
		t.Fatalf("expected released status, got %s", released.Status)
	}

	_, err = fx.svc.ReleaseItem(context.Background(), scope, dto.ID)
	assertStagingCode(t, err, pkgerrors.CodeStateConflict)
}

func TestConvertItemCreatesLiveRow(t *testing.T) {
	fx := newStagingFixture(t, nil)
	scope := stagingScope(uuid.New())
	eventID := fx.repo.addEvent(scope.OwnerUserID)

	dto, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{
		Name:       "Zine",
		Quantity:   12,
		PriceCents: 800,
	})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	converted, err := fx.svc.ConvertItem(context.Background(), scope, dto.ID)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.Status != enums.StagedItemStatusConverted {
		t.Fatalf("expected converted status, got %s", converted.Status)
	}
	if converted.ConvertedItemID == nil {
		t.Fatal("expected converted item id")
	}
	live := fx.repo.liveItems[*converted.ConvertedItemID]
	if live == nil || live.Name != "Zine" || live.Quantity != 12 || live.PriceCents != 800 {
		t.Fatalf("unexpected live row %+v", live)
	}

	types := fx.outbox.eventTypes()
	if len(types) < 3 || types[1] != enums.EventItemInserted || types[2] != enums.EventStagedItemUpdated {
		t.Fatalf("unexpected event sequence %v", types)
	}
}

func TestConvertItemGatedByLiveLimit(t *testing.T) {
	fx := newStagingFixture(t, intPtr(5))
	scope := stagingScope(uuid.New())
	eventID := fx.repo.addEvent(scope.OwnerUserID)

	dto, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{Name: "Patch"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}

	fx.repo.liveCount = 5
	_, err = fx.svc.ConvertItem(context.Background(), scope, dto.ID)
	assertStagingCode(t, err, pkgerrors.CodePlanLimit)
}

func TestDeleteStagedEmitsDeleteEvent(t *testing.T) {
	fx := newStagingFixture(t, nil)
	scope := stagingScope(uuid.New())
	eventID := fx.repo.addEvent(scope.OwnerUserID)

	dto, err := fx.svc.StageItem(context.Background(), scope, eventID, StageItemInput{Name: "Poster"})
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	if err := fx.svc.DeleteStaged(context.Background(), scope, dto.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	types := fx.outbox.eventTypes()
	if types[len(types)-1] != enums.EventStagedItemDeleted {
		t.Fatalf("expected staged delete event, got %v", types)
	}

	err = fx.svc.DeleteStaged(context.Background(), scope, dto.ID)
	assertStagingCode(t, err, pkgerrors.CodeNotFound)
}

type stagingFixture struct {
	svc    Service
	repo   *memStagingRepo
	outbox *stubOutbox
}

func newStagingFixture(t *testing.T, limit *int) *stagingFixture {
	t.Helper()
	repo := newMemStagingRepo()
	sink := &stubOutbox{}
	svc, err := NewService(ServiceParams{
		Repo:   repo,
		Tx:     stubTxRunner{},
		Outbox: sink,
		Plans:  stubLimiter{limit: limit},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &stagingFixture{svc: svc, repo: repo, outbox: sink}
}

func stagingScope(userID uuid.UUID) sessions.Scope {
	return sessions.Scope{OwnerUserID: userID, Plan: plans.State{Tier: enums.PlanTierPro}}
}

func intPtr(v int) *int { return &v }

func assertStagingCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type memStagingRepo struct {
	staged    map[uuid.UUID]*models.StagedItem
	events    map[uuid.UUID]*models.MarketEvent
	liveItems map[uuid.UUID]*models.InventoryItem
	liveCount int64
}

func newMemStagingRepo() *memStagingRepo {
	return &memStagingRepo{
		staged:    make(map[uuid.UUID]*models.StagedItem),
		events:    make(map[uuid.UUID]*models.MarketEvent),
		liveItems: make(map[uuid.UUID]*models.InventoryItem),
	}
}

func (m *memStagingRepo) addEvent(ownerID uuid.UUID) uuid.UUID {
	id := uuid.New()
	m.events[id] = &models.MarketEvent{ID: id, OwnerUserID: ownerID, Name: "Event"}
	return id
}

func (m *memStagingRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memStagingRepo) Create(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error) {
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	clone := *item
	m.staged[item.ID] = &clone
	return item, nil
}

func (m *memStagingRepo) Save(ctx context.Context, item *models.StagedItem) (*models.StagedItem, error) {
	item.UpdatedAt = time.Now().UTC()
	clone := *item
	m.staged[item.ID] = &clone
	return item, nil
}

func (m *memStagingRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	item, ok := m.staged[id]
	if !ok || item.OwnerUserID != ownerID {
		return 0, nil
	}
	delete(m.staged, id)
	return 1, nil
}

func (m *memStagingRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.StagedItem, error) {
	item, ok := m.staged[id]
	if !ok || item.OwnerUserID != ownerID {
		return nil, nil
	}
	clone := *item
	return &clone, nil
}

func (m *memStagingRepo) ListByEvent(ctx context.Context, ownerID, eventID uuid.UUID) ([]models.StagedItem, error) {
	var rows []models.StagedItem
	for _, item := range m.staged {
		if item.OwnerUserID == ownerID && item.EventID == eventID {
			rows = append(rows, *item)
		}
	}
	return rows, nil
}

func (m *memStagingRepo) FindEvent(ctx context.Context, ownerID, eventID uuid.UUID) (*models.MarketEvent, error) {
	event, ok := m.events[eventID]
	if !ok || event.OwnerUserID != ownerID {
		return nil, nil
	}
	return event, nil
}

func (m *memStagingRepo) CountStagedByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	for _, item := range m.staged {
		if item.OwnerUserID == ownerID && item.Status == enums.StagedItemStatusStaged {
			count++
		}
	}
	return count, nil
}

func (m *memStagingRepo) CountInventoryByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	return m.liveCount, nil
}

func (m *memStagingRepo) CreateInventoryItem(ctx context.Context, item *models.InventoryItem) (*models.InventoryItem, error) {
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	clone := *item
	m.liveItems[item.ID] = &clone
	m.liveCount++
	return item, nil
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

type stubLimiter struct {
	limit *int
}

func (s stubLimiter) LimitForState(ctx context.Context, state plans.State) (*int, error) {
	return s.limit, nil
}
