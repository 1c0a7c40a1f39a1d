package enforcement

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

type stubRepo struct {
	inventory []models.InventoryItem
	staged    []models.StagedItem

	deletedInventory []uuid.UUID
	deletedStaged    []uuid.UUID
}

func (s *stubRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubRepo) ListInventoryByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.InventoryItem, error) {
	return s.inventory, nil
}

func (s *stubRepo) DeleteInventoryByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.deletedInventory = append(s.deletedInventory, ids...)
	return int64(len(ids)), nil
}

func (s *stubRepo) ListStagedByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.StagedItem, error) {
	return s.staged, nil
}

func (s *stubRepo) DeleteStagedByIDs(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int64, error) {
	s.deletedStaged = append(s.deletedStaged, ids...)
	return int64(len(ids)), nil
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

func newEnforcementService(t *testing.T, repo Repository, sink *stubOutbox) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{Repo: repo, Tx: stubTxRunner{}, Outbox: sink})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func inventoryItem(ownerID uuid.UUID, updatedAt time.Time) models.InventoryItem {
	return models.InventoryItem{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        "item",
		CreatedAt:   updatedAt.Add(-time.Hour),
		UpdatedAt:   updatedAt,
	}
}

func TestEnforceKeepsMostRecentlyTouchedItems(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// 8 live items with distinct updated_at plus 3 staged rows against a cap
	// of 5: the 5 newest live rows survive and staging loses everything.
	items := make([]models.InventoryItem, 8)
	for i := range items {
		items[i] = inventoryItem(ownerID, base.Add(time.Duration(i)*time.Minute))
	}
	staged := []models.StagedItem{
		{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base, UpdatedAt: base},
		{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base, UpdatedAt: base},
		{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base, UpdatedAt: base},
	}

	repo := &stubRepo{inventory: items, staged: staged}
	sink := &stubOutbox{}
	svc := newEnforcementService(t, repo, sink)

	result, err := svc.Enforce(ctx, ownerID, 5, true)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}

	if result.KeptInventory != 5 || result.RemovedInventory != 3 {
		t.Fatalf("expected 5 kept / 3 removed live items, got %d/%d", result.KeptInventory, result.RemovedInventory)
	}
	if result.KeptStaged != 0 || result.RemovedStaged != 3 {
		t.Fatalf("expected all staged rows removed, got kept=%d removed=%d", result.KeptStaged, result.RemovedStaged)
	}

	// The three oldest live rows are the ones trimmed.
	removed := make(map[uuid.UUID]bool, len(repo.deletedInventory))
	for _, id := range repo.deletedInventory {
		removed[id] = true
	}
	for i := 0; i < 3; i++ {
		if !removed[items[i].ID] {
			t.Fatalf("expected oldest item %d to be removed", i)
		}
	}
	for i := 3; i < 8; i++ {
		if removed[items[i].ID] {
			t.Fatalf("item %d should have been kept", i)
		}
	}
}

func TestEnforceLeavesRoomForStagedRows(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	repo := &stubRepo{
		inventory: []models.InventoryItem{
			inventoryItem(ownerID, base),
			inventoryItem(ownerID, base.Add(time.Minute)),
		},
		staged: []models.StagedItem{
			{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base.Add(2 * time.Minute), UpdatedAt: base.Add(2 * time.Minute)},
			{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base, UpdatedAt: base},
			{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base.Add(time.Minute), UpdatedAt: base.Add(time.Minute)},
			{ID: uuid.New(), OwnerUserID: ownerID, Status: enums.StagedItemStatusStaged, CreatedAt: base.Add(3 * time.Minute), UpdatedAt: base.Add(3 * time.Minute)},
		},
	}
	sink := &stubOutbox{}
	svc := newEnforcementService(t, repo, sink)

	result, err := svc.Enforce(ctx, ownerID, 5, false)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}

	if result.KeptInventory != 2 || result.RemovedInventory != 0 {
		t.Fatalf("live rows under the cap must all survive, got %+v", result)
	}
	if result.KeptStaged != 3 || result.RemovedStaged != 1 {
		t.Fatalf("expected 3 staged kept / 1 removed, got %+v", result)
	}
	if len(repo.deletedStaged) != 1 || repo.deletedStaged[0] != repo.staged[1].ID {
		t.Fatalf("oldest staged row should be trimmed, deleted %v", repo.deletedStaged)
	}
}

func TestEnforceEmptyInventoryReturnsZeroCounts(t *testing.T) {
	ctx := context.Background()
	repo := &stubRepo{}
	sink := &stubOutbox{}
	svc := newEnforcementService(t, repo, sink)

	result, err := svc.Enforce(ctx, uuid.New(), 5, false)
	if err != nil {
		t.Fatalf("enforce: %v", err)
	}
	if *result != (Result{}) {
		t.Fatalf("expected zero counts, got %+v", result)
	}
	if len(sink.events) != 0 {
		t.Fatal("no-op enforcement should not emit events")
	}
}

func TestEnforceEmitsChangeFeedEvent(t *testing.T) {
	ctx := context.Background()
	ownerID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	repo := &stubRepo{inventory: []models.InventoryItem{
		inventoryItem(ownerID, base),
		inventoryItem(ownerID, base.Add(time.Minute)),
	}}
	sink := &stubOutbox{}
	svc := newEnforcementService(t, repo, sink)

	if _, err := svc.Enforce(ctx, ownerID, 1, true); err != nil {
		t.Fatalf("enforce: %v", err)
	}

	if len(sink.events) != 1 {
		t.Fatalf("expected one event, got %d", len(sink.events))
	}
	event := sink.events[0]
	if event.EventType != enums.EventPlanLimitEnforced {
		t.Fatalf("unexpected event type %s", event.EventType)
	}
	payload, ok := event.Data.(payloads.PlanLimitEnforcedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", event.Data)
	}
	if payload.RemovedItems != 1 || payload.KeptItems != 1 || !payload.TriggeredByWebhook {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestEnforceRejectsNegativeLimit(t *testing.T) {
	svc := newEnforcementService(t, &stubRepo{}, &stubOutbox{})
	_, err := svc.Enforce(context.Background(), uuid.New(), -1, false)
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
