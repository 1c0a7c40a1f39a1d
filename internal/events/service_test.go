package events

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
)

func TestCreateAndListEvents(t *testing.T) {
	svc, _ := newEventsFixture(t)
	scope := testScope(uuid.New())

	loc := "Hall B"
	dto, err := svc.CreateEvent(context.Background(), scope, CreateEventInput{
		Name:     "Spring Market",
		Location: &loc,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if dto.Name != "Spring Market" || dto.Location == nil || *dto.Location != "Hall B" {
		t.Fatalf("unexpected dto %+v", dto)
	}

	list, err := svc.ListEvents(context.Background(), scope)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(list) != 1 || list[0].ID != dto.ID {
		t.Fatalf("unexpected list %+v", list)
	}
}

func TestCreateEventRejectsInvertedWindow(t *testing.T) {
	svc, _ := newEventsFixture(t)
	scope := testScope(uuid.New())

	start := time.Now()
	end := start.Add(-time.Hour)
	_, err := svc.CreateEvent(context.Background(), scope, CreateEventInput{
		Name:     "Backwards",
		StartsAt: &start,
		EndsAt:   &end,
	})
	assertEventsCode(t, err, pkgerrors.CodeValidation)
}

func TestDeleteEventBlockedByStagedItems(t *testing.T) {
	svc, repo := newEventsFixture(t)
	scope := testScope(uuid.New())

	dto, err := svc.CreateEvent(context.Background(), scope, CreateEventInput{Name: "Con"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	repo.staged[dto.ID] = 2

	err = svc.DeleteEvent(context.Background(), scope, dto.ID)
	assertEventsCode(t, err, pkgerrors.CodeStateConflict)

	repo.staged[dto.ID] = 0
	if err := svc.DeleteEvent(context.Background(), scope, dto.ID); err != nil {
		t.Fatalf("delete event: %v", err)
	}

	err = svc.DeleteEvent(context.Background(), scope, dto.ID)
	assertEventsCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetEventScopedToOwner(t *testing.T) {
	svc, _ := newEventsFixture(t)
	owner, other := testScope(uuid.New()), testScope(uuid.New())

	dto, err := svc.CreateEvent(context.Background(), owner, CreateEventInput{Name: "Mine"})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	_, err = svc.GetEvent(context.Background(), other, dto.ID)
	assertEventsCode(t, err, pkgerrors.CodeNotFound)
}

func newEventsFixture(t *testing.T) (Service, *memEventRepo) {
	t.Helper()
	repo := newMemEventRepo()
	svc, err := NewService(ServiceParams{Repo: repo, Tx: stubTxRunner{}})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, repo
}

func testScope(userID uuid.UUID) sessions.Scope {
	return sessions.Scope{OwnerUserID: userID, Plan: plans.State{Tier: enums.PlanTierFree}}
}

func assertEventsCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != code {
		t.Fatalf("expected %s error, got %v", code, err)
	}
}

type memEventRepo struct {
	events map[uuid.UUID]*models.MarketEvent
	staged map[uuid.UUID]int64
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{
		events: make(map[uuid.UUID]*models.MarketEvent),
		staged: make(map[uuid.UUID]int64),
	}
}

func (m *memEventRepo) WithTx(tx *gorm.DB) Repository { return m }

func (m *memEventRepo) Create(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error) {
	event.ID = uuid.New()
	now := time.Now().UTC()
	event.CreatedAt, event.UpdatedAt = now, now
	clone := *event
	m.events[event.ID] = &clone
	return event, nil
}

func (m *memEventRepo) Save(ctx context.Context, event *models.MarketEvent) (*models.MarketEvent, error) {
	event.UpdatedAt = time.Now().UTC()
	clone := *event
	m.events[event.ID] = &clone
	return event, nil
}

func (m *memEventRepo) Delete(ctx context.Context, ownerID, id uuid.UUID) (int64, error) {
	event, ok := m.events[id]
	if !ok || event.OwnerUserID != ownerID {
		return 0, nil
	}
	delete(m.events, id)
	return 1, nil
}

func (m *memEventRepo) FindByID(ctx context.Context, ownerID, id uuid.UUID) (*models.MarketEvent, error) {
	event, ok := m.events[id]
	if !ok || event.OwnerUserID != ownerID {
		return nil, nil
	}
	clone := *event
	return &clone, nil
}

func (m *memEventRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.MarketEvent, error) {
	var rows []models.MarketEvent
	for _, event := range m.events {
		if event.OwnerUserID == ownerID {
			rows = append(rows, *event)
		}
	}
	return rows, nil
}

func (m *memEventRepo) CountStagedByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	return m.staged[eventID], nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}
