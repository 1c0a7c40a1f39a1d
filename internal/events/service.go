package events

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
)

// Service exposes owner-scoped market event management.
type Service interface {
	CreateEvent(ctx context.Context, scope sessions.Scope, input CreateEventInput) (*EventDTO, error)
	UpdateEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID, input UpdateEventInput) (*EventDTO, error)
	DeleteEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) error
	GetEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) (*EventDTO, error)
	ListEvents(ctx context.Context, scope sessions.Scope) ([]EventDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams packages the dependencies for the events service.
type ServiceParams struct {
	Repo Repository
	Tx   txRunner
}

type service struct {
	repo Repository
	tx   txRunner
}

// NewService constructs a market events service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("events repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: params.Repo, tx: params.Tx}, nil
}

func (s *service) CreateEvent(ctx context.Context, scope sessions.Scope, input CreateEventInput) (*EventDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event name is required")
	}
	if input.StartsAt != nil && input.EndsAt != nil && input.EndsAt.Before(*input.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event cannot end before it starts")
	}

	event := &models.MarketEvent{
		OwnerUserID: scope.OwnerUserID,
		Name:        name,
		Location:    input.Location,
		StartsAt:    input.StartsAt,
		EndsAt:      input.EndsAt,
	}
	if _, err := s.repo.Create(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create event")
	}
	return eventToDTO(event, 0), nil
}

func (s *service) UpdateEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID, input UpdateEventInput) (*EventDTO, error) {
	event, err := s.loadOwned(ctx, scope, eventID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "event name cannot be empty")
		}
		event.Name = name
	}
	if input.Location != nil {
		event.Location = input.Location
	}
	if input.StartsAt != nil {
		event.StartsAt = input.StartsAt
	}
	if input.EndsAt != nil {
		event.EndsAt = input.EndsAt
	}
	if event.StartsAt != nil && event.EndsAt != nil && event.EndsAt.Before(*event.StartsAt) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event cannot end before it starts")
	}

	if _, err := s.repo.Save(ctx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save event")
	}
	return s.withStagedCount(ctx, event)
}

// DeleteEvent removes the event unless staged inventory is still attached.
// The guard and the delete run in one transaction so a concurrent stage
// cannot slip between them.
func (s *service) DeleteEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		staged, err := txRepo.CountStagedByEvent(ctx, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count staged items")
		}
		if staged > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event still has staged items")
		}
		rows, err := txRepo.Delete(ctx, scope.OwnerUserID, eventID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete event")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
		}
		return nil
	})
}

func (s *service) GetEvent(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) (*EventDTO, error) {
	event, err := s.loadOwned(ctx, scope, eventID)
	if err != nil {
		return nil, err
	}
	return s.withStagedCount(ctx, event)
}

func (s *service) ListEvents(ctx context.Context, scope sessions.Scope) ([]EventDTO, error) {
	rows, err := s.repo.ListByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list events")
	}
	dtos := make([]EventDTO, 0, len(rows))
	for i := range rows {
		dto, err := s.withStagedCount(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, *dto)
	}
	return dtos, nil
}

func (s *service) loadOwned(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) (*models.MarketEvent, error) {
	event, err := s.repo.FindByID(ctx, scope.OwnerUserID, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
	}
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	return event, nil
}

func (s *service) withStagedCount(ctx context.Context, event *models.MarketEvent) (*EventDTO, error) {
	count, err := s.repo.CountStagedByEvent(ctx, event.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count staged items")
	}
	return eventToDTO(event, count), nil
}
