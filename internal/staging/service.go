package staging

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

// Service exposes the staged inventory lifecycle: stage items for an event,
// then release them back or convert them into live inventory.
type Service interface {
	StageItem(ctx context.Context, scope sessions.Scope, eventID uuid.UUID, input StageItemInput) (*StagedItemDTO, error)
	ListStaged(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) ([]StagedItemDTO, error)
	ReleaseItem(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) (*StagedItemDTO, error)
	ConvertItem(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) (*StagedItemDTO, error)
	DeleteStaged(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type planLimiter interface {
	LimitForState(ctx context.Context, state plans.State) (*int, error)
}

// ServiceParams packages the dependencies for the staging service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Plans  planLimiter
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	plans  planLimiter
}

// NewService constructs a staging service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("staging repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan limiter required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		plans:  params.Plans,
	}, nil
}

// StageItem adds a staged row to the event. Staged rows share the plan quota
// with live inventory, so the gate counts both.
func (s *service) StageItem(ctx context.Context, scope sessions.Scope, eventID uuid.UUID, input StageItemInput) (*StagedItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.Quantity < 0 || input.PriceCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity and price must be non-negative")
	}

	event, err := s.repo.FindEvent(ctx, scope.OwnerUserID, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load event")
	}
	if event == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}

	limit, err := s.plans.LimitForState(ctx, scope.Plan)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		live, err := s.repo.CountInventoryByOwner(ctx, scope.OwnerUserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count live items")
		}
		staged, err := s.repo.CountStagedByOwner(ctx, scope.OwnerUserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count staged items")
		}
		if live+staged >= int64(*limit) {
			return nil, pkgerrors.New(pkgerrors.CodePlanLimit, "item limit reached for the current plan")
		}
	}

	item := &models.StagedItem{
		OwnerUserID: scope.OwnerUserID,
		EventID:     eventID,
		Name:        name,
		SKU:         input.SKU,
		Quantity:    input.Quantity,
		PriceCents:  input.PriceCents,
		Status:      enums.StagedItemStatusStaged,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create staged item")
		}
		return s.emitStagedChange(ctx, tx, enums.EventStagedItemInserted, item)
	})
	if err != nil {
		return nil, err
	}
	return stagedToDTO(item), nil
}

func (s *service) ListStaged(ctx context.Context, scope sessions.Scope, eventID uuid.UUID) ([]StagedItemDTO, error) {
	rows, err := s.repo.ListByEvent(ctx, scope.OwnerUserID, eventID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list staged items")
	}
	dtos := make([]StagedItemDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *stagedToDTO(&rows[i]))
	}
	return dtos, nil
}

// ReleaseItem moves a staged row back to untracked. Only rows still in the
// staged state can be released.
func (s *service) ReleaseItem(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) (*StagedItemDTO, error) {
	item, err := s.loadStaged(ctx, scope, stagedID)
	if err != nil {
		return nil, err
	}

	item.Status = enums.StagedItemStatusReleased
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save staged item")
		}
		return s.emitStagedChange(ctx, tx, enums.EventStagedItemUpdated, item)
	})
	if err != nil {
		return nil, err
	}
	return stagedToDTO(item), nil
}

// ConvertItem materializes a staged row into live inventory. The new live
// row spends a quota slot, so the live-item gate applies before the insert.
func (s *service) ConvertItem(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) (*StagedItemDTO, error) {
	item, err := s.loadStaged(ctx, scope, stagedID)
	if err != nil {
		return nil, err
	}

	limit, err := s.plans.LimitForState(ctx, scope.Plan)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		live, err := s.repo.CountInventoryByOwner(ctx, scope.OwnerUserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count live items")
		}
		if live >= int64(*limit) {
			return nil, pkgerrors.New(pkgerrors.CodePlanLimit, "item limit reached for the current plan")
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		live := &models.InventoryItem{
			OwnerUserID: scope.OwnerUserID,
			Name:        item.Name,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCents,
		}
		if _, err := txRepo.CreateInventoryItem(ctx, live); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create live item")
		}

		item.Status = enums.StagedItemStatusConverted
		item.ConvertedItemID = &live.ID
		if _, err := txRepo.Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save staged item")
		}

		updatedAt := live.UpdatedAt
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemInserted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   live.ID,
			OwnerUserID:   live.OwnerUserID,
			Data: payloads.ItemChangeEvent{
				ItemID:      live.ID,
				OwnerUserID: live.OwnerUserID,
				Name:        live.Name,
				SKU:         live.SKU,
				Quantity:    live.Quantity,
				PriceCents:  live.PriceCents,
				UpdatedAt:   &updatedAt,
			},
		}); err != nil {
			return err
		}
		return s.emitStagedChange(ctx, tx, enums.EventStagedItemUpdated, item)
	})
	if err != nil {
		return nil, err
	}
	return stagedToDTO(item), nil
}

func (s *service) DeleteStaged(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.Delete(ctx, scope.OwnerUserID, stagedID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete staged item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "staged item not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStagedItemDeleted,
			AggregateType: enums.AggregateStagedItem,
			AggregateID:   stagedID,
			OwnerUserID:   scope.OwnerUserID,
			Data: payloads.StagedItemChangeEvent{
				StagedItemID: stagedID,
				OwnerUserID:  scope.OwnerUserID,
			},
		})
	})
}

func (s *service) loadStaged(ctx context.Context, scope sessions.Scope, stagedID uuid.UUID) (*models.StagedItem, error) {
	item, err := s.repo.FindByID(ctx, scope.OwnerUserID, stagedID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load staged item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "staged item not found")
	}
	if item.Status != enums.StagedItemStatusStaged {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("staged item is already %s", item.Status))
	}
	return item, nil
}

func (s *service) emitStagedChange(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, item *models.StagedItem) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateStagedItem,
		AggregateID:   item.ID,
		OwnerUserID:   item.OwnerUserID,
		Data: payloads.StagedItemChangeEvent{
			StagedItemID: item.ID,
			OwnerUserID:  item.OwnerUserID,
			EventID:      item.EventID,
			Name:         item.Name,
			Quantity:     item.Quantity,
			Status:       item.Status.String(),
			ConvertedTo:  item.ConvertedItemID,
		},
	})
}
