package enforcement

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups dependencies for the enforcement service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Logger *logger.Logger
}

// Service trims a vendor's inventory down to a reduced plan cap. Live rows
// and staged rows share one quota, live rows taking priority.
type Service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logger *logger.Logger
}

// Result reports what a trim kept and removed.
type Result struct {
	KeptInventory    int `json:"keptInventory"`
	RemovedInventory int `json:"removedInventory"`
	KeptStaged       int `json:"keptStaged"`
	RemovedStaged    int `json:"removedStaged"`
}

// NewService builds an enforcement service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("repo is required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner is required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher is required")
	}
	return &Service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		logger: params.Logger,
	}, nil
}

// Enforce prunes the owner's rows to fit limit, keeping the most recently
// touched live items first and granting staged rows whatever slots remain.
// All deletes and the change-feed event commit in one transaction. Callers
// must gate on the plan: an uncapped tier should never reach this path.
func (s *Service) Enforce(ctx context.Context, userID uuid.UUID, limit int, triggeredByWebhook bool) (*Result, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must be non-negative")
	}

	var result Result
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		items, err := txRepo.ListInventoryByOwner(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list inventory")
		}
		keptItems, removedItems := splitAtLimit(rankInventory(items), limit)
		if _, err := txRepo.DeleteInventoryByIDs(ctx, userID, removedItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete inventory")
		}

		remainingSlots := limit - len(keptItems)
		if remainingSlots < 0 {
			remainingSlots = 0
		}

		staged, err := txRepo.ListStagedByOwner(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: list staged items")
		}
		keptStaged, removedStaged := splitAtLimit(rankStaged(staged), remainingSlots)
		if _, err := txRepo.DeleteStagedByIDs(ctx, userID, removedStaged); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: delete staged items")
		}

		result = Result{
			KeptInventory:    len(keptItems),
			RemovedInventory: len(removedItems),
			KeptStaged:       len(keptStaged),
			RemovedStaged:    len(removedStaged),
		}

		if result.RemovedInventory == 0 && result.RemovedStaged == 0 {
			return nil
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPlanLimitEnforced,
			AggregateType: enums.AggregateSubscription,
			AggregateID:   userID,
			OwnerUserID:   userID,
			Data: payloads.PlanLimitEnforcedEvent{
				UserID:             userID,
				Limit:              limit,
				RemovedItems:       result.RemovedInventory,
				RemovedStaged:      result.RemovedStaged,
				KeptItems:          result.KeptInventory,
				KeptStaged:         result.KeptStaged,
				EnforcedAt:         time.Now().UTC(),
				TriggeredByWebhook: triggeredByWebhook,
			},
		})
	}); err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "enforce plan limit")
	}

	if s.logger != nil && (result.RemovedInventory > 0 || result.RemovedStaged > 0) {
		logCtx := s.logger.WithFields(ctx, map[string]any{
			"user_id":        userID.String(),
			"limit":          limit,
			"removed_items":  result.RemovedInventory,
			"removed_staged": result.RemovedStaged,
		})
		s.logger.Info(logCtx, "plan limit enforced")
	}

	return &result, nil
}

func rankInventory(items []models.InventoryItem) []rankedRow {
	rows := make([]rankedRow, len(items))
	for i, item := range items {
		rows[i] = rankedRow{
			id:      item.ID,
			created: createdKey(item.CreatedAt),
			score:   recencyScore(item.CreatedAt, item.UpdatedAt),
		}
	}
	sortByRecency(rows)
	return rows
}

func rankStaged(items []models.StagedItem) []rankedRow {
	rows := make([]rankedRow, len(items))
	for i, item := range items {
		rows[i] = rankedRow{
			id:      item.ID,
			created: createdKey(item.CreatedAt),
			score:   recencyScore(item.CreatedAt, item.UpdatedAt),
		}
	}
	sortByRecency(rows)
	return rows
}
