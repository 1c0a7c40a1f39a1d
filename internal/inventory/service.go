package inventory

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/plans"
	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/config"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
)

// Service exposes owner-scoped inventory management operations.
type Service interface {
	CreateItem(ctx context.Context, scope sessions.Scope, input CreateItemInput) (*ItemDTO, error)
	UpdateItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error)
	DeleteItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID) error
	GetItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID) (*ItemDTO, error)
	ListItems(ctx context.Context, scope sessions.Scope) ([]ItemDTO, error)
	ListLowStock(ctx context.Context, scope sessions.Scope) ([]ItemDTO, error)
	AdjustQuantity(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, input AdjustQuantityInput) (*ItemDTO, error)
	PresignImageUpload(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, contentType string) (*ImageUploadDTO, error)
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

type urlSigner interface {
	DefaultBucket() string
	SignedURL(bucket, object, method, contentType string, expires time.Duration) (string, error)
}

// ServiceParams packages the dependencies for the inventory service.
type ServiceParams struct {
	Repo   Repository
	Tx     txRunner
	Outbox outboxPublisher
	Plans  planLimiter
	Signer urlSigner
	Config config.GCSConfig
	Logger *logger.Logger
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	plans  planLimiter
	signer urlSigner
	gcsCfg config.GCSConfig
	logger *logger.Logger
}

// NewService constructs an inventory service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
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
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:   params.Repo,
		tx:     params.Tx,
		outbox: params.Outbox,
		plans:  params.Plans,
		signer: params.Signer,
		gcsCfg: params.Config,
		logger: params.Logger,
	}, nil
}

// CreateItem inserts a live item after checking the owner's plan quota. The
// quota applies to the owner of the scope, so devices inside a share session
// spend the host's allowance.
func (s *service) CreateItem(ctx context.Context, scope sessions.Scope, input CreateItemInput) (*ItemDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name is required")
	}
	if input.Quantity < 0 || input.PriceCents < 0 || input.LowStockThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity, price, and threshold must be non-negative")
	}

	limit, err := s.plans.LimitForState(ctx, scope.Plan)
	if err != nil {
		return nil, err
	}
	if limit != nil {
		count, err := s.repo.CountByOwner(ctx, scope.OwnerUserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count items")
		}
		if count >= int64(*limit) {
			return nil, pkgerrors.New(pkgerrors.CodePlanLimit, "item limit reached for the current plan")
		}
	}

	item := &models.InventoryItem{
		OwnerUserID:       scope.OwnerUserID,
		Name:              name,
		SKU:               input.SKU,
		Quantity:          input.Quantity,
		PriceCents:        input.PriceCents,
		LowStockThreshold: input.LowStockThreshold,
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Create(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create item")
		}
		return s.emitItemChange(ctx, tx, enums.EventItemInserted, item)
	})
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, item), nil
}

func (s *service) UpdateItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, input UpdateItemInput) (*ItemDTO, error) {
	item, err := s.loadOwned(ctx, scope, itemID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name cannot be empty")
		}
		item.Name = name
	}
	if input.SKU != nil {
		item.SKU = input.SKU
	}
	if input.Quantity != nil {
		if *input.Quantity < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
		}
		item.Quantity = *input.Quantity
	}
	if input.PriceCents != nil {
		if *input.PriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		item.PriceCents = *input.PriceCents
	}
	if input.LowStockThreshold != nil {
		if *input.LowStockThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "threshold must be non-negative")
		}
		item.LowStockThreshold = *input.LowStockThreshold
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := txRepo.Save(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save item")
		}
		return s.emitItemChange(ctx, tx, enums.EventItemUpdated, item)
	})
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, item), nil
}

func (s *service) DeleteItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.Delete(ctx, scope.OwnerUserID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete item")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventItemDeleted,
			AggregateType: enums.AggregateInventoryItem,
			AggregateID:   itemID,
			OwnerUserID:   scope.OwnerUserID,
			Data: payloads.ItemChangeEvent{
				ItemID:      itemID,
				OwnerUserID: scope.OwnerUserID,
			},
		})
	})
}

func (s *service) GetItem(ctx context.Context, scope sessions.Scope, itemID uuid.UUID) (*ItemDTO, error) {
	item, err := s.loadOwned(ctx, scope, itemID)
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, item), nil
}

func (s *service) ListItems(ctx context.Context, scope sessions.Scope) ([]ItemDTO, error) {
	rows, err := s.repo.ListByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list items")
	}
	return s.toDTOs(ctx, rows), nil
}

func (s *service) ListLowStock(ctx context.Context, scope sessions.Scope) ([]ItemDTO, error) {
	rows, err := s.repo.ListLowStockByOwner(ctx, scope.OwnerUserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list low stock")
	}
	return s.toDTOs(ctx, rows), nil
}

// AdjustQuantity moves stock by a signed delta. Decrements that would push
// the count below zero are rejected rather than clamped so tills notice
// double-scans.
func (s *service) AdjustQuantity(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, input AdjustQuantityInput) (*ItemDTO, error) {
	if input.Delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}

	var updated *models.InventoryItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.AdjustQuantity(ctx, scope.OwnerUserID, itemID, input.Delta)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "adjust quantity")
		}
		if rows == 0 {
			existing, err := txRepo.FindByID(ctx, scope.OwnerUserID, itemID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
			}
			if existing == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
			}
			return pkgerrors.New(pkgerrors.CodeStateConflict, "quantity cannot go below zero")
		}
		updated, err = txRepo.FindByID(ctx, scope.OwnerUserID, itemID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload item")
		}
		if updated == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
		}
		return s.emitItemChange(ctx, tx, enums.EventItemUpdated, updated)
	})
	if err != nil {
		return nil, err
	}
	return s.toDTO(ctx, updated), nil
}

// PresignImageUpload reserves an object key for the item image and returns a
// signed PUT URL for the device to upload against.
func (s *service) PresignImageUpload(ctx context.Context, scope sessions.Scope, itemID uuid.UUID, contentType string) (*ImageUploadDTO, error) {
	if s.signer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "image storage is not configured")
	}
	if contentType == "" || !strings.HasPrefix(contentType, "image/") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content type must be an image")
	}

	item, err := s.loadOwned(ctx, scope, itemID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("inventory/%s/%s/%s", scope.OwnerUserID, item.ID, uuid.New())
	uploadURL, err := s.signer.SignedURL(s.signer.DefaultBucket(), key, http.MethodPut, contentType, s.gcsCfg.UploadURLExpiry)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sign upload url")
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.SetImageKey(ctx, scope.OwnerUserID, itemID, key); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store image key")
		}
		item.ImageKey = &key
		return s.emitItemChange(ctx, tx, enums.EventItemUpdated, item)
	})
	if err != nil {
		return nil, err
	}

	return &ImageUploadDTO{UploadURL: uploadURL, ImageKey: key}, nil
}

func (s *service) loadOwned(ctx context.Context, scope sessions.Scope, itemID uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.repo.FindByID(ctx, scope.OwnerUserID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load item")
	}
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found")
	}
	return item, nil
}

func (s *service) emitItemChange(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, item *models.InventoryItem) error {
	updatedAt := item.UpdatedAt
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateInventoryItem,
		AggregateID:   item.ID,
		OwnerUserID:   item.OwnerUserID,
		Data: payloads.ItemChangeEvent{
			ItemID:      item.ID,
			OwnerUserID: item.OwnerUserID,
			Name:        item.Name,
			SKU:         item.SKU,
			Quantity:    item.Quantity,
			PriceCents:  item.PriceCents,
			UpdatedAt:   &updatedAt,
		},
	})
}

func (s *service) toDTO(ctx context.Context, item *models.InventoryItem) *ItemDTO {
	return itemToDTO(item, s.downloadURL(ctx, item))
}

func (s *service) toDTOs(ctx context.Context, rows []models.InventoryItem) []ItemDTO {
	dtos := make([]ItemDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *s.toDTO(ctx, &rows[i]))
	}
	return dtos
}

func (s *service) downloadURL(ctx context.Context, item *models.InventoryItem) *string {
	if item == nil || item.ImageKey == nil || s.signer == nil {
		return nil
	}
	url, err := s.signer.SignedURL(s.signer.DefaultBucket(), *item.ImageKey, http.MethodGet, "", s.gcsCfg.DownloadURLExpiry)
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "error", err.Error()), "sign image download url failed")
		return nil
	}
	return &url
}
