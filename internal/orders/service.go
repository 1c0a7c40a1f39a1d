package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/internal/sessions"
	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	pkgerrors "github.com/mdelarosa/tallypos-backend/pkg/errors"
	"github.com/mdelarosa/tallypos-backend/pkg/logger"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox"
	"github.com/mdelarosa/tallypos-backend/pkg/outbox/payloads"
	"github.com/mdelarosa/tallypos-backend/pkg/pagination"
)

// Service records sales against the resolved owner's inventory.
type Service interface {
	CreateOrder(ctx context.Context, scope sessions.Scope, deviceID uuid.UUID, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, scope sessions.Scope, orderID uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, scope sessions.Scope, eventID *uuid.UUID, page pagination.Params) (*OrderPage, error)
	VoidOrder(ctx context.Context, scope sessions.Scope, orderID uuid.UUID) (*OrderDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CardChargeParams carries what the payment processor needs for one tender.
type CardChargeParams struct {
	AmountCents int64
	SourceID    string
	ReferenceID string
	Note        string
}

type cardCharger interface {
	ChargeCard(ctx context.Context, params CardChargeParams) (string, error)
}

// ServiceParams packages the dependencies for the orders service.
type ServiceParams struct {
	Repo    Repository
	Tx      txRunner
	Outbox  outboxPublisher
	Charger cardCharger
	Logger  *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	charger cardCharger
	logger  *logger.Logger
}

// NewService constructs an orders service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		outbox:  params.Outbox,
		charger: params.Charger,
		logger:  params.Logger,
	}, nil
}

// CreateOrder records a sale. The order insert and every stock decrement run
// in one transaction so a failed decrement voids the whole sale. Card tenders
// are charged before the transaction opens; a charge that lands on a failed
// transaction is logged with its payment id for manual reconciliation.
func (s *service) CreateOrder(ctx context.Context, scope sessions.Scope, deviceID uuid.UUID, input CreateOrderInput) (*OrderDTO, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order needs at least one line")
	}

	total := 0
	lines := make([]models.OrderLineItem, 0, len(input.Lines))
	for _, line := range input.Lines {
		name := strings.TrimSpace(line.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line name is required")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		if line.UnitPriceCents < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "line price must be non-negative")
		}
		subtotal := line.UnitPriceCents * line.Quantity
		total += subtotal
		lines = append(lines, models.OrderLineItem{
			ItemID:         line.ItemID,
			Name:           name,
			UnitPriceCents: line.UnitPriceCents,
			Quantity:       line.Quantity,
			SubtotalCents:  subtotal,
		})
	}

	order := &models.Order{
		OwnerUserID:   scope.OwnerUserID,
		EventID:       input.EventID,
		Status:        enums.OrderStatusCompleted,
		PaymentMethod: input.PaymentMethod,
		TotalCents:    total,
		Note:          input.Note,
		LineItems:     lines,
	}
	if deviceID != uuid.Nil {
		order.DeviceID = &deviceID
	}

	switch input.PaymentMethod {
	case enums.PaymentMethodCash:
		if input.TenderedCents == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount is required for cash")
		}
		if *input.TenderedCents < total {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "tendered amount is less than the total")
		}
		change := *input.TenderedCents - total
		order.TenderedCents = input.TenderedCents
		order.ChangeCents = &change
	case enums.PaymentMethodCard:
		paymentID, err := s.chargeCard(ctx, scope, total, input)
		if err != nil {
			return nil, err
		}
		order.SquarePaymentID = &paymentID
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		for _, line := range order.LineItems {
			if line.ItemID == nil {
				continue
			}
			rows, err := txRepo.DecrementStock(ctx, scope.OwnerUserID, *line.ItemID, line.Quantity)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decrement stock")
			}
			if rows == 0 {
				return pkgerrors.New(pkgerrors.CodeStateConflict,
					fmt.Sprintf("insufficient stock for %s", line.Name))
			}
		}
		if _, err := txRepo.Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderRecorded,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OwnerUserID:   order.OwnerUserID,
			Data:          recordedPayload(order),
		})
	})
	if err != nil {
		if order.SquarePaymentID != nil {
			s.logger.Error(s.logger.WithFields(ctx, map[string]any{
				"square_payment_id": *order.SquarePaymentID,
				"owner_user_id":     scope.OwnerUserID.String(),
			}), "order persist failed after card charge", err)
		}
		return nil, err
	}
	return orderToDTO(order), nil
}

func (s *service) GetOrder(ctx context.Context, scope sessions.Scope, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}
	return orderToDTO(order), nil
}

func (s *service) ListOrders(ctx context.Context, scope sessions.Scope, eventID *uuid.UUID, page pagination.Params) (*OrderPage, error) {
	rows, err := s.repo.ListByOwner(ctx, scope.OwnerUserID, eventID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}

	limit := pagination.NormalizeLimit(page.Limit)
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	dtos := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		dtos = append(dtos, *orderToDTO(&rows[i]))
	}
	return &OrderPage{Orders: dtos, NextCursor: next}, nil
}

// VoidOrder flips a completed order to voided and puts the sold stock back,
// all in one transaction.
func (s *service) VoidOrder(ctx context.Context, scope sessions.Scope, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.loadOwned(ctx, scope, orderID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		rows, err := txRepo.MarkVoided(ctx, scope.OwnerUserID, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "void order")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only completed orders can be voided")
		}
		for _, line := range order.LineItems {
			if line.ItemID == nil {
				continue
			}
			if err := txRepo.RestoreStock(ctx, scope.OwnerUserID, *line.ItemID, line.Quantity); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "restore stock")
			}
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderVoided,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			OwnerUserID:   order.OwnerUserID,
			Data: payloads.OrderVoidedEvent{
				OrderID:     order.ID,
				OwnerUserID: order.OwnerUserID,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusVoided
	return orderToDTO(order), nil
}

func (s *service) chargeCard(ctx context.Context, scope sessions.Scope, total int, input CreateOrderInput) (string, error) {
	if s.charger == nil {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "card payments are not configured")
	}
	if input.SquareSourceID == nil || strings.TrimSpace(*input.SquareSourceID) == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "square source id is required for card payments")
	}
	note := ""
	if input.Note != nil {
		note = *input.Note
	}
	paymentID, err := s.charger.ChargeCard(ctx, CardChargeParams{
		AmountCents: int64(total),
		SourceID:    *input.SquareSourceID,
		ReferenceID: scope.OwnerUserID.String(),
		Note:        note,
	})
	if err != nil {
		return "", err
	}
	if paymentID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "payment processor returned no payment id")
	}
	return paymentID, nil
}

func (s *service) loadOwned(ctx context.Context, scope sessions.Scope, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, scope.OwnerUserID, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load order")
	}
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func recordedPayload(order *models.Order) payloads.OrderRecordedEvent {
	lines := make([]payloads.OrderLineData, 0, len(order.LineItems))
	for _, line := range order.LineItems {
		lines = append(lines, payloads.OrderLineData{
			ItemID:        line.ItemID,
			Name:          line.Name,
			Quantity:      line.Quantity,
			SubtotalCents: line.SubtotalCents,
		})
	}
	return payloads.OrderRecordedEvent{
		OrderID:       order.ID,
		OwnerUserID:   order.OwnerUserID,
		EventID:       order.EventID,
		PaymentMethod: order.PaymentMethod.String(),
		TotalCents:    order.TotalCents,
		Lines:         lines,
	}
}
