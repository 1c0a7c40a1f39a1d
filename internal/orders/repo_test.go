package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mdelarosa/tallypos-backend/pkg/db/models"
	"github.com/mdelarosa/tallypos-backend/pkg/enums"
	"github.com/mdelarosa/tallypos-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_user_id TEXT NOT NULL,
  event_id TEXT,
  device_id TEXT,
  status TEXT NOT NULL DEFAULT 'completed',
  payment_method TEXT NOT NULL,
  total_cents INTEGER NOT NULL DEFAULT 0,
  tendered_cents INTEGER,
  change_cents INTEGER,
  square_payment_id TEXT,
  note TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	lineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  item_id TEXT,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL DEFAULT 0,
  quantity INTEGER NOT NULL DEFAULT 1,
  subtotal_cents INTEGER NOT NULL DEFAULT 0
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(lineItems).Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, ownerID uuid.UUID, eventID *uuid.UUID, createdAt time.Time) models.Order {
	t.Helper()
	order := models.Order{
		ID:            uuid.New(),
		OwnerUserID:   ownerID,
		EventID:       eventID,
		Status:        enums.OrderStatusCompleted,
		PaymentMethod: enums.PaymentMethodCash,
		TotalCents:    500,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	require.NoError(t, db.Create(&order).Error)
	return order
}

func TestListByOwnerPaginatesWithCursor(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ownerID := uuid.New()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	var seeded []models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedOrder(t, db, ownerID, nil, base.Add(time.Duration(i)*time.Minute)))
	}
	seedOrder(t, db, uuid.New(), nil, base)

	firstPage, err := repo.ListByOwner(context.Background(), ownerID, nil, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, firstPage, 3) // limit plus the buffer row
	assert.Equal(t, seeded[4].ID, firstPage[0].ID)
	assert.Equal(t, seeded[3].ID, firstPage[1].ID)

	cursor := pagination.EncodeCursor(pagination.Cursor{
		CreatedAt: firstPage[1].CreatedAt,
		ID:        firstPage[1].ID,
	})
	secondPage, err := repo.ListByOwner(context.Background(), ownerID, nil, pagination.Params{Limit: 2, Cursor: cursor})
	require.NoError(t, err)
	require.Len(t, secondPage, 3)
	assert.Equal(t, seeded[2].ID, secondPage[0].ID)
	assert.Equal(t, seeded[1].ID, secondPage[1].ID)
}

func TestListByOwnerRejectsMalformedCursor(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	_, err := repo.ListByOwner(context.Background(), uuid.New(), nil, pagination.Params{Cursor: "not-base64!"})
	require.Error(t, err)
}

func TestListByOwnerFiltersByEvent(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ownerID := uuid.New()
	eventID := uuid.New()
	base := time.Now().UTC().Truncate(time.Second)

	inEvent := seedOrder(t, db, ownerID, &eventID, base)
	seedOrder(t, db, ownerID, nil, base.Add(time.Minute))

	rows, err := repo.ListByOwner(context.Background(), ownerID, &eventID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, inEvent.ID, rows[0].ID)
}

func TestMarkVoidedOnlyFlipsCompletedOnce(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ownerID := uuid.New()
	order := seedOrder(t, db, ownerID, nil, time.Now().UTC())

	affected, err := repo.MarkVoided(context.Background(), ownerID, order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	affected, err = repo.MarkVoided(context.Background(), ownerID, order.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)
}
