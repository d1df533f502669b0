package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	"github.com/dgarciab/entregalo-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	// one pooled connection keeps concurrent claims serialized instead of
	// tripping sqlite's shared-cache busy errors
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  order_type TEXT NOT NULL DEFAULT 'product_order',
  status TEXT NOT NULL DEFAULT 'pending',
  assigned_courier_id TEXT,
  subtotal_cents INTEGER NOT NULL,
  delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  delivery_address TEXT NOT NULL,
  estimated_delivery_minutes INTEGER,
  internal_notes TEXT,
  courier_accepted_at DATETIME,
  delivered_at DATETIME,
  canceled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME,
  deleted_at DATETIME
);`
	orderItems := `
CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME
);`
	courierRejections := `
CREATE TABLE IF NOT EXISTS courier_rejections (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  courier_id TEXT NOT NULL,
  reason TEXT,
  rejected_at DATETIME,
  UNIQUE(order_id, courier_id)
);`
	orderStatusLogs := `
CREATE TABLE IF NOT EXISTS order_status_logs (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  previous_status TEXT NOT NULL,
  new_status TEXT NOT NULL,
  changed_by_user_id TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderItems).Error)
	require.NoError(t, db.Exec(courierRejections).Error)
	require.NoError(t, db.Exec(orderStatusLogs).Error)
	return db
}

func createPendingOrder(t *testing.T, db *gorm.DB, created time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		ID:               uuid.New(),
		CustomerID:       uuid.New(),
		OrderType:        enums.OrderTypeProduct,
		Status:           enums.OrderStatusPending,
		SubtotalCents:    1500,
		DeliveryFeeCents: 300,
		TotalCents:       1800,
		DeliveryAddress:  "Calle 5 #12-34",
		CreatedAt:        created,
		UpdatedAt:        created,
	}
	require.NoError(t, db.Create(order).Error)

	item := &models.OrderItem{
		ID:             uuid.New(),
		OrderID:        order.ID,
		Name:           "Empanadas x6",
		UnitPriceCents: 1500,
		Qty:            1,
		TotalCents:     1500,
		CreatedAt:      created,
	}
	require.NoError(t, db.Create(item).Error)
	return order
}

func TestClaimAffectsExactlyOneRow(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := createPendingOrder(t, db, time.Now().UTC())

	courierA := uuid.New()
	courierB := uuid.New()

	affected, err := repo.Claim(ctx, order.ID, courierA, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	// The guard no longer matches, so the second claim is a clean zero.
	affected, err = repo.Claim(ctx, order.ID, courierB, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.AssignedCourierID)
	assert.Equal(t, courierA, *stored.AssignedCourierID)
	assert.NotNil(t, stored.CourierAcceptedAt)
}

func TestClaimConcurrentCouriersOneWinner(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	order := createPendingOrder(t, db, time.Now().UTC())

	const couriers = 8
	couriersIDs := make([]uuid.UUID, couriers)
	affected := make([]int64, couriers)
	errs := make([]error, couriers)

	var wg sync.WaitGroup
	for i := 0; i < couriers; i++ {
		couriersIDs[i] = uuid.New()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			affected[i], errs[i] = repo.Claim(ctx, order.ID, couriersIDs[i], time.Now().UTC())
		}(i)
	}
	wg.Wait()

	winners := 0
	var winner uuid.UUID
	for i := 0; i < couriers; i++ {
		require.NoError(t, errs[i])
		if affected[i] == 1 {
			winners++
			winner = couriersIDs[i]
		} else {
			assert.Equal(t, int64(0), affected[i])
		}
	}
	require.Equal(t, 1, winners, "exactly one claim may win")

	stored, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusConfirmed, stored.Status)
	require.NotNil(t, stored.AssignedCourierID)
	assert.Equal(t, winner, *stored.AssignedCourierID)
}

func TestClaimUnknownOrder(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)

	affected, err := repo.Claim(context.Background(), uuid.New(), uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestListAvailableExcludesRefused(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	first := createPendingOrder(t, db, base)
	second := createPendingOrder(t, db, base.Add(time.Minute))

	courierC := uuid.New()
	courierD := uuid.New()
	reason := "too far"
	require.NoError(t, db.Create(&models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    first.ID,
		CourierID:  courierC,
		Reason:     &reason,
		RejectedAt: time.Now().UTC(),
	}).Error)

	listC, err := repo.ListAvailable(ctx, courierC, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, listC.Orders, 1)
	assert.Equal(t, second.ID, listC.Orders[0].ID)

	// The refusal only hides the order from the refusing courier.
	listD, err := repo.ListAvailable(ctx, courierD, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, listD.Orders, 2)
	assert.Equal(t, first.ID, listD.Orders[0].ID, "oldest order should come first")
	assert.Equal(t, second.ID, listD.Orders[1].ID)
}

func TestListAvailableExcludesClaimedAndDeleted(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	claimed := createPendingOrder(t, db, base)
	deleted := createPendingOrder(t, db, base.Add(time.Minute))
	open := createPendingOrder(t, db, base.Add(2*time.Minute))

	_, err := repo.Claim(ctx, claimed.ID, uuid.New(), time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, db.Delete(&models.Order{}, "id = ?", deleted.ID).Error)

	list, err := repo.ListAvailable(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, open.ID, list.Orders[0].ID)
}

func TestListAvailablePagination(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		order := createPendingOrder(t, db, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, order.ID)
	}

	courierID := uuid.New()
	page, err := repo.ListAvailable(ctx, courierID, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Orders, 2)
	require.NotEmpty(t, page.NextCursor)
	assert.Equal(t, ids[0], page.Orders[0].ID)
	assert.Equal(t, ids[1], page.Orders[1].ID)

	rest, err := repo.ListAvailable(ctx, courierID, pagination.Params{Limit: 2, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Equal(t, ids[2], rest.Orders[0].ID)
	assert.Empty(t, rest.NextCursor)
}

func TestListAssignedAndDelivered(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)
	courierID := uuid.New()

	active := createPendingOrder(t, db, base)
	done := createPendingOrder(t, db, base.Add(time.Minute))
	for _, order := range []*models.Order{active, done} {
		_, err := repo.Claim(ctx, order.ID, courierID, time.Now().UTC())
		require.NoError(t, err)
	}
	require.NoError(t, repo.UpdateOrder(ctx, done.ID, map[string]any{
		"status":       enums.OrderStatusDelivered,
		"delivered_at": time.Now().UTC(),
	}))

	assigned, err := repo.ListAssigned(ctx, courierID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, assigned.Orders, 1)
	assert.Equal(t, active.ID, assigned.Orders[0].ID)

	delivered, err := repo.ListDelivered(ctx, courierID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, delivered.Orders, 1)
	assert.Equal(t, done.ID, delivered.Orders[0].ID)
}

func TestListRefusedJoinsRejectionMetadata(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := createPendingOrder(t, db, time.Now().UTC().Add(-time.Hour))
	courierID := uuid.New()
	reason := "too far"
	require.NoError(t, db.Create(&models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    order.ID,
		CourierID:  courierID,
		Reason:     &reason,
		RejectedAt: time.Now().UTC(),
	}).Error)

	list, err := repo.ListRefused(ctx, courierID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, order.ID, list.Orders[0].ID)
	require.NotNil(t, list.Orders[0].RefusalReason)
	assert.Equal(t, reason, *list.Orders[0].RefusalReason)
	assert.False(t, list.Orders[0].RefusedAt.IsZero())

	other, err := repo.ListRefused(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, other.Orders)
}

func TestListByCustomer(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := createPendingOrder(t, db, time.Now().UTC().Add(-time.Hour))
	createPendingOrder(t, db, time.Now().UTC())

	list, err := repo.ListByCustomer(ctx, order.CustomerID, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, order.ID, list.Orders[0].ID)
	require.Len(t, list.Orders[0].Items, 1)
	assert.Equal(t, "Empanadas x6", list.Orders[0].Items[0].Name)
}

func TestAppendStatusLog(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := createPendingOrder(t, db, time.Now().UTC())
	actor := uuid.New()
	require.NoError(t, repo.AppendStatusLog(ctx, &models.OrderStatusLog{
		ID:              uuid.New(),
		OrderID:         order.ID,
		PreviousStatus:  enums.OrderStatusPending,
		NewStatus:       enums.OrderStatusConfirmed,
		ChangedByUserID: &actor,
	}))

	var rows []models.OrderStatusLog
	require.NoError(t, db.Where("order_id = ?", order.ID).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.OrderStatusPending, rows[0].PreviousStatus)
	assert.Equal(t, enums.OrderStatusConfirmed, rows[0].NewStatus)
}
