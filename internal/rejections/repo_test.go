package rejections

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
)

func setupRejectionsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:rejections_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS courier_rejections (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  courier_id TEXT NOT NULL,
  reason TEXT,
  rejected_at DATETIME,
  UNIQUE(order_id, courier_id)
);`
	require.NoError(t, db.Exec(ddl).Error)
	return db
}

func TestUpsertIsIdempotentPerCourier(t *testing.T) {
	db := setupRejectionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	courierID := uuid.New()
	first, second := "too far", "busy"

	require.NoError(t, repo.Upsert(ctx, &models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  courierID,
		Reason:     &first,
		RejectedAt: time.Now().UTC().Add(-time.Minute),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  courierID,
		Reason:     &second,
		RejectedAt: time.Now().UTC(),
	}))

	var count int64
	require.NoError(t, db.Model(&models.CourierRejection{}).
		Where("order_id = ? AND courier_id = ?", orderID, courierID).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)

	row, err := repo.FindByOrderAndCourier(ctx, orderID, courierID)
	require.NoError(t, err)
	require.NotNil(t, row.Reason)
	assert.Equal(t, second, *row.Reason)
}

func TestUpsertKeepsPerCourierRows(t *testing.T) {
	db := setupRejectionsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	orderID := uuid.New()
	require.NoError(t, repo.Upsert(ctx, &models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  uuid.New(),
		RejectedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.Upsert(ctx, &models.CourierRejection{
		ID:         uuid.New(),
		OrderID:    orderID,
		CourierID:  uuid.New(),
		RejectedAt: time.Now().UTC(),
	}))

	var count int64
	require.NoError(t, db.Model(&models.CourierRejection{}).
		Where("order_id = ?", orderID).
		Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestFindByOrderAndCourierMissing(t *testing.T) {
	db := setupRejectionsTestDB(t)
	repo := NewRepository(db)

	_, err := repo.FindByOrderAndCourier(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
