package rejections

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
)

// Repository defines persistence operations for courier rejections.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, rejection *models.CourierRejection) error
	FindByOrderAndCourier(ctx context.Context, orderID, courierID uuid.UUID) (*models.CourierRejection, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a courier rejection repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Upsert inserts the refusal or, when the courier already refused this
// order, refreshes reason and rejected_at on the existing row.
func (r *repository) Upsert(ctx context.Context, rejection *models.CourierRejection) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "order_id"}, {Name: "courier_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"reason":      rejection.Reason,
			"rejected_at": rejection.RejectedAt,
		}),
	}).Create(rejection).Error
}

func (r *repository) FindByOrderAndCourier(ctx context.Context, orderID, courierID uuid.UUID) (*models.CourierRejection, error) {
	var rejection models.CourierRejection
	err := r.db.WithContext(ctx).
		Where("order_id = ? AND courier_id = ?", orderID, courierID).
		First(&rejection).Error
	if err != nil {
		return nil, err
	}
	return &rejection, nil
}
