package models

import (
	"time"

	"github.com/google/uuid"
)

// CourierRejection records a courier's refusal of an order. The
// (order_id, courier_id) pair is unique; re-refusals upsert reason and
// timestamp instead of multiplying rows. Rows persist for the order's
// lifetime and keep the order out of that courier's available list.
type CourierRejection struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID    uuid.UUID `gorm:"column:order_id;type:uuid;not null;uniqueIndex:uq_courier_rejections_order_courier"`
	CourierID  uuid.UUID `gorm:"column:courier_id;type:uuid;not null;uniqueIndex:uq_courier_rejections_order_courier"`
	Reason     *string   `gorm:"column:reason"`
	RejectedAt time.Time `gorm:"column:rejected_at;autoCreateTime"`
}
