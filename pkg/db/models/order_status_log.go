package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/dgarciab/entregalo-backend/pkg/enums"
)

// OrderStatusLog is the append-only audit trail of status mutations.
// ChangedByUserID is null for system-driven changes. Rows are never
// updated or deleted.
type OrderStatusLog struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID         uuid.UUID         `gorm:"column:order_id;type:uuid;not null;index"`
	PreviousStatus  enums.OrderStatus `gorm:"column:previous_status;type:text;not null"`
	NewStatus       enums.OrderStatus `gorm:"column:new_status;type:text;not null"`
	ChangedByUserID *uuid.UUID        `gorm:"column:changed_by_user_id;type:uuid"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
}
