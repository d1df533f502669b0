package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/enums"
)

// Order is the unit of dispatch work. Status and courier assignment are the
// single source of truth for the dispatch flow; the claim path mutates them
// through a conditional update only.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID        uuid.UUID         `gorm:"column:customer_id;type:uuid;not null"`
	OrderType         enums.OrderType   `gorm:"column:order_type;type:text;not null;default:'product_order'"`
	Status            enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	AssignedCourierID *uuid.UUID        `gorm:"column:assigned_courier_id;type:uuid"`
	SubtotalCents     int               `gorm:"column:subtotal_cents;not null"`
	DeliveryFeeCents  int               `gorm:"column:delivery_fee_cents;not null;default:0"`
	TotalCents        int               `gorm:"column:total_cents;not null"`
	DeliveryAddress   string            `gorm:"column:delivery_address;not null"`
	EstimatedMinutes  *int              `gorm:"column:estimated_delivery_minutes"`
	InternalNotes     *string           `gorm:"column:internal_notes"`
	CourierAcceptedAt *time.Time        `gorm:"column:courier_accepted_at"`
	DeliveredAt       *time.Time        `gorm:"column:delivered_at"`
	CanceledAt        *time.Time        `gorm:"column:canceled_at"`
	Items             []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
	DeletedAt         gorm.DeletedAt    `gorm:"column:deleted_at;index"`
}
