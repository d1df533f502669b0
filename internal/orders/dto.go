package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
)

// OrderItemView exposes a single line item of an order.
type OrderItemView struct {
	ID             uuid.UUID  `json:"id"`
	ProductID      *uuid.UUID `json:"product_id,omitempty"`
	Name           string     `json:"name"`
	UnitPriceCents int        `json:"unit_price_cents"`
	Qty            int        `json:"qty"`
	TotalCents     int        `json:"total_cents"`
}

// OrderView is the shape of an order as returned by detail and list endpoints.
type OrderView struct {
	ID                uuid.UUID         `json:"id"`
	CustomerID        uuid.UUID         `json:"customer_id"`
	OrderType         enums.OrderType   `json:"order_type"`
	Status            enums.OrderStatus `json:"status"`
	AssignedCourierID *uuid.UUID        `json:"assigned_courier_id,omitempty"`
	SubtotalCents     int               `json:"subtotal_cents"`
	DeliveryFeeCents  int               `json:"delivery_fee_cents"`
	TotalCents        int               `json:"total_cents"`
	DeliveryAddress   string            `json:"delivery_address"`
	EstimatedMinutes  *int              `json:"estimated_delivery_minutes,omitempty"`
	InternalNotes     *string           `json:"internal_notes,omitempty"`
	CourierAcceptedAt *time.Time        `json:"courier_accepted_at,omitempty"`
	DeliveredAt       *time.Time        `json:"delivered_at,omitempty"`
	CanceledAt        *time.Time        `json:"canceled_at,omitempty"`
	Items             []OrderItemView   `json:"items,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// OrderList wraps a page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderView `json:"orders"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// RefusedOrderView is an order joined with the courier's own rejection row.
type RefusedOrderView struct {
	OrderView
	RefusalReason *string   `json:"refusal_reason,omitempty"`
	RefusedAt     time.Time `json:"refused_at"`
}

// RefusedOrderList wraps a page of refused orders plus the next cursor.
type RefusedOrderList struct {
	Orders     []RefusedOrderView `json:"orders"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// NewOrderView maps the persistence model into the API view.
func NewOrderView(order *models.Order) OrderView {
	view := OrderView{
		ID:                order.ID,
		CustomerID:        order.CustomerID,
		OrderType:         order.OrderType,
		Status:            order.Status,
		AssignedCourierID: order.AssignedCourierID,
		SubtotalCents:     order.SubtotalCents,
		DeliveryFeeCents:  order.DeliveryFeeCents,
		TotalCents:        order.TotalCents,
		DeliveryAddress:   order.DeliveryAddress,
		EstimatedMinutes:  order.EstimatedMinutes,
		InternalNotes:     order.InternalNotes,
		CourierAcceptedAt: order.CourierAcceptedAt,
		DeliveredAt:       order.DeliveredAt,
		CanceledAt:        order.CanceledAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ID:             item.ID,
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.TotalCents,
		})
	}
	return view
}
