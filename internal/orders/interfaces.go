package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/pagination"
)

// Repository defines persistence operations for order tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListAvailable(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAssigned(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListDelivered(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListRefused(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*RefusedOrderList, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	Claim(ctx context.Context, orderID, courierID uuid.UUID, at time.Time) (int64, error)
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error
}
