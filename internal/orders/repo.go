package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	"github.com/dgarciab/entregalo-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListAvailable returns pending, unassigned orders the courier has not
// refused, oldest first so the longest-waiting order surfaces at the top.
func (r *repository) ListAvailable(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("status = ?", enums.OrderStatusPending).
		Where("assigned_courier_id IS NULL").
		Where("NOT EXISTS (SELECT 1 FROM courier_rejections cr WHERE cr.order_id = orders.id AND cr.courier_id = ?)", courierID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) > (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Preload("Items").
		Order("created_at ASC, id ASC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return buildOrderList(rows, limit), nil
}

// ListAssigned returns the courier's orders still in flight.
func (r *repository) ListAssigned(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("assigned_courier_id = ?", courierID).
		Where("status NOT IN ?", []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCanceled})

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return buildOrderList(rows, limit), nil
}

// ListDelivered returns the courier's completed deliveries, newest first.
func (r *repository) ListDelivered(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("assigned_courier_id = ?", courierID).
		Where("status = ?", enums.OrderStatusDelivered)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return buildOrderList(rows, limit), nil
}

// ListRefused returns orders the courier refused, most recent refusal first.
// Pagination follows the rejection rows; the cursor carries the rejection
// timestamp and the order id.
func (r *repository) ListRefused(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*RefusedOrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.CourierRejection{}).
		Where("courier_id = ?", courierID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(rejected_at, order_id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rejections []models.CourierRejection
	if err := query.
		Order("rejected_at DESC, order_id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rejections).Error; err != nil {
		return nil, err
	}

	nextCursor := ""
	if len(rejections) > limit {
		next := rejections[limit]
		rejections = rejections[:limit]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: next.RejectedAt,
			ID:        next.OrderID,
		})
	}

	orderIDs := make([]uuid.UUID, 0, len(rejections))
	for _, rejection := range rejections {
		orderIDs = append(orderIDs, rejection.OrderID)
	}

	byID := make(map[uuid.UUID]models.Order, len(orderIDs))
	if len(orderIDs) > 0 {
		var rows []models.Order
		if err := r.db.WithContext(ctx).
			Preload("Items").
			Where("id IN ?", orderIDs).
			Find(&rows).Error; err != nil {
			return nil, err
		}
		for _, row := range rows {
			byID[row.ID] = row
		}
	}

	list := &RefusedOrderList{NextCursor: nextCursor}
	for _, rejection := range rejections {
		order, ok := byID[rejection.OrderID]
		if !ok {
			// Order was soft-deleted after the refusal.
			continue
		}
		list.Orders = append(list.Orders, RefusedOrderView{
			OrderView:     NewOrderView(&order),
			RefusalReason: rejection.Reason,
			RefusedAt:     rejection.RejectedAt,
		})
	}
	return list, nil
}

// ListByCustomer returns the customer's own orders, newest first.
func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("customer_id = ?", customerID)

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	if err := query.Preload("Items").
		Order("created_at DESC, id DESC").
		Limit(pagination.LimitWithBuffer(limit)).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return buildOrderList(rows, limit), nil
}

// Claim performs the conditional assignment update. The WHERE clause is the
// entire concurrency story: only a pending, unassigned row matches, so of any
// number of racing couriers exactly one update reports a row affected.
func (r *repository) Claim(ctx context.Context, orderID, courierID uuid.UUID, at time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND status = ? AND assigned_courier_id IS NULL", orderID, enums.OrderStatusPending).
		Updates(map[string]any{
			"status":              enums.OrderStatusConfirmed,
			"assigned_courier_id": courierID,
			"courier_accepted_at": at,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

func (r *repository) AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func buildOrderList(rows []models.Order, limit int) *OrderList {
	list := &OrderList{}
	if len(rows) > limit {
		next := rows[limit]
		rows = rows[:limit]
		list.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: next.CreatedAt,
			ID:        next.ID,
		})
	}
	for i := range rows {
		list.Orders = append(list.Orders, NewOrderView(&rows[i]))
	}
	return list
}
