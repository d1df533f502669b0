package dispatch

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/internal/events"
	"github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/internal/rejections"
	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
	"github.com/dgarciab/entregalo-backend/pkg/metrics"
)

// Accept outcome labels reported to metrics.
const (
	outcomeClaimed  = "claimed"
	outcomeConflict = "conflict"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service orchestrates the claim, refusal, and status transition flows.
type Service interface {
	Accept(ctx context.Context, orderID, courierID uuid.UUID) (*orders.OrderView, error)
	Refuse(ctx context.Context, input RefuseInput) error
	Advance(ctx context.Context, input AdvanceInput) (*orders.OrderView, error)
	AdminUpdate(ctx context.Context, input AdminUpdateInput) (*orders.OrderView, error)
}

type service struct {
	orders     orders.Repository
	rejections rejections.Repository
	tx         txRunner
	bus        events.Bus
	metrics    *metrics.DispatchMetrics
	logg       *logger.Logger
	now        func() time.Time
}

// RefuseInput captures a courier's refusal of an order.
type RefuseInput struct {
	OrderID   uuid.UUID
	CourierID uuid.UUID
	Reason    *string
}

// AdvanceInput captures a courier-driven status advance on an assigned order.
type AdvanceInput struct {
	OrderID   uuid.UUID
	CourierID uuid.UUID
	Target    enums.OrderStatus
}

// AdminUpdateInput captures an admin order edit; every field is optional but
// at least one must be set.
type AdminUpdateInput struct {
	OrderID          uuid.UUID
	AdminID          uuid.UUID
	Status           *enums.OrderStatus
	EstimatedMinutes *int
	InternalNotes    *string
}

// NewService builds the dispatch service with the required dependencies.
func NewService(ordersRepo orders.Repository, rejectionsRepo rejections.Repository, tx txRunner, bus events.Bus, m *metrics.DispatchMetrics, logg *logger.Logger) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if rejectionsRepo == nil {
		return nil, fmt.Errorf("rejections repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if bus == nil {
		return nil, fmt.Errorf("event bus required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:     ordersRepo,
		rejections: rejectionsRepo,
		tx:         tx,
		bus:        bus,
		metrics:    m,
		logg:       logg,
		now:        time.Now,
	}, nil
}

// Accept claims the order for the courier. The assignment write is a single
// conditional update; whichever racing request matches the pending,
// unassigned row wins, everyone else observes zero rows affected.
func (s *service) Accept(ctx context.Context, orderID, courierID uuid.UUID) (*orders.OrderView, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if courierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}

	ctx = s.logg.WithOrderID(ctx, orderID.String())
	var claimed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		affected, err := repo.Claim(ctx, orderID, courierID, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim order")
		}
		if affected == 0 {
			// Zero rows means the guard failed: either the order never
			// existed or someone else got there first.
			if _, err := repo.FindByID(ctx, orderID); err != nil {
				if stdErrors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
			return pkgerrors.New(pkgerrors.CodeOrderTaken, "order already taken").
				WithDetails(map[string]any{"order_id": orderID})
		}

		s.appendLog(ctx, repo, orderID, enums.OrderStatusPending, enums.OrderStatusConfirmed, &courierID)

		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload claimed order")
		}
		claimed = order
		return nil
	})
	if err != nil {
		s.metrics.ObserveAccept(acceptOutcome(err))
		return nil, err
	}

	s.metrics.ObserveAccept(outcomeClaimed)
	view := orders.NewOrderView(claimed)
	s.publishStatusChanged(ctx, claimed, enums.OrderStatusPending, view)
	return &view, nil
}

// Refuse records the courier's rejection of a still-pending order. The
// precondition is re-verified inside the transaction so a refusal that lost
// a race with someone's accept is rejected instead of silently recorded.
func (s *service) Refuse(ctx context.Context, input RefuseInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CourierID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusPending || order.AssignedCourierID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not refusable").
				WithDetails(map[string]any{"current_status": order.Status})
		}

		rejection := &models.CourierRejection{
			OrderID:    input.OrderID,
			CourierID:  input.CourierID,
			Reason:     input.Reason,
			RejectedAt: s.now(),
		}
		if err := s.rejections.WithTx(tx).Upsert(ctx, rejection); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record refusal")
		}
		return nil
	})
	if err != nil {
		return err
	}

	event := events.Event{
		Kind:    events.KindCourierRefused,
		OrderID: input.OrderID,
		Reason:  "courier_refused",
	}
	s.bus.Publish(events.TopicAvailability, event)
	s.metrics.ObserveEvent(string(events.KindCourierRefused))
	return nil
}

// Advance moves the courier's own order along the delivery leg.
func (s *service) Advance(ctx context.Context, input AdvanceInput) (*orders.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.CourierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "courier identity missing")
	}
	if !input.Target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid target status")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	var updated *models.Order
	var previous enums.OrderStatus
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.AssignedCourierID == nil || *order.AssignedCourierID != input.CourierID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "order is not assigned to you")
		}
		if !CourierCanTransition(order.Status, input.Target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetails(map[string]any{
					"current_status":   order.Status,
					"requested_status": input.Target,
				})
		}

		updates := map[string]any{"status": input.Target}
		if input.Target == enums.OrderStatusDelivered {
			updates["delivered_at"] = s.now()
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		previous = order.Status
		s.appendLog(ctx, repo, order.ID, previous, input.Target, &input.CourierID)

		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := orders.NewOrderView(updated)
	s.publishStatusChanged(ctx, updated, previous, view)
	return &view, nil
}

// AdminUpdate applies an admin edit: metadata, a status change, or both.
// Stale edits are caught by re-validating the transition against the stored
// status inside the transaction rather than by locking.
func (s *service) AdminUpdate(ctx context.Context, input AdminUpdateInput) (*orders.OrderView, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin identity missing")
	}
	if input.Status == nil && input.EstimatedMinutes == nil && input.InternalNotes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one field required")
	}
	if input.Status != nil && !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}

	ctx = s.logg.WithOrderID(ctx, input.OrderID.String())
	var updated *models.Order
	var previous enums.OrderStatus
	statusChanged := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.orders.WithTx(tx)
		order, err := repo.FindByID(ctx, input.OrderID)
		if err != nil {
			if stdErrors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}

		updates := map[string]any{}
		if input.Status != nil {
			if !AdminCanTransition(order.Status, *input.Status) {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
					WithDetails(map[string]any{
						"current_status":   order.Status,
						"requested_status": *input.Status,
					})
			}
			updates["status"] = *input.Status
			if *input.Status == enums.OrderStatusCanceled {
				updates["canceled_at"] = s.now()
			}
			if *input.Status == enums.OrderStatusDelivered {
				updates["delivered_at"] = s.now()
			}
			previous = order.Status
			statusChanged = true
		}
		if input.EstimatedMinutes != nil {
			updates["estimated_delivery_minutes"] = *input.EstimatedMinutes
		}
		if input.InternalNotes != nil {
			updates["internal_notes"] = *input.InternalNotes
		}

		if len(updates) > 0 {
			if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
			}
		}
		if statusChanged {
			s.appendLog(ctx, repo, order.ID, previous, *input.Status, &input.AdminID)
		}

		fresh, err := repo.FindByID(ctx, order.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		updated = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := orders.NewOrderView(updated)
	if statusChanged {
		s.publishStatusChanged(ctx, updated, previous, view)
	}
	return &view, nil
}

// appendLog writes the audit row. The audit trail is secondary to the state
// change itself, so a failed write is logged and swallowed rather than
// rolling back the transition.
func (s *service) appendLog(ctx context.Context, repo orders.Repository, orderID uuid.UUID, previous, next enums.OrderStatus, actorID *uuid.UUID) {
	entry := &models.OrderStatusLog{
		OrderID:         orderID,
		PreviousStatus:  previous,
		NewStatus:       next,
		ChangedByUserID: actorID,
	}
	if err := repo.AppendStatusLog(ctx, entry); err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"previous_status": previous,
			"new_status":      next,
		})
		s.logg.Warn(ctx, "failed to append order status log: "+err.Error())
	}
}

// publishStatusChanged fans out the committed change. The order's own topic
// always gets the event; the availability topic only hears about changes
// that remove the order from the available set.
func (s *service) publishStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus, view orders.OrderView) {
	event := events.Event{
		Kind:      events.KindStatusChanged,
		OrderID:   order.ID,
		NewStatus: order.Status,
		Order:     view,
	}
	s.bus.Publish(events.OrderTopic(order.ID), event)
	if previous == enums.OrderStatusPending {
		s.bus.Publish(events.TopicAvailability, event)
	}
	s.metrics.ObserveEvent(string(events.KindStatusChanged))
}

func acceptOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return outcomeError
	}
	switch typed.Code() {
	case pkgerrors.CodeOrderTaken:
		return outcomeConflict
	case pkgerrors.CodeNotFound:
		return outcomeNotFound
	default:
		return outcomeError
	}
}
