package controllers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/api/middleware"
	"github.com/dgarciab/entregalo-backend/api/responses"
	"github.com/dgarciab/entregalo-backend/api/validators"
	internalorders "github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
)

func canViewAsCustomer(r *http.Request, ownerID, callerID uuid.UUID) bool {
	if ownerID == callerID {
		return true
	}
	return middleware.RoleFromContext(r.Context()) == string(enums.RoleAdmin)
}

type createOrderItemRequest struct {
	ProductID *uuid.UUID      `json:"product_id" validate:"omitempty"`
	Name      string          `json:"name" validate:"required,max=200"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"required"`
	Qty       int             `json:"qty" validate:"required,gt=0"`
}

type createOrderRequest struct {
	OrderType       string                   `json:"order_type" validate:"required"`
	DeliveryAddress string                   `json:"delivery_address" validate:"required,max=500"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
	Total           decimal.Decimal          `json:"total" validate:"required"`
}

// CreateOrder places a customer order. The submitted total is reconciled
// against the server-side price computation before anything is persisted.
func CreateOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderType, err := enums.ParseOrderType(req.OrderType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order type").
				WithDetails(map[string]any{"field": "order_type"}))
			return
		}

		input := internalorders.CreateOrderInput{
			CustomerID:      customerID,
			OrderType:       orderType,
			DeliveryAddress: req.DeliveryAddress,
			ClientTotal:     req.Total,
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.CreateOrderItemInput{
				ProductID: item.ProductID,
				Name:      item.Name,
				UnitPrice: item.UnitPrice,
				Qty:       item.Qty,
			})
		}

		view, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

// CustomerOrders returns the caller's own orders, newest first.
func CustomerOrders(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := listParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := repo.ListByCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders"))
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// CustomerOrderDetail returns one order, visible to the owning customer or
// an admin.
func CustomerOrderDetail(repo internalorders.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := repo.FindByID(r.Context(), orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order"))
			return
		}
		if !canViewAsCustomer(r, order.CustomerID, callerID) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to you"))
			return
		}

		view := internalorders.NewOrderView(order)
		responses.WriteSuccess(w, view)
	}
}
