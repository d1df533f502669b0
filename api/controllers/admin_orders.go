package controllers

import (
	"net/http"

	"github.com/dgarciab/entregalo-backend/api/responses"
	"github.com/dgarciab/entregalo-backend/api/validators"
	"github.com/dgarciab/entregalo-backend/internal/dispatch"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
)

type adminUpdateOrderRequest struct {
	Status           *string `json:"status" validate:"omitempty"`
	EstimatedMinutes *int    `json:"estimated_delivery_minutes" validate:"omitempty,gt=0"`
	InternalNotes    *string `json:"internal_notes" validate:"omitempty,max=2000"`
}

// AdminUpdateOrder applies an admin edit: status change, metadata, or both.
func AdminUpdateOrder(svc dispatch.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		adminID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req adminUpdateOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := dispatch.AdminUpdateInput{
			OrderID:          orderID,
			AdminID:          adminID,
			EstimatedMinutes: req.EstimatedMinutes,
			InternalNotes:    req.InternalNotes,
		}
		if req.Status != nil {
			status, err := enums.ParseOrderStatus(*req.Status)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
					WithDetails(map[string]any{"field": "status"}))
				return
			}
			input.Status = &status
		}

		view, err := svc.AdminUpdate(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}
