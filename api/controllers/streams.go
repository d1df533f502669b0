package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/api/middleware"
	"github.com/dgarciab/entregalo-backend/api/responses"
	"github.com/dgarciab/entregalo-backend/internal/events"
	internalorders "github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/pkg/config"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
	"github.com/dgarciab/entregalo-backend/pkg/logger"
	"github.com/dgarciab/entregalo-backend/pkg/metrics"
)

const (
	streamKindOrder        = "order"
	streamKindAvailability = "availability"
)

// OrderEvents streams status-changed events for a single order to its
// customer, its assigned courier, or an admin. The stream closes itself
// once the order reaches a terminal status.
func OrderEvents(repo internalorders.Repository, bus events.Bus, cfg config.StreamConfig, m *metrics.DispatchMetrics, logg *logger.Logger) http.HandlerFunc {
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

		isOwner := order.CustomerID == callerID
		isAssignee := order.AssignedCourierID != nil && *order.AssignedCourierID == callerID
		isAdmin := middleware.RoleFromContext(r.Context()) == string(enums.RoleAdmin)
		if !isOwner && !isAssignee && !isAdmin {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "order not visible to you"))
			return
		}

		// The stream only makes sense while the order is live; a delivered or
		// canceled order will never emit another event.
		if order.Status.IsTerminal() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeStateConflict, "order already in a terminal status").
				WithDetails(map[string]any{"current_status": order.Status}))
			return
		}

		serveStream(w, r, bus, events.OrderTopic(orderID), streamKindOrder, cfg, m, logg)
	}
}

// AvailabilityEvents streams the availability topic to a connected courier:
// refusals and claims that change the available-orders set.
func AvailabilityEvents(bus events.Bus, cfg config.StreamConfig, m *metrics.DispatchMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := actorID(r); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		serveStream(w, r, bus, events.TopicAvailability, streamKindAvailability, cfg, m, logg)
	}
}

func serveStream(w http.ResponseWriter, r *http.Request, bus events.Bus, topic, kind string, cfg config.StreamConfig, m *metrics.DispatchMetrics, logg *logger.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
		return
	}

	ch, unsubscribe := bus.Subscribe(topic)
	defer unsubscribe()

	m.StreamOpened(kind)
	defer m.StreamClosed(kind)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	heartbeatInterval := cfg.HeartbeatInterval
	if heartbeatInterval <= 0 {
		heartbeatInterval = 25 * time.Second
	}
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	if logg != nil {
		logg.Info(r.Context(), "stream.open")
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case event, open := <-ch:
			if !open {
				return
			}
			if err := writeEvent(w, event); err != nil {
				if logg != nil {
					logg.Warn(r.Context(), "stream write failed: "+err.Error())
				}
				return
			}
			flusher.Flush()
			// A terminal status ends the order's story; close the
			// per-order stream so clients don't hold dead connections.
			if kind == streamKindOrder && event.NewStatus.IsTerminal() {
				return
			}
		}
	}
}

func writeEvent(w http.ResponseWriter, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, payload)
	return err
}
