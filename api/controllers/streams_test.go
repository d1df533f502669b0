package controllers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/api/middleware"
	"github.com/dgarciab/entregalo-backend/internal/events"
	internalorders "github.com/dgarciab/entregalo-backend/internal/orders"
	"github.com/dgarciab/entregalo-backend/pkg/config"
	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	"github.com/dgarciab/entregalo-backend/pkg/pagination"
)

type stubStreamRepo struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (s stubStreamRepo) WithTx(tx *gorm.DB) internalorders.Repository { return s }

func (s stubStreamRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	panic("unexpected Create")
}

func (s stubStreamRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (s stubStreamRepo) ListAvailable(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	panic("unexpected ListAvailable")
}

func (s stubStreamRepo) ListAssigned(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	panic("unexpected ListAssigned")
}

func (s stubStreamRepo) ListDelivered(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	panic("unexpected ListDelivered")
}

func (s stubStreamRepo) ListRefused(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*internalorders.RefusedOrderList, error) {
	panic("unexpected ListRefused")
}

func (s stubStreamRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*internalorders.OrderList, error) {
	panic("unexpected ListByCustomer")
}

func (s stubStreamRepo) Claim(ctx context.Context, orderID, courierID uuid.UUID, at time.Time) (int64, error) {
	panic("unexpected Claim")
}

func (s stubStreamRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	panic("unexpected UpdateOrder")
}

func (s stubStreamRepo) AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error {
	panic("unexpected AppendStatusLog")
}

func streamRequest(t *testing.T, target string, orderID *uuid.UUID, userID uuid.UUID, role enums.Role) *http.Request {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := middleware.WithUserID(req.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))

	if orderID != nil {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("orderId", orderID.String())
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return req.WithContext(ctx)
}

func TestOrderEventsRejectsStranger(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()
	stranger := uuid.New()

	repo := stubStreamRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, CustomerID: owner, Status: enums.OrderStatusPending}, nil
		},
	}

	handler := OrderEvents(repo, events.NewHub(1), config.StreamConfig{}, nil, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, streamRequest(t, "/", &orderID, stranger, enums.RoleUser))

	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestOrderEventsRejectsTerminalOrder(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()

	repo := stubStreamRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, CustomerID: owner, Status: enums.OrderStatusDelivered}, nil
		},
	}

	handler := OrderEvents(repo, events.NewHub(1), config.StreamConfig{}, nil, nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, streamRequest(t, "/", &orderID, owner, enums.RoleUser))

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
	if body := resp.Body.String(); !strings.Contains(body, "STATE_CONFLICT") {
		t.Fatalf("expected STATE_CONFLICT body, got %q", body)
	}
}

func TestOrderEventsStreamsUntilTerminal(t *testing.T) {
	orderID := uuid.New()
	owner := uuid.New()

	repo := stubStreamRepo{
		findFn: func(ctx context.Context, id uuid.UUID) (*models.Order, error) {
			return &models.Order{ID: id, CustomerID: owner, Status: enums.OrderStatusOnTheWay}, nil
		},
	}

	hub := events.NewHub(4)
	defer hub.Close()

	handler := OrderEvents(repo, hub, config.StreamConfig{HeartbeatInterval: time.Minute}, nil, nil)
	resp := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(resp, streamRequest(t, "/", &orderID, owner, enums.RoleUser))
	}()

	// retry until the handler has subscribed; a terminal event closes it
	event := events.Event{Kind: events.KindStatusChanged, OrderID: orderID, NewStatus: enums.OrderStatusDelivered}
	deadline := time.After(2 * time.Second)
	for {
		hub.Publish(events.OrderTopic(orderID), event)
		select {
		case <-done:
		case <-deadline:
			t.Fatal("stream did not close on terminal status")
		case <-time.After(5 * time.Millisecond):
			continue
		}
		break
	}

	if got := resp.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("unexpected content type %q", got)
	}
	body := resp.Body.String()
	if !strings.Contains(body, "event: status-changed") {
		t.Fatalf("missing event line in body %q", body)
	}
	if !strings.Contains(body, orderID.String()) {
		t.Fatalf("missing order id in body %q", body)
	}
}

func TestAvailabilityEventsDeliversRefusals(t *testing.T) {
	courierID := uuid.New()
	orderID := uuid.New()

	hub := events.NewHub(4)
	defer hub.Close()

	handler := AvailabilityEvents(hub, config.StreamConfig{HeartbeatInterval: time.Minute}, nil, nil)
	resp := httptest.NewRecorder()

	req := streamRequest(t, "/", nil, courierID, enums.RoleCourier)
	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(resp, req)
	}()

	event := events.Event{Kind: events.KindCourierRefused, OrderID: orderID, Reason: "courier_refused"}
	for i := 0; i < 20; i++ {
		hub.Publish(events.TopicAvailability, event)
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not close on context cancel")
	}

	scanner := bufio.NewScanner(strings.NewReader(resp.Body.String()))
	var sawEvent bool
	for scanner.Scan() {
		if scanner.Text() == "event: courier-refused" {
			sawEvent = true
			break
		}
	}
	if !sawEvent {
		t.Fatalf("missing refusal event in body %q", resp.Body.String())
	}
}
