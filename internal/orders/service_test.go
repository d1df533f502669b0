package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
	"github.com/dgarciab/entregalo-backend/pkg/pagination"
)

type stubIntakeRepo struct {
	created   *models.Order
	createErr error
}

func (s *stubIntakeRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubIntakeRepo) Create(ctx context.Context, order *models.Order) (*models.Order, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	s.created = order
	return order, nil
}

func (s *stubIntakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) ListAvailable(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) ListAssigned(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) ListDelivered(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) ListRefused(ctx context.Context, courierID uuid.UUID, params pagination.Params) (*RefusedOrderList, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) Claim(ctx context.Context, orderID, courierID uuid.UUID, at time.Time) (int64, error) {
	panic("not implemented")
}

func (s *stubIntakeRepo) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	panic("not implemented")
}

func (s *stubIntakeRepo) AppendStatusLog(ctx context.Context, entry *models.OrderStatusLog) error {
	panic("not implemented")
}

type stubIntakeTxRunner struct{}

func (stubIntakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubPriceSource struct {
	prices map[uuid.UUID]decimal.Decimal
}

func (s *stubPriceSource) UnitPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	if price, ok := s.prices[productID]; ok {
		return price, nil
	}
	return decimal.Zero, gorm.ErrRecordNotFound
}

func validInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID:      uuid.New(),
		OrderType:       enums.OrderTypeProduct,
		DeliveryAddress: "Calle 5 #12-34",
		Items: []CreateOrderItemInput{
			{Name: "Empanadas x6", UnitPrice: decimal.NewFromFloat(7.50), Qty: 2},
		},
		// 2 * 7.50 + 3.00 delivery fee
		ClientTotal: decimal.NewFromFloat(18.00),
	}
}

func TestCreateOrder(t *testing.T) {
	repo := &stubIntakeRepo{}
	svc, err := NewService(repo, stubIntakeTxRunner{}, nil, 300)
	if err != nil {
		t.Fatalf("service constructor failed: %v", err)
	}

	view, err := svc.CreateOrder(context.Background(), validInput())
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Status != enums.OrderStatusPending {
		t.Fatalf("status = %s, want pending", view.Status)
	}
	if view.SubtotalCents != 1500 {
		t.Fatalf("subtotal = %d, want 1500", view.SubtotalCents)
	}
	if view.DeliveryFeeCents != 300 {
		t.Fatalf("delivery fee = %d, want 300", view.DeliveryFeeCents)
	}
	if view.TotalCents != 1800 {
		t.Fatalf("total = %d, want 1800", view.TotalCents)
	}
	if len(view.Items) != 1 || view.Items[0].TotalCents != 1500 {
		t.Fatalf("unexpected items %+v", view.Items)
	}
	if repo.created == nil {
		t.Fatal("order row was not created")
	}
}

func TestCreateOrderToleratesRoundingDrift(t *testing.T) {
	repo := &stubIntakeRepo{}
	svc, _ := NewService(repo, stubIntakeTxRunner{}, nil, 300)

	input := validInput()
	input.ClientTotal = decimal.NewFromFloat(18.01)
	if _, err := svc.CreateOrder(context.Background(), input); err != nil {
		t.Fatalf("one-cent drift should be tolerated, got %v", err)
	}
}

func TestCreateOrderTotalMismatch(t *testing.T) {
	repo := &stubIntakeRepo{}
	svc, _ := NewService(repo, stubIntakeTxRunner{}, nil, 300)

	input := validInput()
	input.ClientTotal = decimal.NewFromFloat(15.00)
	_, err := svc.CreateOrder(context.Background(), input)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected VALIDATION_ERROR got %v", err)
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		t.Fatalf("expected details map, got %T", typed.Details())
	}
	if details["server_total"] != "18.00" || details["client_total"] != "15.00" {
		t.Fatalf("unexpected details %v", details)
	}
	if repo.created != nil {
		t.Fatal("mismatched order must not be persisted")
	}
}

func TestCreateOrderRepricesFromCatalog(t *testing.T) {
	productID := uuid.New()
	prices := &stubPriceSource{prices: map[uuid.UUID]decimal.Decimal{
		productID: decimal.NewFromFloat(9.00),
	}}
	repo := &stubIntakeRepo{}
	svc, _ := NewService(repo, stubIntakeTxRunner{}, prices, 300)

	input := validInput()
	input.Items = []CreateOrderItemInput{
		// Client claims the old price; the catalog wins.
		{ProductID: &productID, Name: "Empanadas x6", UnitPrice: decimal.NewFromFloat(7.50), Qty: 2},
	}
	input.ClientTotal = decimal.NewFromFloat(21.00)

	view, err := svc.CreateOrder(context.Background(), input)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Items[0].UnitPriceCents != 900 {
		t.Fatalf("unit price = %d, want catalog price 900", view.Items[0].UnitPriceCents)
	}
	if view.TotalCents != 2100 {
		t.Fatalf("total = %d, want 2100", view.TotalCents)
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc, _ := NewService(&stubIntakeRepo{}, stubIntakeTxRunner{}, nil, 300)

	cases := []struct {
		name   string
		mutate func(*CreateOrderInput)
	}{
		{"missing address", func(in *CreateOrderInput) { in.DeliveryAddress = "" }},
		{"no items", func(in *CreateOrderInput) { in.Items = nil }},
		{"zero qty", func(in *CreateOrderInput) { in.Items[0].Qty = 0 }},
		{"unnamed item", func(in *CreateOrderInput) { in.Items[0].Name = "" }},
		{"negative price", func(in *CreateOrderInput) { in.Items[0].UnitPrice = decimal.NewFromFloat(-1) }},
		{"bad order type", func(in *CreateOrderInput) { in.OrderType = "subscription" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			_, err := svc.CreateOrder(context.Background(), input)
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected VALIDATION_ERROR got %v", err)
			}
		})
	}
}
