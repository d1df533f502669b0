package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dgarciab/entregalo-backend/pkg/db/models"
	"github.com/dgarciab/entregalo-backend/pkg/enums"
	pkgerrors "github.com/dgarciab/entregalo-backend/pkg/errors"
)

// totalEpsilon bounds acceptable client/server rounding drift in currency units.
var totalEpsilon = decimal.NewFromFloat(0.01)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PriceSource resolves the authoritative unit price for a catalog product.
// When wired, catalog-backed items are repriced server-side; ad-hoc items
// (no product id) keep the submitted price.
type PriceSource interface {
	UnitPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
}

// Service defines order intake operations beyond repository reads.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error)
}

type service struct {
	repo             Repository
	tx               txRunner
	prices           PriceSource
	deliveryFeeCents int
}

// CreateOrderItemInput is one submitted line item.
type CreateOrderItemInput struct {
	ProductID *uuid.UUID
	Name      string
	UnitPrice decimal.Decimal
	Qty       int
}

// CreateOrderInput captures everything needed to place an order.
type CreateOrderInput struct {
	CustomerID      uuid.UUID
	OrderType       enums.OrderType
	DeliveryAddress string
	Items           []CreateOrderItemInput
	ClientTotal     decimal.Decimal
}

// NewService builds the order intake service. prices may be nil when no
// catalog is attached.
func NewService(repo Repository, tx txRunner, prices PriceSource, deliveryFeeCents int) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if deliveryFeeCents < 0 {
		return nil, fmt.Errorf("delivery fee must not be negative")
	}
	return &service{
		repo:             repo,
		tx:               tx,
		prices:           prices,
		deliveryFeeCents: deliveryFeeCents,
	}, nil
}

func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if !input.OrderType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order type")
	}
	if input.DeliveryAddress == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery address required")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}

	items := make([]models.OrderItem, 0, len(input.Items))
	subtotal := decimal.Zero
	for _, item := range input.Items {
		if item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item qty must be positive")
		}
		if item.Name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item name required")
		}

		unitPrice := item.UnitPrice
		if s.prices != nil && item.ProductID != nil {
			serverPrice, err := s.prices.UnitPrice(ctx, *item.ProductID)
			if err != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve product price")
			}
			unitPrice = serverPrice
		}
		if unitPrice.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item price must not be negative")
		}

		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ProductID:      item.ProductID,
			Name:           item.Name,
			UnitPriceCents: toCents(unitPrice),
			Qty:            item.Qty,
			TotalCents:     toCents(lineTotal),
		})
	}

	deliveryFee := decimal.NewFromInt(int64(s.deliveryFeeCents)).Div(decimal.NewFromInt(100))
	serverTotal := subtotal.Add(deliveryFee)
	if serverTotal.Sub(input.ClientTotal).Abs().GreaterThan(totalEpsilon) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total mismatch").
			WithDetails(map[string]any{
				"server_total": serverTotal.StringFixed(2),
				"client_total": input.ClientTotal.StringFixed(2),
			})
	}

	order := &models.Order{
		CustomerID:       input.CustomerID,
		OrderType:        input.OrderType,
		Status:           enums.OrderStatusPending,
		SubtotalCents:    toCents(subtotal),
		DeliveryFeeCents: s.deliveryFeeCents,
		TotalCents:       toCents(serverTotal),
		DeliveryAddress:  input.DeliveryAddress,
		Items:            items,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := NewOrderView(order)
	return &view, nil
}

// FindOrderView loads a single order as its API view, translating the
// missing-row case into the service error taxonomy.
func FindOrderView(ctx context.Context, repo Repository, orderID uuid.UUID) (*OrderView, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	view := NewOrderView(order)
	return &view, nil
}

func toCents(amount decimal.Decimal) int {
	return int(amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart())
}
