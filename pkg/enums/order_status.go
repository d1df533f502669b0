package enums

import "fmt"

// OrderStatus tracks the delivery lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusOnTheWay  OrderStatus = "on_the_way"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusOnTheWay,
	OrderStatusDelivered,
	OrderStatusCanceled,
}

// legacyOrderStatusSynonyms maps spellings that older clients still send to
// the canonical values. They are accepted on input and never emitted.
var legacyOrderStatusSynonyms = map[string]OrderStatus{
	"accepted":         OrderStatusConfirmed,
	"cancelled":        OrderStatusCanceled,
	"delivering":       OrderStatusOnTheWay,
	"out_for_delivery": OrderStatusOnTheWay,
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known canonical OrderStatus.
func (s OrderStatus) IsValid() bool {
	for _, candidate := range validOrderStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition can leave this status.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCanceled
}

// ParseOrderStatus converts raw input into a canonical OrderStatus,
// normalizing legacy synonym spellings.
func ParseOrderStatus(value string) (OrderStatus, error) {
	for _, candidate := range validOrderStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	if canonical, ok := legacyOrderStatusSynonyms[value]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("invalid order status %q", value)
}
