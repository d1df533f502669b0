package dispatch

import "github.com/dgarciab/entregalo-backend/pkg/enums"

// adminTransitions is the forward progression graph available to admins.
// Cancellation is handled separately because it cuts across the graph.
var adminTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:   {enums.OrderStatusConfirmed},
	enums.OrderStatusConfirmed: {enums.OrderStatusPreparing, enums.OrderStatusOnTheWay},
	enums.OrderStatusPreparing: {enums.OrderStatusOnTheWay, enums.OrderStatusDelivered},
	enums.OrderStatusOnTheWay:  {enums.OrderStatusDelivered},
}

// cancelableFrom lists the only statuses an order can be canceled out of.
// Once a courier is on the road the order runs to completion.
var cancelableFrom = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
}

// AdminCanTransition reports whether an admin may move an order between the
// two statuses. Terminal statuses never transition out.
func AdminCanTransition(from, to enums.OrderStatus) bool {
	if from == to {
		return false
	}
	if to == enums.OrderStatusCanceled {
		for _, status := range cancelableFrom {
			if from == status {
				return true
			}
		}
		return false
	}
	for _, status := range adminTransitions[from] {
		if to == status {
			return true
		}
	}
	return false
}

// CourierCanTransition reports whether the assigned courier may move an
// order between the two statuses. Couriers only push their own orders
// forward along the delivery leg.
func CourierCanTransition(from, to enums.OrderStatus) bool {
	switch {
	case from == enums.OrderStatusConfirmed && to == enums.OrderStatusOnTheWay:
		return true
	case from == enums.OrderStatusOnTheWay && to == enums.OrderStatusDelivered:
		return true
	default:
		return false
	}
}
