package events

import (
	"github.com/google/uuid"

	"github.com/dgarciab/entregalo-backend/pkg/enums"
)

// Kind names the event kinds carried by the hub.
type Kind string

const (
	// KindStatusChanged is emitted after every committed status mutation.
	KindStatusChanged Kind = "status-changed"
	// KindCourierRefused signals the available list changed without a status move.
	KindCourierRefused Kind = "courier-refused"
)

// TopicAvailability is the shared topic couriers watch for available-list changes.
const TopicAvailability = "availability"

// OrderTopic returns the topic key for a single order's detail stream.
func OrderTopic(orderID uuid.UUID) string {
	return "order:" + orderID.String()
}

// Event is the payload fanned out to subscribers. Order carries the full
// committed snapshot for status-changed events; refusal events carry only
// the reason signal.
type Event struct {
	Kind      Kind              `json:"kind"`
	OrderID   uuid.UUID         `json:"order_id"`
	NewStatus enums.OrderStatus `json:"new_status,omitempty"`
	Reason    string            `json:"reason,omitempty"`
	Order     any               `json:"order,omitempty"`
}

// Bus is the publish/subscribe boundary between dispatch and the streaming
// gateway. The in-process Hub is the only implementation today; a
// multi-instance deployment would need a broker-backed one behind the same
// interface.
type Bus interface {
	Publish(topic string, event Event)
	Subscribe(topic string) (<-chan Event, func())
}
