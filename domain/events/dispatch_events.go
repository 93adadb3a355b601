package events

import (
	"time"

	"dispatch-backend/domain/dispatch"
)

// Event types published on the dispatch bus
const (
	EventTypeOrderFulfilled   = "ORDER_FULFILLED"
	EventTypeOrderReleased    = "ORDER_RELEASED"
	EventTypeOrderResubmitted = "ORDER_RESUBMITTED"
	EventTypeDriverLocked     = "DRIVER_LOCKED"
	EventTypeDriverUnlocked   = "DRIVER_UNLOCKED"
)

// OrderFulfilled is raised when an assignment has been pushed to the driver
type OrderFulfilled struct {
	BaseEvent
	OrderID        string          `json:"order_id"`
	DriverID       string          `json:"driver_id"`
	DriverIdentity string          `json:"driver_identity"`
	Routing        *dispatch.Route `json:"routing,omitempty"`
}

// NewOrderFulfilled creates an OrderFulfilled event
func NewOrderFulfilled(order *dispatch.Order, timestamp time.Time) OrderFulfilled {
	return OrderFulfilled{
		BaseEvent: BaseEvent{
			EventID:     NewEventID(),
			AggregateID: order.OrderID,
			EventType:   EventTypeOrderFulfilled,
			Timestamp:   timestamp,
			Version:     1,
		},
		OrderID:        order.OrderID,
		DriverID:       order.DriverID,
		DriverIdentity: order.DriverIdentity,
		Routing:        order.Routing,
	}
}

// OrderReleased is raised when the reaper returns an order to UNASSIGNED
type OrderReleased struct {
	BaseEvent
	OrderID  string `json:"order_id"`
	DriverID string `json:"driver_id,omitempty"`
	Reason   string `json:"reason"`
}

// NewOrderReleased creates an OrderReleased event
func NewOrderReleased(orderID, driverID, reason string, timestamp time.Time) OrderReleased {
	return OrderReleased{
		BaseEvent: BaseEvent{
			EventID:     NewEventID(),
			AggregateID: orderID,
			EventType:   EventTypeOrderReleased,
			Timestamp:   timestamp,
			Version:     1,
		},
		OrderID:  orderID,
		DriverID: driverID,
		Reason:   reason,
	}
}

// OrderResubmitted is raised when an order is put back on the ingestion stream
type OrderResubmitted struct {
	BaseEvent
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

// NewOrderResubmitted creates an OrderResubmitted event
func NewOrderResubmitted(orderID, reason string, timestamp time.Time) OrderResubmitted {
	return OrderResubmitted{
		BaseEvent: BaseEvent{
			EventID:     NewEventID(),
			AggregateID: orderID,
			EventType:   EventTypeOrderResubmitted,
			Timestamp:   timestamp,
			Version:     1,
		},
		OrderID: orderID,
		Reason:  reason,
	}
}

// DriverLocked is raised when a driver's capacity is claimed for a batch
type DriverLocked struct {
	BaseEvent
	DriverID string   `json:"driver_id"`
	Orders   []string `json:"orders"`
}

// NewDriverLocked creates a DriverLocked event
func NewDriverLocked(driverID string, orders []string, timestamp time.Time) DriverLocked {
	return DriverLocked{
		BaseEvent: BaseEvent{
			EventID:     NewEventID(),
			AggregateID: driverID,
			EventType:   EventTypeDriverLocked,
			Timestamp:   timestamp,
			Version:     1,
		},
		DriverID: driverID,
		Orders:   orders,
	}
}

// DriverUnlocked is raised when a driver's lock releases its last order
type DriverUnlocked struct {
	BaseEvent
	DriverID string `json:"driver_id"`
}

// NewDriverUnlocked creates a DriverUnlocked event
func NewDriverUnlocked(driverID string, timestamp time.Time) DriverUnlocked {
	return DriverUnlocked{
		BaseEvent: BaseEvent{
			EventID:     NewEventID(),
			AggregateID: driverID,
			EventType:   EventTypeDriverUnlocked,
			Timestamp:   timestamp,
			Version:     1,
		},
		DriverID: driverID,
	}
}
