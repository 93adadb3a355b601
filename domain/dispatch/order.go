package dispatch

import (
	"fmt"
	"time"
)

// OrderStatus represents where an order sits in the dispatch pipeline
type OrderStatus string

const (
	StatusUnassigned OrderStatus = "UNASSIGNED"
	StatusAssigned   OrderStatus = "ASSIGNED"
	StatusRejected   OrderStatus = "REJECTED"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// validTransitions lists the allowed status transitions.
// UNASSIGNED->ASSIGNED happens at most once per assignment cycle; the
// reaper may return ASSIGNED orders to UNASSIGNED on timeout or rejection.
var validTransitions = map[OrderStatus][]OrderStatus{
	StatusUnassigned: {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusRejected, StatusDelivered, StatusUnassigned},
	StatusRejected:   {StatusUnassigned},
}

// CanTransition reports whether moving from to next is an allowed transition
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status ends the order's dispatch lifecycle
func (s OrderStatus) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// Coordinate is a WGS84 latitude/longitude pair
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Order represents a delivery order moving through the dispatch pipeline.
// Orders live in the durable ledger; all mutations after creation go through
// conditional writes keyed on the status the writer expects to find.
type Order struct {
	OrderID        string      `json:"orderId"`
	Status         OrderStatus `json:"status"`
	DriverID       string      `json:"driverId,omitempty"`
	DriverIdentity string      `json:"driverIdentity,omitempty"`
	AssignedAt     time.Time   `json:"assignedAt,omitempty"`
	UpdatedAt      time.Time   `json:"updatedAt,omitempty"`
	Routing        *Route      `json:"routing,omitempty"`
	Restaurant     Coordinate  `json:"restaurant"`
	Customer       Coordinate  `json:"customer"`
}

// NewOrder creates an order in the UNASSIGNED state
func NewOrder(orderID string, restaurant, customer Coordinate) *Order {
	return &Order{
		OrderID:    orderID,
		Status:     StatusUnassigned,
		Restaurant: restaurant,
		Customer:   customer,
		UpdatedAt:  time.Now(),
	}
}

// Assign transitions the order to ASSIGNED for the given driver.
// The caller is responsible for persisting the transition conditionally;
// this only validates and applies the in-memory state change.
func (o *Order) Assign(driverID, driverIdentity string, now time.Time) error {
	if !o.Status.CanTransition(StatusAssigned) {
		return fmt.Errorf("order %s cannot move from %s to %s", o.OrderID, o.Status, StatusAssigned)
	}
	o.Status = StatusAssigned
	o.DriverID = driverID
	o.DriverIdentity = driverIdentity
	o.AssignedAt = now
	o.UpdatedAt = now
	return nil
}

// Release returns the order to UNASSIGNED and clears the driver fields
func (o *Order) Release(now time.Time) error {
	if !o.Status.CanTransition(StatusUnassigned) {
		return fmt.Errorf("order %s cannot move from %s to %s", o.OrderID, o.Status, StatusUnassigned)
	}
	o.Status = StatusUnassigned
	o.DriverID = ""
	o.DriverIdentity = ""
	o.AssignedAt = time.Time{}
	o.Routing = nil
	o.UpdatedAt = now
	return nil
}

// AssignedLongerThan reports whether the order has sat in ASSIGNED for more
// than the given timeout as of now. Orders without an assignment timestamp
// never qualify.
func (o *Order) AssignedLongerThan(timeout time.Duration, now time.Time) bool {
	if o.Status != StatusAssigned || o.AssignedAt.IsZero() {
		return false
	}
	return now.Sub(o.AssignedAt) > timeout
}
