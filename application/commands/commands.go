package commands

import (
	"github.com/go-playground/validator/v10"

	"dispatch-backend/domain/dispatch"
)

// validate is the shared validator for command payloads
var validate = validator.New()

// OrderRef is the order payload carried in command requests. The ledger is
// the source of truth; commands carry coordinates only so that routing and
// resubmission do not depend on a second read.
type OrderRef struct {
	OrderID    string              `json:"orderId" validate:"required"`
	Restaurant dispatch.Coordinate `json:"restaurant"`
	Customer   dispatch.Coordinate `json:"customer"`
}

// LockDriverCommand claims a driver's capacity for a batch of orders
type LockDriverCommand struct {
	DriverID       string     `json:"driverId" validate:"required"`
	DriverIdentity string     `json:"driverIdentity" validate:"required"`
	Orders         []OrderRef `json:"orders"`
}

// Validate checks structural validity of the command
func (c LockDriverCommand) Validate() error {
	return validate.Struct(c)
}

// LockDriverResult reports whether the driver lock was acquired
type LockDriverResult struct {
	Locked bool   `json:"locked"`
	Reason string `json:"reason,omitempty"`
}

// Lock failure reasons
const (
	ReasonNoOrders      = "no orders"
	ReasonAlreadyLocked = "driver already locked"
)

// UpdateOrdersStatusCommand attempts to assign a batch of orders to a driver
type UpdateOrdersStatusCommand struct {
	DriverID       string     `json:"driverId" validate:"required"`
	DriverIdentity string     `json:"driverIdentity" validate:"required"`
	Orders         []OrderRef `json:"orders" validate:"required,min=1"`
}

// Validate checks structural validity of the command
func (c UpdateOrdersStatusCommand) Validate() error {
	return validate.Struct(c)
}

// OrderAssignmentStatus is the per-order outcome of an assignment attempt
type OrderAssignmentStatus string

const (
	// AssignmentAssigned: this attempt won the conditional write
	AssignmentAssigned OrderAssignmentStatus = "ASSIGNED"
	// AssignmentConflict: another driver won the race for this order
	AssignmentConflict OrderAssignmentStatus = "CONFLICT"
	// AssignmentLocked: the order was already claimed before this attempt
	AssignmentLocked OrderAssignmentStatus = "LOCKED"
	// AssignmentMissing: the order record does not exist in the ledger
	AssignmentMissing OrderAssignmentStatus = "MISSING"
)

// Batch-level assignment outcomes
const (
	BatchAllAssigned = "ALL_ASSIGNED"
	BatchAnyConflict = "ANY_CONFLICT"
)

// OrderStatusEntry pairs an order with its assignment outcome
type OrderStatusEntry struct {
	OrderID string                `json:"orderId"`
	Status  OrderAssignmentStatus `json:"status"`
}

// UpdateOrdersResult aggregates per-order assignment outcomes
type UpdateOrdersResult struct {
	Status     string             `json:"status"`
	StatusList []OrderStatusEntry `json:"statusList"`
}

// AllAssigned reports whether every order in the batch was assigned
func (r UpdateOrdersResult) AllAssigned() bool {
	return r.Status == BatchAllAssigned
}

// SendToDriverCommand pushes a locked driver's assignment to its device
type SendToDriverCommand struct {
	DriverID       string              `json:"driverId" validate:"required"`
	DriverIdentity string              `json:"driverIdentity" validate:"required"`
	DriverLocation dispatch.Coordinate `json:"driverLocation"`
	Orders         []OrderRef          `json:"orders" validate:"required,min=1"`
}

// Validate checks structural validity of the command
func (c SendToDriverCommand) Validate() error {
	return validate.Struct(c)
}

// SendResult is the notifier's best-effort success marker. Per-order
// failures are logged and skipped, not reflected here.
type SendResult struct {
	Success bool `json:"success"`
}

// ResubmitReason states why a batch is being offered back to the stream.
// Call sites pass it explicitly rather than having eligibility inferred
// from which optional fields happen to be set.
type ResubmitReason string

const (
	// ResubmitLockReleased follows a lock-release step: only orders named in
	// OrdersReleased are resubmitted
	ResubmitLockReleased ResubmitReason = "LOCK_RELEASED"
	// ResubmitAssignmentFailed follows a failed assignment attempt: every
	// order is resubmitted unless the ledger shows it CANCELLED
	ResubmitAssignmentFailed ResubmitReason = "ASSIGNMENT_FAILED"
)

// SendToKinesisCommand returns failed orders to the ingestion stream
type SendToKinesisCommand struct {
	Orders         []OrderRef     `json:"orders" validate:"required,min=1"`
	Reason         ResubmitReason `json:"reason" validate:"required,oneof=LOCK_RELEASED ASSIGNMENT_FAILED"`
	OrdersReleased []string       `json:"ordersReleased,omitempty"`
}

// Validate checks structural validity of the command
func (c SendToKinesisCommand) Validate() error {
	return validate.Struct(c)
}
