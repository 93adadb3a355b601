package ports

import (
	"context"
	"time"

	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
)

// OrderRepository is the durable order ledger. Every mutating method uses a
// conditional write keyed on the status the caller expects to find; a lost
// race surfaces as a CONFLICT AppError (pkg/errors), never as a store
// exception type.
type OrderRepository interface {
	// GetByID retrieves an order by its ID
	GetByID(ctx context.Context, orderID string) (*dispatch.Order, error)

	// Save persists a new order (unconditional)
	Save(ctx context.Context, order *dispatch.Order) error

	// AssignToDriver sets status=ASSIGNED plus the driver fields, conditional
	// on the current status being UNASSIGNED
	AssignToDriver(ctx context.Context, orderID, driverID, driverIdentity string, assignedAt time.Time) error

	// AttachRouting stores computed routing, conditional on the order still
	// being ASSIGNED to the given driver
	AttachRouting(ctx context.Context, orderID, driverID string, routing *dispatch.Route) error

	// ReleaseOrder resets the order to UNASSIGNED and clears the driver
	// fields, conditional on the current status matching expectedStatus
	ReleaseOrder(ctx context.Context, orderID string, expectedStatus dispatch.OrderStatus) error

	// QueryByStatus returns orders currently in the given status whose
	// UpdatedAt falls within the window ending at now
	QueryByStatus(ctx context.Context, status dispatch.OrderStatus, window time.Duration, now time.Time) ([]*dispatch.Order, error)
}

// DriverLockRepository is the driver-lock ledger
type DriverLockRepository interface {
	// GetByDriverID retrieves the lock record for a driver; a missing record
	// surfaces as a NOT_FOUND AppError
	GetByDriverID(ctx context.Context, driverID string) (*dispatch.DriverLock, error)

	// Create writes a brand-new locked record, conditional on no record
	// existing for the driver
	Create(ctx context.Context, lock *dispatch.DriverLock) error

	// Acquire flips an existing record to locked with a fresh order set,
	// conditional on it currently being unlocked
	Acquire(ctx context.Context, lock *dispatch.DriverLock) error

	// Update replaces the order set and locked flag, conditional on the
	// record currently being locked
	Update(ctx context.Context, lock *dispatch.DriverLock) error
}

// EventBus publishes domain events. Publishing is fire-and-forget from the
// caller's point of view: delivery failures are logged, not propagated.
type EventBus interface {
	Publish(ctx context.Context, event events.DomainEvent) error
	PublishBatch(ctx context.Context, batch []events.DomainEvent) error
}

// DeviceChannel delivers commands to a driver's device channel
type DeviceChannel interface {
	PublishToDevice(ctx context.Context, channelID string, message interface{}) error
}

// OrderStream is the order ingestion stream. Resubmit puts an order back on
// the stream for the clustering/assignment pipeline to pick up again.
type OrderStream interface {
	Resubmit(ctx context.Context, order *dispatch.Order) error
}

// DriverPosition is a driver's last reported location and availability
type DriverPosition struct {
	DriverID   string
	Location   dispatch.Coordinate
	DistanceKm float64
}

// DriverRegistry tracks driver locations and availability for candidate
// selection near a cluster centroid
type DriverRegistry interface {
	// ReportLocation records a driver's current location
	ReportLocation(ctx context.Context, driverID string, location dispatch.Coordinate) error

	// SetAvailable marks a driver available or unavailable for dispatch
	SetAvailable(ctx context.Context, driverID string, available bool) error

	// FindNearby returns available drivers within radiusKm of the centroid,
	// closest first, at most limit entries
	FindNearby(ctx context.Context, centroid dispatch.Coordinate, radiusKm float64, limit int) ([]DriverPosition, error)
}

// RouteComputer computes routing from a driver location to an order
type RouteComputer interface {
	ComputeRoute(ctx context.Context, driverLocation dispatch.Coordinate, order *dispatch.Order) (*dispatch.Route, error)
}
