// Package fakes provides in-memory implementations of the application
// ports. The ledgers implement real conditional-write semantics behind a
// mutex, so concurrency tests exercise the same win/lose branches the
// DynamoDB adapters produce.
package fakes

import (
	"context"
	"fmt"
	"sync"
	"time"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	appErrors "dispatch-backend/pkg/errors"
)

// OrderLedger is an in-memory ports.OrderRepository
type OrderLedger struct {
	mu     sync.Mutex
	orders map[string]*dispatch.Order
}

// NewOrderLedger creates an empty order ledger
func NewOrderLedger() *OrderLedger {
	return &OrderLedger{orders: make(map[string]*dispatch.Order)}
}

// Put seeds an order directly, bypassing conditions
func (l *OrderLedger) Put(order *dispatch.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	copied := *order
	l.orders[order.OrderID] = &copied
}

// GetByID implements ports.OrderRepository
func (l *OrderLedger) GetByID(ctx context.Context, orderID string) (*dispatch.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("order %s", orderID))
	}
	copied := *order
	return &copied, nil
}

// Save implements ports.OrderRepository
func (l *OrderLedger) Save(ctx context.Context, order *dispatch.Order) error {
	l.Put(order)
	return nil
}

// AssignToDriver implements ports.OrderRepository
func (l *OrderLedger) AssignToDriver(ctx context.Context, orderID, driverID, driverIdentity string, assignedAt time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return appErrors.NewNotFoundError(fmt.Sprintf("order %s", orderID))
	}
	if order.Status != dispatch.StatusUnassigned {
		return appErrors.NewConflictError(fmt.Sprintf("assign order: condition failed for order %s", orderID))
	}
	order.Status = dispatch.StatusAssigned
	order.DriverID = driverID
	order.DriverIdentity = driverIdentity
	order.AssignedAt = assignedAt
	order.UpdatedAt = assignedAt
	return nil
}

// AttachRouting implements ports.OrderRepository
func (l *OrderLedger) AttachRouting(ctx context.Context, orderID, driverID string, routing *dispatch.Route) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return appErrors.NewNotFoundError(fmt.Sprintf("order %s", orderID))
	}
	if order.Status != dispatch.StatusAssigned || order.DriverID != driverID {
		return appErrors.NewConflictError(fmt.Sprintf("attach routing: condition failed for order %s", orderID))
	}
	order.Routing = routing
	order.UpdatedAt = time.Now()
	return nil
}

// ReleaseOrder implements ports.OrderRepository
func (l *OrderLedger) ReleaseOrder(ctx context.Context, orderID string, expectedStatus dispatch.OrderStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	order, ok := l.orders[orderID]
	if !ok {
		return appErrors.NewNotFoundError(fmt.Sprintf("order %s", orderID))
	}
	if order.Status != expectedStatus {
		return appErrors.NewConflictError(fmt.Sprintf("release order: condition failed for order %s", orderID))
	}
	order.Status = dispatch.StatusUnassigned
	order.DriverID = ""
	order.DriverIdentity = ""
	order.AssignedAt = time.Time{}
	order.Routing = nil
	order.UpdatedAt = time.Now()
	return nil
}

// QueryByStatus implements ports.OrderRepository
func (l *OrderLedger) QueryByStatus(ctx context.Context, status dispatch.OrderStatus, window time.Duration, now time.Time) ([]*dispatch.Order, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var matched []*dispatch.Order
	from := now.Add(-window)
	for _, order := range l.orders {
		if order.Status != status {
			continue
		}
		if order.UpdatedAt.Before(from) || order.UpdatedAt.After(now) {
			continue
		}
		copied := *order
		matched = append(matched, &copied)
	}
	return matched, nil
}

// LockLedger is an in-memory ports.DriverLockRepository
type LockLedger struct {
	mu    sync.Mutex
	locks map[string]*dispatch.DriverLock
}

// NewLockLedger creates an empty lock ledger
func NewLockLedger() *LockLedger {
	return &LockLedger{locks: make(map[string]*dispatch.DriverLock)}
}

// Put seeds a lock record directly, bypassing conditions
func (l *LockLedger) Put(lock *dispatch.DriverLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locks[lock.DriverID] = copyLock(lock)
}

// GetByDriverID implements ports.DriverLockRepository
func (l *LockLedger) GetByDriverID(ctx context.Context, driverID string) (*dispatch.DriverLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[driverID]
	if !ok {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("driver lock %s", driverID))
	}
	return copyLock(lock), nil
}

// Create implements ports.DriverLockRepository
func (l *LockLedger) Create(ctx context.Context, lock *dispatch.DriverLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.locks[lock.DriverID]; exists {
		return appErrors.NewConflictError(fmt.Sprintf("driver lock %s already exists", lock.DriverID))
	}
	l.locks[lock.DriverID] = copyLock(lock)
	return nil
}

// Acquire implements ports.DriverLockRepository
func (l *LockLedger) Acquire(ctx context.Context, lock *dispatch.DriverLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.locks[lock.DriverID]
	if !ok || current.Locked {
		return appErrors.NewConflictError(fmt.Sprintf("acquire driver lock: condition failed for driver %s", lock.DriverID))
	}
	l.locks[lock.DriverID] = copyLock(lock)
	return nil
}

// Update implements ports.DriverLockRepository
func (l *LockLedger) Update(ctx context.Context, lock *dispatch.DriverLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	current, ok := l.locks[lock.DriverID]
	if !ok || !current.Locked {
		return appErrors.NewConflictError(fmt.Sprintf("update driver lock: condition failed for driver %s", lock.DriverID))
	}
	l.locks[lock.DriverID] = copyLock(lock)
	return nil
}

func copyLock(lock *dispatch.DriverLock) *dispatch.DriverLock {
	return &dispatch.DriverLock{
		DriverID:       lock.DriverID,
		Locked:         lock.Locked,
		Orders:         append([]string(nil), lock.Orders...),
		DriverIdentity: lock.DriverIdentity,
	}
}

// EventRecorder is a ports.EventBus capturing published events
type EventRecorder struct {
	mu     sync.Mutex
	Events []events.DomainEvent
}

// NewEventRecorder creates an empty event recorder
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Publish implements ports.EventBus
func (r *EventRecorder) Publish(ctx context.Context, event events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, event)
	return nil
}

// PublishBatch implements ports.EventBus
func (r *EventRecorder) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, batch...)
	return nil
}

// OfType returns the captured events matching the given type
func (r *EventRecorder) OfType(eventType string) []events.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []events.DomainEvent
	for _, e := range r.Events {
		if e.GetEventType() == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

// StreamRecorder is a ports.OrderStream capturing resubmissions
type StreamRecorder struct {
	mu          sync.Mutex
	Resubmitted []string
}

// NewStreamRecorder creates an empty stream recorder
func NewStreamRecorder() *StreamRecorder {
	return &StreamRecorder{}
}

// Resubmit implements ports.OrderStream
func (r *StreamRecorder) Resubmit(ctx context.Context, order *dispatch.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Resubmitted = append(r.Resubmitted, order.OrderID)
	return nil
}

// Count returns how many times the given order was resubmitted
func (r *StreamRecorder) Count(orderID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, id := range r.Resubmitted {
		if id == orderID {
			n++
		}
	}
	return n
}

// DeviceRecorder is a ports.DeviceChannel capturing pushes
type DeviceRecorder struct {
	mu     sync.Mutex
	Pushes map[string][]interface{}
}

// NewDeviceRecorder creates an empty device recorder
func NewDeviceRecorder() *DeviceRecorder {
	return &DeviceRecorder{Pushes: make(map[string][]interface{})}
}

// PublishToDevice implements ports.DeviceChannel
func (r *DeviceRecorder) PublishToDevice(ctx context.Context, channelID string, message interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Pushes[channelID] = append(r.Pushes[channelID], message)
	return nil
}

// PushCount returns how many messages went to the given channel
func (r *DeviceRecorder) PushCount(channelID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Pushes[channelID])
}

// StubRouter is a ports.RouteComputer returning a fixed route, with an
// optional per-order failure
type StubRouter struct {
	FailFor map[string]bool
}

// NewStubRouter creates a router that succeeds for every order
func NewStubRouter() *StubRouter {
	return &StubRouter{FailFor: make(map[string]bool)}
}

// ComputeRoute implements ports.RouteComputer
func (s *StubRouter) ComputeRoute(ctx context.Context, driverLocation dispatch.Coordinate, order *dispatch.Order) (*dispatch.Route, error) {
	if s.FailFor[order.OrderID] {
		return nil, appErrors.NewExternalError("routing", fmt.Errorf("no route for order %s", order.OrderID))
	}
	toRestaurant := dispatch.HaversineKm(driverLocation, order.Restaurant)
	toCustomer := dispatch.HaversineKm(order.Restaurant, order.Customer)
	return &dispatch.Route{
		DriverToRestaurantKm:   toRestaurant,
		RestaurantToCustomerKm: toCustomer,
		TotalKm:                toRestaurant + toCustomer,
		EstimatedDuration:      10 * time.Minute,
		ComputedAt:             time.Now(),
	}, nil
}

// StaticRegistry is a ports.DriverRegistry backed by a fixed candidate list
type StaticRegistry struct {
	mu         sync.Mutex
	Candidates []ports.DriverPosition
	Busy       map[string]bool
}

// NewStaticRegistry creates a registry with the given candidates
func NewStaticRegistry(candidates ...ports.DriverPosition) *StaticRegistry {
	return &StaticRegistry{
		Candidates: candidates,
		Busy:       make(map[string]bool),
	}
}

// ReportLocation implements ports.DriverRegistry
func (r *StaticRegistry) ReportLocation(ctx context.Context, driverID string, location dispatch.Coordinate) error {
	return nil
}

// SetAvailable implements ports.DriverRegistry
func (r *StaticRegistry) SetAvailable(ctx context.Context, driverID string, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Busy[driverID] = !available
	return nil
}

// FindNearby implements ports.DriverRegistry
func (r *StaticRegistry) FindNearby(ctx context.Context, centroid dispatch.Coordinate, radiusKm float64, limit int) ([]ports.DriverPosition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var nearby []ports.DriverPosition
	for _, c := range r.Candidates {
		if r.Busy[c.DriverID] {
			continue
		}
		if limit > 0 && len(nearby) >= limit {
			break
		}
		nearby = append(nearby, c)
	}
	return nearby, nil
}
