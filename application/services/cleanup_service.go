package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	appErrors "dispatch-backend/pkg/errors"
	"dispatch-backend/pkg/observability"
)

// CleanupSummary counts what one reaper invocation did
type CleanupSummary struct {
	ReleasedTimedOut  int `json:"releasedTimedOut"`
	ReleasedRejected  int `json:"releasedRejected"`
	UnlockedDelivered int `json:"unlockedDelivered"`
}

// CleanupService is the scheduled sweep that restores dispatch invariants
// after partial failures or driver inaction. Three passes run sequentially
// per invocation; entries within a pass are independent and fan out
// concurrently. Every mutation is a conditional write, so a pass that runs
// twice over the same order is a no-op the second time.
type CleanupService struct {
	orderRepo  ports.OrderRepository
	lockRepo   ports.DriverLockRepository
	stream     ports.OrderStream
	eventBus   ports.EventBus
	metrics    *observability.Metrics
	logger     *zap.Logger
	ackTimeout time.Duration
	window     time.Duration
	now        func() time.Time
}

// NewCleanupService creates a new cleanup service. ackTimeout is how long an
// order may sit in ASSIGNED before the driver is presumed unresponsive;
// window bounds how far back the DELIVERED/REJECTED sweeps look.
func NewCleanupService(
	orderRepo ports.OrderRepository,
	lockRepo ports.DriverLockRepository,
	stream ports.OrderStream,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
	ackTimeout time.Duration,
	window time.Duration,
) *CleanupService {
	return &CleanupService{
		orderRepo:  orderRepo,
		lockRepo:   lockRepo,
		stream:     stream,
		eventBus:   eventBus,
		metrics:    metrics,
		logger:     logger,
		ackTimeout: ackTimeout,
		window:     window,
		now:        time.Now,
	}
}

// Run executes one full reaper invocation
func (s *CleanupService) Run(ctx context.Context) (CleanupSummary, error) {
	var summary CleanupSummary

	summary.ReleasedTimedOut = s.sweepAssigned(ctx)
	summary.UnlockedDelivered = s.sweepDelivered(ctx)
	summary.ReleasedRejected = s.sweepRejected(ctx)

	s.logger.Info("Cleanup sweep finished",
		zap.Int("releasedTimedOut", summary.ReleasedTimedOut),
		zap.Int("unlockedDelivered", summary.UnlockedDelivered),
		zap.Int("releasedRejected", summary.ReleasedRejected),
	)
	s.metrics.RecordCleanup(ctx, summary.ReleasedTimedOut+summary.ReleasedRejected, summary.UnlockedDelivered)
	return summary, nil
}

// sweepAssigned releases orders stuck in ASSIGNED past the acknowledge
// timeout: order back to UNASSIGNED, driver lock entry freed, order
// resubmitted to the stream.
func (s *CleanupService) sweepAssigned(ctx context.Context) int {
	now := s.now()
	orders, err := s.orderRepo.QueryByStatus(ctx, dispatch.StatusAssigned, s.window, now)
	if err != nil {
		s.logger.Error("Failed to query ASSIGNED orders", zap.Error(err))
		return 0
	}

	var stuck []*dispatch.Order
	for _, order := range orders {
		if order.AssignedLongerThan(s.ackTimeout, now) {
			stuck = append(stuck, order)
		}
	}

	return s.forEach(ctx, stuck, func(ctx context.Context, order *dispatch.Order) bool {
		return s.releaseOrder(ctx, order, dispatch.StatusAssigned, "acknowledge timeout")
	})
}

// sweepDelivered frees driver capacity for recently delivered orders.
// Delivery completion does not resubmit the order.
func (s *CleanupService) sweepDelivered(ctx context.Context) int {
	orders, err := s.orderRepo.QueryByStatus(ctx, dispatch.StatusDelivered, s.window, s.now())
	if err != nil {
		s.logger.Error("Failed to query DELIVERED orders", zap.Error(err))
		return 0
	}

	return s.forEach(ctx, orders, func(ctx context.Context, order *dispatch.Order) bool {
		return s.releaseLockEntry(ctx, order.DriverID, order.OrderID)
	})
}

// sweepRejected treats a driver rejection exactly like a timeout: the order
// returns to UNASSIGNED, the lock entry is freed, and the order is
// resubmitted.
func (s *CleanupService) sweepRejected(ctx context.Context) int {
	orders, err := s.orderRepo.QueryByStatus(ctx, dispatch.StatusRejected, s.window, s.now())
	if err != nil {
		s.logger.Error("Failed to query REJECTED orders", zap.Error(err))
		return 0
	}

	return s.forEach(ctx, orders, func(ctx context.Context, order *dispatch.Order) bool {
		return s.releaseOrder(ctx, order, dispatch.StatusRejected, "driver rejection")
	})
}

// forEach runs fn concurrently over the orders and returns how many calls
// reported having done work
func (s *CleanupService) forEach(ctx context.Context, orders []*dispatch.Order, fn func(context.Context, *dispatch.Order) bool) int {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		count int
	)
	for _, order := range orders {
		wg.Add(1)
		go func(order *dispatch.Order) {
			defer wg.Done()
			if fn(ctx, order) {
				mu.Lock()
				count++
				mu.Unlock()
			}
		}(order)
	}
	wg.Wait()
	return count
}

// releaseOrder restores a single stuck or rejected order: reset to
// UNASSIGNED conditional on the status the sweep observed, free the lock
// entry, resubmit, and emit ORDER_RELEASED.
func (s *CleanupService) releaseOrder(ctx context.Context, order *dispatch.Order, expected dispatch.OrderStatus, reason string) bool {
	driverID := order.DriverID

	if err := s.orderRepo.ReleaseOrder(ctx, order.OrderID, expected); err != nil {
		if appErrors.IsConflict(err) {
			// Someone else already moved the order; this entry is handled.
			s.logger.Warn("Order moved before release",
				zap.String("orderID", order.OrderID),
				zap.String("expectedStatus", string(expected)),
			)
			return false
		}
		s.logger.Error("Failed to release order",
			zap.String("orderID", order.OrderID),
			zap.Error(err),
		)
		return false
	}

	s.releaseLockEntry(ctx, driverID, order.OrderID)

	released, err := s.orderRepo.GetByID(ctx, order.OrderID)
	if err != nil {
		s.logger.Error("Failed to re-read released order",
			zap.String("orderID", order.OrderID),
			zap.Error(err),
		)
		return true
	}
	if err := s.stream.Resubmit(ctx, released); err != nil {
		s.logger.Error("Failed to resubmit released order",
			zap.String("orderID", order.OrderID),
			zap.Error(err),
		)
	}

	if err := s.eventBus.Publish(ctx, events.NewOrderReleased(order.OrderID, driverID, reason, s.now())); err != nil {
		s.logger.Warn("Failed to publish release event",
			zap.String("orderID", order.OrderID),
			zap.Error(err),
		)
	}

	s.logger.Info("Order released",
		zap.String("orderID", order.OrderID),
		zap.String("driverID", driverID),
		zap.String("reason", reason),
	)
	return true
}

// releaseLockEntry removes one order from a driver's lock claim set. When
// the set empties the lock unlocks and DRIVER_UNLOCKED is emitted. A
// missing lock record or a lost conditional write both mean the release
// already happened elsewhere; neither is retried.
func (s *CleanupService) releaseLockEntry(ctx context.Context, driverID, orderID string) bool {
	if driverID == "" {
		return false
	}

	lock, err := s.lockRepo.GetByDriverID(ctx, driverID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			s.logger.Warn("No lock record to release",
				zap.String("driverID", driverID),
				zap.String("orderID", orderID),
			)
			return false
		}
		s.logger.Error("Failed to read driver lock",
			zap.String("driverID", driverID),
			zap.Error(err),
		)
		return false
	}

	if !lock.Locked || !lock.Holds(orderID) {
		// Entry already gone; release is idempotent.
		return false
	}

	lock.RemoveOrder(orderID)
	if err := s.lockRepo.Update(ctx, lock); err != nil {
		if appErrors.IsConflict(err) {
			s.logger.Warn("Lock already released",
				zap.String("driverID", driverID),
				zap.String("orderID", orderID),
			)
			return false
		}
		s.logger.Error("Failed to update driver lock",
			zap.String("driverID", driverID),
			zap.Error(err),
		)
		return false
	}

	if !lock.Locked {
		if err := s.eventBus.Publish(ctx, events.NewDriverUnlocked(driverID, s.now())); err != nil {
			s.logger.Warn("Failed to publish unlock event",
				zap.String("driverID", driverID),
				zap.Error(err),
			)
		}
	}
	return true
}
