package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	appErrors "dispatch-backend/pkg/errors"
)

// LockDriverHandler claims a driver's capacity for a batch of orders.
// At most one of any number of concurrent lock attempts for the same driver
// succeeds; everyone else gets a negative result, never an error.
type LockDriverHandler struct {
	lockRepo ports.DriverLockRepository
	eventBus ports.EventBus
	logger   *zap.Logger
	now      func() time.Time
}

// NewLockDriverHandler creates a new lock driver handler
func NewLockDriverHandler(lockRepo ports.DriverLockRepository, eventBus ports.EventBus, logger *zap.Logger) *LockDriverHandler {
	return &LockDriverHandler{
		lockRepo: lockRepo,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// Handle executes the lock driver command
func (h *LockDriverHandler) Handle(ctx context.Context, cmd commands.LockDriverCommand) (commands.LockDriverResult, error) {
	if len(cmd.Orders) == 0 {
		return commands.LockDriverResult{Locked: false, Reason: commands.ReasonNoOrders}, nil
	}

	orderIDs := make([]string, 0, len(cmd.Orders))
	for _, o := range cmd.Orders {
		orderIDs = append(orderIDs, o.OrderID)
	}
	lock := dispatch.NewDriverLock(cmd.DriverID, cmd.DriverIdentity, orderIDs)

	current, err := h.lockRepo.GetByDriverID(ctx, cmd.DriverID)
	switch {
	case appErrors.IsNotFound(err):
		// First lock attempt for this driver: create the record, conditional
		// on nobody else creating it between our read and our write.
		if err := h.lockRepo.Create(ctx, lock); err != nil {
			if appErrors.IsConflict(err) {
				h.logger.Warn("Lost race creating driver lock",
					zap.String("driverID", cmd.DriverID),
				)
				return commands.LockDriverResult{Locked: false, Reason: commands.ReasonAlreadyLocked}, nil
			}
			return commands.LockDriverResult{}, appErrors.Wrap(err, "failed to create driver lock")
		}
		h.announceLocked(ctx, cmd.DriverID, orderIDs)
		return commands.LockDriverResult{Locked: true}, nil

	case err != nil:
		return commands.LockDriverResult{}, appErrors.Wrap(err, "failed to read driver lock")
	}

	if current.Locked {
		h.logger.Info("Driver already locked",
			zap.String("driverID", cmd.DriverID),
			zap.Int("heldOrders", len(current.Orders)),
		)
		return commands.LockDriverResult{Locked: false, Reason: commands.ReasonAlreadyLocked}, nil
	}

	// Record exists and is unlocked: flip it, conditional on it still being
	// unlocked at write time.
	if err := h.lockRepo.Acquire(ctx, lock); err != nil {
		if appErrors.IsConflict(err) {
			h.logger.Warn("Lost race acquiring driver lock",
				zap.String("driverID", cmd.DriverID),
			)
			return commands.LockDriverResult{Locked: false, Reason: commands.ReasonAlreadyLocked}, nil
		}
		return commands.LockDriverResult{}, appErrors.Wrap(err, "failed to acquire driver lock")
	}

	h.announceLocked(ctx, cmd.DriverID, orderIDs)
	return commands.LockDriverResult{Locked: true}, nil
}

func (h *LockDriverHandler) announceLocked(ctx context.Context, driverID string, orderIDs []string) {
	h.logger.Info("Driver locked",
		zap.String("driverID", driverID),
		zap.Int("orderCount", len(orderIDs)),
	)
	if err := h.eventBus.Publish(ctx, events.NewDriverLocked(driverID, orderIDs, h.now())); err != nil {
		h.logger.Warn("Failed to publish lock event",
			zap.String("driverID", driverID),
			zap.Error(err),
		)
	}
}
