package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
	"dispatch-backend/pkg/observability"
)

// UpdateOrdersStatusHandler moves a batch of orders from UNASSIGNED to
// ASSIGNED for one driver. Each order is attempted independently with a
// conditional write; first writer wins per order, and winners are never
// rolled back when other orders in the batch lose their race. Partial
// success is resolved downstream by lock release and resubmission.
type UpdateOrdersStatusHandler struct {
	orderRepo ports.OrderRepository
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewUpdateOrdersStatusHandler creates a new update orders status handler
func NewUpdateOrdersStatusHandler(
	orderRepo ports.OrderRepository,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *UpdateOrdersStatusHandler {
	return &UpdateOrdersStatusHandler{
		orderRepo: orderRepo,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle executes the update orders status command
func (h *UpdateOrdersStatusHandler) Handle(ctx context.Context, cmd commands.UpdateOrdersStatusCommand) (commands.UpdateOrdersResult, error) {
	result := commands.UpdateOrdersResult{
		Status:     commands.BatchAllAssigned,
		StatusList: make([]commands.OrderStatusEntry, 0, len(cmd.Orders)),
	}

	for _, ref := range cmd.Orders {
		status := h.assignOne(ctx, ref.OrderID, cmd.DriverID, cmd.DriverIdentity)
		if status != commands.AssignmentAssigned {
			result.Status = commands.BatchAnyConflict
		}
		result.StatusList = append(result.StatusList, commands.OrderStatusEntry{
			OrderID: ref.OrderID,
			Status:  status,
		})
	}

	h.logger.Info("Order batch assignment finished",
		zap.String("driverID", cmd.DriverID),
		zap.String("status", result.Status),
		zap.Int("orderCount", len(cmd.Orders)),
	)
	return result, nil
}

// assignOne resolves a single order's assignment attempt to one of the
// per-order outcomes. Missing records are an inconsistency: an order that
// reaches an assignment attempt should already exist in the ledger, so the
// skip is logged at error level as a data-integrity signal.
func (h *UpdateOrdersStatusHandler) assignOne(ctx context.Context, orderID, driverID, driverIdentity string) commands.OrderAssignmentStatus {
	order, err := h.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		if appErrors.IsNotFound(err) {
			h.logger.Error("Order missing from ledger during assignment",
				zap.String("orderID", orderID),
				zap.String("driverID", driverID),
				zap.Bool("data_integrity", true),
			)
			return commands.AssignmentMissing
		}
		h.logger.Error("Failed to read order during assignment",
			zap.String("orderID", orderID),
			zap.Error(err),
		)
		return commands.AssignmentMissing
	}

	if order.Status != dispatch.StatusUnassigned {
		// Already claimed before this attempt; not re-attempted.
		return commands.AssignmentLocked
	}

	err = h.orderRepo.AssignToDriver(ctx, orderID, driverID, driverIdentity, h.now())
	if err != nil {
		if appErrors.IsConflict(err) {
			h.logger.Warn("Lost assignment race",
				zap.String("orderID", orderID),
				zap.String("driverID", driverID),
			)
			h.metrics.RecordAssignmentConflict(ctx, driverID)
			return commands.AssignmentConflict
		}
		h.logger.Error("Failed to assign order",
			zap.String("orderID", orderID),
			zap.String("driverID", driverID),
			zap.Error(err),
		)
		return commands.AssignmentConflict
	}

	return commands.AssignmentAssigned
}
