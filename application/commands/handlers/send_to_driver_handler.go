package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
)

// deviceCommand is the message pushed to the driver's device channel
type deviceCommand struct {
	Command string          `json:"command"`
	Order   *dispatch.Order `json:"order"`
}

// SendToDriverHandler computes routing for each assigned order and pushes
// the assignment to the driver's device, emitting ORDER_FULFILLED per order.
// Orders are processed strictly in sequence; any per-order failure is
// logged and that order skipped, the loop continues, and the call still
// reports success. Callers detect partial failure from emitted events and
// ledger state, not from the return value.
type SendToDriverHandler struct {
	orderRepo ports.OrderRepository
	router    ports.RouteComputer
	device    ports.DeviceChannel
	eventBus  ports.EventBus
	logger    *zap.Logger
	now       func() time.Time
}

// NewSendToDriverHandler creates a new send to driver handler
func NewSendToDriverHandler(
	orderRepo ports.OrderRepository,
	router ports.RouteComputer,
	device ports.DeviceChannel,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *SendToDriverHandler {
	return &SendToDriverHandler{
		orderRepo: orderRepo,
		router:    router,
		device:    device,
		eventBus:  eventBus,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle executes the send to driver command
func (h *SendToDriverHandler) Handle(ctx context.Context, cmd commands.SendToDriverCommand) (commands.SendResult, error) {
	for _, ref := range cmd.Orders {
		if err := h.sendOne(ctx, cmd, ref.OrderID); err != nil {
			h.logger.Error("Skipping order after dispatch failure",
				zap.String("orderID", ref.OrderID),
				zap.String("driverID", cmd.DriverID),
				zap.Error(err),
			)
		}
	}
	return commands.SendResult{Success: true}, nil
}

func (h *SendToDriverHandler) sendOne(ctx context.Context, cmd commands.SendToDriverCommand, orderID string) error {
	order, err := h.orderRepo.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	routing, err := h.router.ComputeRoute(ctx, cmd.DriverLocation, order)
	if err != nil {
		return err
	}

	// Attach routing conditional on the order still being ASSIGNED to this
	// driver; a conflict here means the reaper or the driver app moved the
	// order meanwhile and the push would be stale.
	if err := h.orderRepo.AttachRouting(ctx, orderID, cmd.DriverID, routing); err != nil {
		return err
	}
	order.Routing = routing

	if err := h.device.PublishToDevice(ctx, cmd.DriverIdentity, deviceCommand{
		Command: "acceptOrder",
		Order:   order,
	}); err != nil {
		return err
	}

	if err := h.eventBus.Publish(ctx, events.NewOrderFulfilled(order, h.now())); err != nil {
		return err
	}

	h.logger.Info("Order dispatched to driver",
		zap.String("orderID", orderID),
		zap.String("driverID", cmd.DriverID),
		zap.Float64("routeKm", routing.TotalKm),
	)
	return nil
}
