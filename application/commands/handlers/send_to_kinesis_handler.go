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
	"dispatch-backend/pkg/observability"
)

// SendToKinesisHandler offers failed orders back to the ingestion stream.
// Eligibility depends on why the batch is coming back: after a lock release
// only the orders the release actually freed are resubmitted; after a plain
// assignment failure everything goes back unless the ledger shows the order
// CANCELLED in the meantime.
type SendToKinesisHandler struct {
	orderRepo ports.OrderRepository
	stream    ports.OrderStream
	eventBus  ports.EventBus
	metrics   *observability.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewSendToKinesisHandler creates a new send to kinesis handler
func NewSendToKinesisHandler(
	orderRepo ports.OrderRepository,
	stream ports.OrderStream,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *SendToKinesisHandler {
	return &SendToKinesisHandler{
		orderRepo: orderRepo,
		stream:    stream,
		eventBus:  eventBus,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Handle executes the send to kinesis command
func (h *SendToKinesisHandler) Handle(ctx context.Context, cmd commands.SendToKinesisCommand) (commands.SendResult, error) {
	released := make(map[string]bool, len(cmd.OrdersReleased))
	for _, id := range cmd.OrdersReleased {
		released[id] = true
	}

	for _, ref := range cmd.Orders {
		order, err := h.orderRepo.GetByID(ctx, ref.OrderID)
		if err != nil {
			if appErrors.IsNotFound(err) {
				h.logger.Error("Order missing from ledger during resubmission",
					zap.String("orderID", ref.OrderID),
					zap.Bool("data_integrity", true),
				)
				continue
			}
			h.logger.Error("Failed to read order during resubmission",
				zap.String("orderID", ref.OrderID),
				zap.Error(err),
			)
			continue
		}

		if !h.eligible(cmd.Reason, order, released) {
			h.logger.Info("Order not eligible for resubmission",
				zap.String("orderID", ref.OrderID),
				zap.String("reason", string(cmd.Reason)),
				zap.String("status", string(order.Status)),
			)
			continue
		}

		if err := h.stream.Resubmit(ctx, order); err != nil {
			h.logger.Error("Failed to resubmit order",
				zap.String("orderID", ref.OrderID),
				zap.Error(err),
			)
			continue
		}
		h.metrics.RecordResubmission(ctx, string(cmd.Reason))

		if err := h.eventBus.Publish(ctx, events.NewOrderResubmitted(order.OrderID, string(cmd.Reason), h.now())); err != nil {
			h.logger.Warn("Failed to publish resubmission event",
				zap.String("orderID", ref.OrderID),
				zap.Error(err),
			)
		}
	}

	return commands.SendResult{Success: true}, nil
}

// eligible decides whether the order goes back on the stream
func (h *SendToKinesisHandler) eligible(reason commands.ResubmitReason, order *dispatch.Order, released map[string]bool) bool {
	switch reason {
	case commands.ResubmitLockReleased:
		// Orders absent from the released set are being handled by a
		// different path and must not be re-ingested here.
		return released[order.OrderID]
	default:
		return order.Status != dispatch.StatusCancelled
	}
}
