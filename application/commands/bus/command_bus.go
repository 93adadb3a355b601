package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/commands/handlers"
	appErrors "dispatch-backend/pkg/errors"
)

// CommandKind enumerates the orchestrator commands. Dispatch is a switch
// over this enum so an unknown command is a decode-time failure, not a
// missing map entry at call time.
type CommandKind string

const (
	KindLockDriver         CommandKind = "lockDriver"
	KindUpdateOrdersStatus CommandKind = "updateOrdersStatus"
	KindSendToDriver       CommandKind = "sendToDriver"
	KindSendToKinesis      CommandKind = "sendToKinesis"
)

// Request is the raw orchestrator invocation: a command kind plus its
// payload, as delivered by the state machine
type Request struct {
	Command CommandKind     `json:"command"`
	Payload json.RawMessage `json:"payload"`
}

// CommandBus decodes orchestrator requests and dispatches them to the
// matching handler
type CommandBus struct {
	lockDriver    *handlers.LockDriverHandler
	updateOrders  *handlers.UpdateOrdersStatusHandler
	sendToDriver  *handlers.SendToDriverHandler
	sendToKinesis *handlers.SendToKinesisHandler
	logger        *zap.Logger
}

// NewCommandBus creates a command bus over the four orchestrator handlers
func NewCommandBus(
	lockDriver *handlers.LockDriverHandler,
	updateOrders *handlers.UpdateOrdersStatusHandler,
	sendToDriver *handlers.SendToDriverHandler,
	sendToKinesis *handlers.SendToKinesisHandler,
	logger *zap.Logger,
) *CommandBus {
	return &CommandBus{
		lockDriver:    lockDriver,
		updateOrders:  updateOrders,
		sendToDriver:  sendToDriver,
		sendToKinesis: sendToKinesis,
		logger:        logger,
	}
}

// Dispatch decodes the request payload for its command kind, validates it,
// and runs the handler. The returned value is the handler's structured
// result; structurally invalid input is the only error surfaced to the
// invoker.
func (b *CommandBus) Dispatch(ctx context.Context, req Request) (interface{}, error) {
	b.logger.Info("Dispatching command", zap.String("command", string(req.Command)))

	switch req.Command {
	case KindLockDriver:
		var cmd commands.LockDriverCommand
		if err := decode(req.Payload, &cmd); err != nil {
			return nil, err
		}
		return b.lockDriver.Handle(ctx, cmd)

	case KindUpdateOrdersStatus:
		var cmd commands.UpdateOrdersStatusCommand
		if err := decode(req.Payload, &cmd); err != nil {
			return nil, err
		}
		return b.updateOrders.Handle(ctx, cmd)

	case KindSendToDriver:
		var cmd commands.SendToDriverCommand
		if err := decode(req.Payload, &cmd); err != nil {
			return nil, err
		}
		return b.sendToDriver.Handle(ctx, cmd)

	case KindSendToKinesis:
		var cmd commands.SendToKinesisCommand
		if err := decode(req.Payload, &cmd); err != nil {
			return nil, err
		}
		return b.sendToKinesis.Handle(ctx, cmd)

	default:
		return nil, fmt.Errorf("unknown command %q", req.Command)
	}
}

// validatable is implemented by every command payload
type validatable interface {
	Validate() error
}

func decode(payload json.RawMessage, cmd validatable) error {
	if err := json.Unmarshal(payload, cmd); err != nil {
		return fmt.Errorf("failed to decode command payload: %w", err)
	}
	if err := cmd.Validate(); err != nil {
		return appErrors.NewValidationError(err.Error())
	}
	return nil
}
