package bus

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/commands/handlers"
	appErrors "dispatch-backend/pkg/errors"
	"dispatch-backend/pkg/observability"
	"dispatch-backend/tests/fakes"
)

func newTestBus() *CommandBus {
	orders := fakes.NewOrderLedger()
	locks := fakes.NewLockLedger()
	events := fakes.NewEventRecorder()
	metrics := observability.NewMetrics("test", nil, nil)
	logger := zap.NewNop()
	return NewCommandBus(
		handlers.NewLockDriverHandler(locks, events, logger),
		handlers.NewUpdateOrdersStatusHandler(orders, metrics, logger),
		handlers.NewSendToDriverHandler(orders, fakes.NewStubRouter(), fakes.NewDeviceRecorder(), events, logger),
		handlers.NewSendToKinesisHandler(orders, fakes.NewStreamRecorder(), events, metrics, logger),
		logger,
	)
}

func TestCommandBus_DispatchLockDriver(t *testing.T) {
	b := newTestBus()

	payload, err := json.Marshal(commands.LockDriverCommand{
		DriverID:       "d1",
		DriverIdentity: "d1-identity",
		Orders:         []commands.OrderRef{{OrderID: "o1"}},
	})
	require.NoError(t, err)

	result, err := b.Dispatch(context.Background(), Request{Command: KindLockDriver, Payload: payload})
	require.NoError(t, err)

	lockResult, ok := result.(commands.LockDriverResult)
	require.True(t, ok)
	assert.True(t, lockResult.Locked)
}

func TestCommandBus_UnknownCommand(t *testing.T) {
	b := newTestBus()

	_, err := b.Dispatch(context.Background(), Request{Command: "fulfilOrder", Payload: json.RawMessage(`{}`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestCommandBus_MalformedPayload(t *testing.T) {
	b := newTestBus()

	_, err := b.Dispatch(context.Background(), Request{Command: KindLockDriver, Payload: json.RawMessage(`{not json`)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode command payload")
}

func TestCommandBus_ValidationFailureSurfacesAsValidationError(t *testing.T) {
	b := newTestBus()

	// driverId is required for lockDriver.
	_, err := b.Dispatch(context.Background(), Request{Command: KindLockDriver, Payload: json.RawMessage(`{"driverIdentity":"x"}`)})
	require.Error(t, err)
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeValidation))
}

func TestCommandBus_SendToKinesisRejectsUnknownReason(t *testing.T) {
	b := newTestBus()

	payload := json.RawMessage(`{"orders":[{"orderId":"o1"}],"reason":"BECAUSE"}`)
	_, err := b.Dispatch(context.Background(), Request{Command: KindSendToKinesis, Payload: payload})
	require.Error(t, err)
	assert.True(t, appErrors.IsType(err, appErrors.ErrorTypeValidation))
}
