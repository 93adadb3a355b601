package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/commands/bus"
	"dispatch-backend/application/commands/handlers"
	"dispatch-backend/application/services"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/pkg/observability"
	"dispatch-backend/tests/fakes"
)

// harness wires the command bus and reaper over the in-memory ledgers, the
// way the orchestrator and the scheduled cleanup share one container.
type harness struct {
	bus     *bus.CommandBus
	cleanup *services.CleanupService
	orders  *fakes.OrderLedger
	locks   *fakes.LockLedger
	device  *fakes.DeviceRecorder
	stream  *fakes.StreamRecorder
}

func newHarness(t *testing.T, ackTimeout time.Duration) *harness {
	t.Helper()
	h := &harness{
		orders: fakes.NewOrderLedger(),
		locks:  fakes.NewLockLedger(),
		device: fakes.NewDeviceRecorder(),
		stream: fakes.NewStreamRecorder(),
	}
	events := fakes.NewEventRecorder()
	metrics := observability.NewMetrics("test", nil, nil)
	logger := zap.NewNop()
	h.bus = bus.NewCommandBus(
		handlers.NewLockDriverHandler(h.locks, events, logger),
		handlers.NewUpdateOrdersStatusHandler(h.orders, metrics, logger),
		handlers.NewSendToDriverHandler(h.orders, fakes.NewStubRouter(), h.device, events, logger),
		handlers.NewSendToKinesisHandler(h.orders, h.stream, events, metrics, logger),
		logger,
	)
	h.cleanup = services.NewCleanupService(
		h.orders, h.locks, h.stream, events, metrics, logger, ackTimeout, time.Hour,
	)
	return h
}

func (h *harness) dispatch(t *testing.T, kind bus.CommandKind, cmd interface{}) interface{} {
	t.Helper()
	payload, err := json.Marshal(cmd)
	require.NoError(t, err)
	result, err := h.bus.Dispatch(context.Background(), bus.Request{Command: kind, Payload: payload})
	require.NoError(t, err)
	return result
}

func TestDispatchFlow_LockAssignNotify(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.orders.Put(dispatch.NewOrder("o1",
		dispatch.Coordinate{Latitude: 40.7100, Longitude: -74.0000},
		dispatch.Coordinate{Latitude: 40.7300, Longitude: -73.9900},
	))
	refs := []commands.OrderRef{{OrderID: "o1"}}

	lockResult := h.dispatch(t, bus.KindLockDriver, commands.LockDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	}).(commands.LockDriverResult)
	require.True(t, lockResult.Locked)

	assignResult := h.dispatch(t, bus.KindUpdateOrdersStatus, commands.UpdateOrdersStatusCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	}).(commands.UpdateOrdersResult)
	require.True(t, assignResult.AllAssigned())

	sendResult := h.dispatch(t, bus.KindSendToDriver, commands.SendToDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1",
		DriverLocation: dispatch.Coordinate{Latitude: 40.7050, Longitude: -74.0020},
		Orders:         refs,
	}).(commands.SendResult)
	require.True(t, sendResult.Success)

	order, err := h.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAssigned, order.Status)
	assert.Equal(t, "d1", order.DriverID)
	require.NotNil(t, order.Routing)
	assert.Equal(t, 1, h.device.PushCount("conn-1"))
}

func TestDispatchFlow_SecondDriverCannotStealBatch(t *testing.T) {
	h := newHarness(t, time.Minute)
	h.orders.Put(dispatch.NewOrder("o1", dispatch.Coordinate{}, dispatch.Coordinate{}))
	refs := []commands.OrderRef{{OrderID: "o1"}}

	first := h.dispatch(t, bus.KindLockDriver, commands.LockDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	}).(commands.LockDriverResult)
	require.True(t, first.Locked)
	h.dispatch(t, bus.KindUpdateOrdersStatus, commands.UpdateOrdersStatusCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	})

	// A relock by the same driver while the batch is in flight must fail.
	second := h.dispatch(t, bus.KindLockDriver, commands.LockDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	}).(commands.LockDriverResult)
	assert.False(t, second.Locked)
	assert.Equal(t, commands.ReasonAlreadyLocked, second.Reason)

	// Another driver racing for the same order loses the conditional write.
	rival := h.dispatch(t, bus.KindUpdateOrdersStatus, commands.UpdateOrdersStatusCommand{
		DriverID: "d2", DriverIdentity: "conn-2", Orders: refs,
	}).(commands.UpdateOrdersResult)
	assert.False(t, rival.AllAssigned())

	order, err := h.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, "d1", order.DriverID)
}

func TestDispatchFlow_ReaperFreesUnacknowledgedBatch(t *testing.T) {
	h := newHarness(t, 20*time.Millisecond)
	h.orders.Put(dispatch.NewOrder("o1", dispatch.Coordinate{}, dispatch.Coordinate{}))
	refs := []commands.OrderRef{{OrderID: "o1"}}

	h.dispatch(t, bus.KindLockDriver, commands.LockDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	})
	h.dispatch(t, bus.KindUpdateOrdersStatus, commands.UpdateOrdersStatusCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	})

	// The driver never acknowledges; the reaper runs past the timeout.
	time.Sleep(50 * time.Millisecond)
	summary, err := h.cleanup.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReleasedTimedOut)

	order, err := h.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusUnassigned, order.Status)
	assert.Equal(t, 1, h.stream.Count("o1"))

	lock, err := h.locks.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, lock.Locked)

	// The freed driver can take the next batch.
	relock := h.dispatch(t, bus.KindLockDriver, commands.LockDriverCommand{
		DriverID: "d1", DriverIdentity: "conn-1", Orders: refs,
	}).(commands.LockDriverResult)
	assert.True(t, relock.Locked)
}
