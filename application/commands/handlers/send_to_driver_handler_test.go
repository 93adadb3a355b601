package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	"dispatch-backend/tests/fakes"
)

func seedAssigned(ledger *fakes.OrderLedger, orderID, driverID string) {
	order := dispatch.NewOrder(orderID,
		dispatch.Coordinate{Latitude: 40.71, Longitude: -74.00},
		dispatch.Coordinate{Latitude: 40.73, Longitude: -73.99},
	)
	if err := order.Assign(driverID, driverID+"-identity", time.Now()); err != nil {
		panic(err)
	}
	ledger.Put(order)
}

func TestSendToDriverHandler_AllOrdersDispatched(t *testing.T) {
	ledger := fakes.NewOrderLedger()
	seedAssigned(ledger, "o1", "d1")
	seedAssigned(ledger, "o2", "d1")
	device := fakes.NewDeviceRecorder()
	bus := fakes.NewEventRecorder()
	handler := NewSendToDriverHandler(ledger, fakes.NewStubRouter(), device, bus, zap.NewNop())

	result, err := handler.Handle(context.Background(), commands.SendToDriverCommand{
		DriverID:       "d1",
		DriverIdentity: "d1-identity",
		DriverLocation: dispatch.Coordinate{Latitude: 40.70, Longitude: -74.01},
		Orders:         []commands.OrderRef{{OrderID: "o1"}, {OrderID: "o2"}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, device.PushCount("d1-identity"))
	assert.Len(t, bus.OfType(events.EventTypeOrderFulfilled), 2)

	order, err := ledger.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	require.NotNil(t, order.Routing)
	assert.Greater(t, order.Routing.TotalKm, 0.0)
}

func TestSendToDriverHandler_RoutingFailureSkipsOrder(t *testing.T) {
	ledger := fakes.NewOrderLedger()
	seedAssigned(ledger, "o1", "d1")
	seedAssigned(ledger, "o2", "d1")
	seedAssigned(ledger, "o3", "d1")
	router := fakes.NewStubRouter()
	router.FailFor["o2"] = true
	device := fakes.NewDeviceRecorder()
	bus := fakes.NewEventRecorder()
	handler := NewSendToDriverHandler(ledger, router, device, bus, zap.NewNop())

	result, err := handler.Handle(context.Background(), commands.SendToDriverCommand{
		DriverID:       "d1",
		DriverIdentity: "d1-identity",
		Orders:         []commands.OrderRef{{OrderID: "o1"}, {OrderID: "o2"}, {OrderID: "o3"}},
	})

	// The batch still reports success; the failed order is simply skipped.
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 2, device.PushCount("d1-identity"))
	assert.Len(t, bus.OfType(events.EventTypeOrderFulfilled), 2)

	skipped, err := ledger.GetByID(context.Background(), "o2")
	require.NoError(t, err)
	assert.Nil(t, skipped.Routing)
}

func TestSendToDriverHandler_StaleAssignmentSkipped(t *testing.T) {
	ledger := fakes.NewOrderLedger()
	seedAssigned(ledger, "o1", "other")
	device := fakes.NewDeviceRecorder()
	bus := fakes.NewEventRecorder()
	handler := NewSendToDriverHandler(ledger, fakes.NewStubRouter(), device, bus, zap.NewNop())

	result, err := handler.Handle(context.Background(), commands.SendToDriverCommand{
		DriverID:       "d1",
		DriverIdentity: "d1-identity",
		Orders:         []commands.OrderRef{{OrderID: "o1"}},
	})

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 0, device.PushCount("d1-identity"))
	assert.Empty(t, bus.OfType(events.EventTypeOrderFulfilled))
}
