package handlers

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	"dispatch-backend/tests/fakes"
)

func lockCmd(driverID string, orderIDs ...string) commands.LockDriverCommand {
	refs := make([]commands.OrderRef, 0, len(orderIDs))
	for _, id := range orderIDs {
		refs = append(refs, commands.OrderRef{OrderID: id})
	}
	return commands.LockDriverCommand{
		DriverID:       driverID,
		DriverIdentity: driverID + "-identity",
		Orders:         refs,
	}
}

func TestLockDriverHandler_EmptyOrders(t *testing.T) {
	handler := NewLockDriverHandler(fakes.NewLockLedger(), fakes.NewEventRecorder(), zap.NewNop())

	result, err := handler.Handle(context.Background(), lockCmd("d1"))

	require.NoError(t, err)
	assert.False(t, result.Locked)
	assert.Equal(t, commands.ReasonNoOrders, result.Reason)
}

func TestLockDriverHandler_FirstLockCreatesRecord(t *testing.T) {
	ledger := fakes.NewLockLedger()
	recorder := fakes.NewEventRecorder()
	handler := NewLockDriverHandler(ledger, recorder, zap.NewNop())

	result, err := handler.Handle(context.Background(), lockCmd("d1", "o1"))

	require.NoError(t, err)
	assert.True(t, result.Locked)

	lock, err := ledger.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, []string{"o1"}, lock.Orders)

	published := recorder.OfType(events.EventTypeDriverLocked)
	require.Len(t, published, 1)
	locked := published[0].(events.DriverLocked)
	assert.Equal(t, "d1", locked.DriverID)
	assert.Equal(t, []string{"o1"}, locked.Orders)
}

func TestLockDriverHandler_SecondLockRejected(t *testing.T) {
	ledger := fakes.NewLockLedger()
	handler := NewLockDriverHandler(ledger, fakes.NewEventRecorder(), zap.NewNop())
	ctx := context.Background()

	first, err := handler.Handle(ctx, lockCmd("d1", "o1"))
	require.NoError(t, err)
	require.True(t, first.Locked)

	second, err := handler.Handle(ctx, lockCmd("d1", "o2"))
	require.NoError(t, err)
	assert.False(t, second.Locked)
	assert.Equal(t, commands.ReasonAlreadyLocked, second.Reason)

	// The held batch must be untouched by the losing attempt.
	lock, err := ledger.GetByDriverID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, lock.Orders)
}

func TestLockDriverHandler_RelockAfterRelease(t *testing.T) {
	ledger := fakes.NewLockLedger()
	ledger.Put(&dispatch.DriverLock{DriverID: "d1", Locked: false})
	handler := NewLockDriverHandler(ledger, fakes.NewEventRecorder(), zap.NewNop())

	result, err := handler.Handle(context.Background(), lockCmd("d1", "o9"))

	require.NoError(t, err)
	assert.True(t, result.Locked)

	lock, err := ledger.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o9"}, lock.Orders)
}

func TestLockDriverHandler_ConcurrentAttemptsOneWinner(t *testing.T) {
	const attempts = 16

	ledger := fakes.NewLockLedger()
	handler := NewLockDriverHandler(ledger, fakes.NewEventRecorder(), zap.NewNop())

	var wg sync.WaitGroup
	results := make([]commands.LockDriverResult, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := handler.Handle(context.Background(), lockCmd("d1", "o1"))
			require.NoError(t, err)
			results[i] = result
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, r := range results {
		if r.Locked {
			winners++
		} else {
			assert.Equal(t, commands.ReasonAlreadyLocked, r.Reason)
		}
	}
	assert.Equal(t, 1, winners)
}
