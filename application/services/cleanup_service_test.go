package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/domain/dispatch"
	"dispatch-backend/domain/events"
	"dispatch-backend/pkg/observability"
	"dispatch-backend/tests/fakes"
)

type cleanupFixture struct {
	service *CleanupService
	orders  *fakes.OrderLedger
	locks   *fakes.LockLedger
	stream  *fakes.StreamRecorder
	events  *fakes.EventRecorder
}

func newCleanupFixture(t *testing.T, ackTimeout time.Duration, now time.Time) *cleanupFixture {
	t.Helper()
	f := &cleanupFixture{
		orders: fakes.NewOrderLedger(),
		locks:  fakes.NewLockLedger(),
		stream: fakes.NewStreamRecorder(),
		events: fakes.NewEventRecorder(),
	}
	f.service = NewCleanupService(
		f.orders, f.locks, f.stream, f.events,
		observability.NewMetrics("test", nil, nil),
		zap.NewNop(),
		ackTimeout,
		time.Hour,
	)
	f.service.now = func() time.Time { return now }
	return f
}

func (f *cleanupFixture) seedAssignment(orderID, driverID string, assignedAt time.Time) {
	order := dispatch.NewOrder(orderID,
		dispatch.Coordinate{Latitude: 40.71, Longitude: -74.00},
		dispatch.Coordinate{Latitude: 40.73, Longitude: -73.99},
	)
	if err := order.Assign(driverID, driverID+"-identity", assignedAt); err != nil {
		panic(err)
	}
	f.orders.Put(order)
}

func TestCleanupService_ReleasesOrderAssignedPastTimeout(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := assignedAt.Add(61 * time.Second)
	f := newCleanupFixture(t, 60*time.Second, now)
	f.seedAssignment("o1", "d1", assignedAt)
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1"}))

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReleasedTimedOut)

	order, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusUnassigned, order.Status)
	assert.Empty(t, order.DriverID)

	lock, err := f.locks.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.Empty(t, lock.Orders)

	assert.Equal(t, 1, f.stream.Count("o1"))
	assert.Len(t, f.events.OfType(events.EventTypeOrderReleased), 1)
	assert.Len(t, f.events.OfType(events.EventTypeDriverUnlocked), 1)
}

func TestCleanupService_LeavesOrderWithinTimeoutAlone(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := assignedAt.Add(59 * time.Second)
	f := newCleanupFixture(t, 60*time.Second, now)
	f.seedAssignment("o1", "d1", assignedAt)
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1"}))

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, summary.ReleasedTimedOut)

	order, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAssigned, order.Status)
	assert.Equal(t, "d1", order.DriverID)
	assert.Equal(t, 0, f.stream.Count("o1"))
}

func TestCleanupService_SecondRunIsNoOp(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := assignedAt.Add(2 * time.Minute)
	f := newCleanupFixture(t, 60*time.Second, now)
	f.seedAssignment("o1", "d1", assignedAt)
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1"}))

	first, err := f.service.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, first.ReleasedTimedOut)

	second, err := f.service.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.ReleasedTimedOut)
	assert.Equal(t, 1, f.stream.Count("o1"))
	assert.Len(t, f.events.OfType(events.EventTypeOrderReleased), 1)
}

func TestCleanupService_DeliveredOrderFreesLockWithoutResubmission(t *testing.T) {
	deliveredAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := deliveredAt.Add(5 * time.Minute)
	f := newCleanupFixture(t, 60*time.Second, now)

	order := dispatch.NewOrder("o1", dispatch.Coordinate{}, dispatch.Coordinate{})
	require.NoError(t, order.Assign("d1", "d1-identity", deliveredAt))
	order.Status = dispatch.StatusDelivered
	order.UpdatedAt = deliveredAt
	f.orders.Put(order)
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1"}))

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.UnlockedDelivered)
	assert.Equal(t, 0, summary.ReleasedTimedOut)

	// The order keeps its terminal status; only the lock entry is freed.
	kept, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDelivered, kept.Status)

	lock, err := f.locks.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.False(t, lock.Locked)
	assert.Equal(t, 0, f.stream.Count("o1"))
	assert.Len(t, f.events.OfType(events.EventTypeDriverUnlocked), 1)
}

func TestCleanupService_RejectedOrderReleasedAndResubmitted(t *testing.T) {
	rejectedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := rejectedAt.Add(time.Minute)
	f := newCleanupFixture(t, 60*time.Second, now)

	order := dispatch.NewOrder("o1", dispatch.Coordinate{}, dispatch.Coordinate{})
	require.NoError(t, order.Assign("d1", "d1-identity", rejectedAt))
	order.Status = dispatch.StatusRejected
	order.UpdatedAt = rejectedAt
	f.orders.Put(order)
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1"}))

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReleasedRejected)

	released, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusUnassigned, released.Status)
	assert.Equal(t, 1, f.stream.Count("o1"))
}

func TestCleanupService_PartialLockReleaseKeepsDriverLocked(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := assignedAt.Add(2 * time.Minute)
	f := newCleanupFixture(t, 60*time.Second, now)

	// o1 timed out, o2 was assigned just now and is still within the timeout
	f.seedAssignment("o1", "d1", assignedAt)
	f.seedAssignment("o2", "d1", now.Add(-time.Second))
	f.locks.Put(dispatch.NewDriverLock("d1", "d1-identity", []string{"o1", "o2"}))

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReleasedTimedOut)

	lock, err := f.locks.GetByDriverID(context.Background(), "d1")
	require.NoError(t, err)
	assert.True(t, lock.Locked)
	assert.Equal(t, []string{"o2"}, lock.Orders)
	assert.Empty(t, f.events.OfType(events.EventTypeDriverUnlocked))
}

func TestCleanupService_MissingLockRecordDoesNotBlockRelease(t *testing.T) {
	assignedAt := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	now := assignedAt.Add(2 * time.Minute)
	f := newCleanupFixture(t, 60*time.Second, now)
	f.seedAssignment("o1", "d1", assignedAt)

	summary, err := f.service.Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, summary.ReleasedTimedOut)

	order, err := f.orders.GetByID(context.Background(), "o1")
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusUnassigned, order.Status)
	assert.Equal(t, 1, f.stream.Count("o1"))
}
