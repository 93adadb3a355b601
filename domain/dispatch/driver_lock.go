package dispatch

// DriverLock represents the exclusive claim of a driver's capacity for one
// batch of orders. At most one locked record exists per driver at a time;
// exclusivity is enforced by conditional writes against the lock ledger,
// not by this type.
type DriverLock struct {
	DriverID       string   `json:"driverId"`
	Locked         bool     `json:"locked"`
	Orders         []string `json:"orders"`
	DriverIdentity string   `json:"driverIdentity,omitempty"`
}

// NewDriverLock creates a locked record claiming the given orders
func NewDriverLock(driverID, driverIdentity string, orderIDs []string) *DriverLock {
	return &DriverLock{
		DriverID:       driverID,
		Locked:         true,
		Orders:         append([]string(nil), orderIDs...),
		DriverIdentity: driverIdentity,
	}
}

// Holds reports whether the lock currently claims the given order
func (l *DriverLock) Holds(orderID string) bool {
	for _, id := range l.Orders {
		if id == orderID {
			return true
		}
	}
	return false
}

// RemoveOrder drops the order from the lock's claim set. When the last
// order is removed the lock unlocks, freeing the driver for a new batch.
// Removing an order that is not held is a no-op, so release is safe to
// run twice.
func (l *DriverLock) RemoveOrder(orderID string) {
	remaining := l.Orders[:0]
	for _, id := range l.Orders {
		if id != orderID {
			remaining = append(remaining, id)
		}
	}
	l.Orders = remaining
	if len(l.Orders) == 0 {
		l.Locked = false
	}
}
