package routing

import (
	"context"
	"time"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
)

// HaversineRouter implements the RouteComputer interface with great-circle
// leg distances and a configured average speed. It stands in for an
// external routing service when straight-line estimates are good enough.
type HaversineRouter struct {
	avgSpeedKmh float64
}

// NewHaversineRouter creates a router with the given average speed
func NewHaversineRouter(avgSpeedKmh float64) ports.RouteComputer {
	return &HaversineRouter{avgSpeedKmh: avgSpeedKmh}
}

// ComputeRoute builds the driver -> restaurant -> customer route
func (r *HaversineRouter) ComputeRoute(ctx context.Context, driverLocation dispatch.Coordinate, order *dispatch.Order) (*dispatch.Route, error) {
	if r.avgSpeedKmh <= 0 {
		return nil, appErrors.NewInternalError("router average speed must be positive")
	}

	toRestaurant := dispatch.HaversineKm(driverLocation, order.Restaurant)
	toCustomer := dispatch.HaversineKm(order.Restaurant, order.Customer)
	total := toRestaurant + toCustomer

	return &dispatch.Route{
		DriverToRestaurantKm:   toRestaurant,
		RestaurantToCustomerKm: toCustomer,
		TotalKm:                total,
		EstimatedDuration:      time.Duration(total / r.avgSpeedKmh * float64(time.Hour)),
		ComputedAt:             time.Now(),
	}, nil
}
