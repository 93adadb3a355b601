package dispatch

import "time"

// Route is the computed route data attached to an assigned order: the legs
// driver -> restaurant -> customer with distances and an estimated duration.
type Route struct {
	DriverToRestaurantKm   float64       `json:"driverToRestaurantKm"`
	RestaurantToCustomerKm float64       `json:"restaurantToCustomerKm"`
	TotalKm                float64       `json:"totalKm"`
	EstimatedDuration      time.Duration `json:"estimatedDuration"`
	ComputedAt             time.Time     `json:"computedAt"`
}
