package redisgeo

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
)

const (
	locationKey     = "dispatch:driver:locations"
	availabilityKey = "dispatch:driver:available"
)

// DriverRegistry tracks driver locations in a Redis geo set and
// availability in a plain set. The client is created once per process and
// reused across invocations.
type DriverRegistry struct {
	client *redis.Client
	logger *zap.Logger
}

// NewDriverRegistry creates a new Redis-backed driver registry
func NewDriverRegistry(client *redis.Client, logger *zap.Logger) ports.DriverRegistry {
	return &DriverRegistry{
		client: client,
		logger: logger,
	}
}

// ReportLocation records a driver's current location
func (r *DriverRegistry) ReportLocation(ctx context.Context, driverID string, location dispatch.Coordinate) error {
	err := r.client.GeoAdd(ctx, locationKey, &redis.GeoLocation{
		Name:      driverID,
		Latitude:  location.Latitude,
		Longitude: location.Longitude,
	}).Err()
	if err != nil {
		return appErrors.NewExternalError("redis", err)
	}
	return nil
}

// SetAvailable marks a driver available or unavailable for dispatch
func (r *DriverRegistry) SetAvailable(ctx context.Context, driverID string, available bool) error {
	var err error
	if available {
		err = r.client.SAdd(ctx, availabilityKey, driverID).Err()
	} else {
		err = r.client.SRem(ctx, availabilityKey, driverID).Err()
	}
	if err != nil {
		return appErrors.NewExternalError("redis", err)
	}
	return nil
}

// FindNearby returns available drivers within radiusKm of the centroid,
// closest first, at most limit entries
func (r *DriverRegistry) FindNearby(ctx context.Context, centroid dispatch.Coordinate, radiusKm float64, limit int) ([]ports.DriverPosition, error) {
	locations, err := r.client.GeoRadius(ctx, locationKey, centroid.Longitude, centroid.Latitude, &redis.GeoRadiusQuery{
		Radius:    radiusKm,
		Unit:      "km",
		WithCoord: true,
		WithDist:  true,
		Sort:      "ASC",
	}).Result()
	if err != nil {
		return nil, appErrors.NewExternalError("redis", err)
	}

	var nearby []ports.DriverPosition
	for _, loc := range locations {
		if limit > 0 && len(nearby) >= limit {
			break
		}
		available, err := r.client.SIsMember(ctx, availabilityKey, loc.Name).Result()
		if err != nil {
			return nil, appErrors.NewExternalError("redis", err)
		}
		if !available {
			continue
		}
		nearby = append(nearby, ports.DriverPosition{
			DriverID:   loc.Name,
			Location:   dispatch.Coordinate{Latitude: loc.Latitude, Longitude: loc.Longitude},
			DistanceKm: loc.Dist,
		})
	}

	r.logger.Debug("Driver search finished",
		zap.Float64("radiusKm", radiusKm),
		zap.Int("found", len(nearby)),
	)
	return nearby, nil
}
