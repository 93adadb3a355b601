package redisgeo

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dispatch-backend/domain/dispatch"
)

func newTestRegistry(t *testing.T) *DriverRegistry {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return &DriverRegistry{client: client, logger: zap.NewNop()}
}

func TestDriverRegistry_FindNearbyReturnsAvailableDriversClosestFirst(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	centroid := dispatch.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	require.NoError(t, registry.ReportLocation(ctx, "near", dispatch.Coordinate{Latitude: 40.7130, Longitude: -74.0060}))
	require.NoError(t, registry.ReportLocation(ctx, "far", dispatch.Coordinate{Latitude: 40.7500, Longitude: -74.0060}))
	require.NoError(t, registry.SetAvailable(ctx, "near", true))
	require.NoError(t, registry.SetAvailable(ctx, "far", true))

	nearby, err := registry.FindNearby(ctx, centroid, 10, 0)
	require.NoError(t, err)

	require.Len(t, nearby, 2)
	assert.Equal(t, "near", nearby[0].DriverID)
	assert.Equal(t, "far", nearby[1].DriverID)
	assert.Less(t, nearby[0].DistanceKm, nearby[1].DistanceKm)
}

func TestDriverRegistry_FindNearbySkipsUnavailableDrivers(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	centroid := dispatch.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	require.NoError(t, registry.ReportLocation(ctx, "busy", dispatch.Coordinate{Latitude: 40.7130, Longitude: -74.0060}))
	require.NoError(t, registry.ReportLocation(ctx, "free", dispatch.Coordinate{Latitude: 40.7140, Longitude: -74.0060}))
	require.NoError(t, registry.SetAvailable(ctx, "busy", true))
	require.NoError(t, registry.SetAvailable(ctx, "free", true))
	require.NoError(t, registry.SetAvailable(ctx, "busy", false))

	nearby, err := registry.FindNearby(ctx, centroid, 10, 0)
	require.NoError(t, err)

	require.Len(t, nearby, 1)
	assert.Equal(t, "free", nearby[0].DriverID)
}

func TestDriverRegistry_FindNearbyHonorsRadiusAndLimit(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()
	centroid := dispatch.Coordinate{Latitude: 40.7128, Longitude: -74.0060}

	require.NoError(t, registry.ReportLocation(ctx, "d1", dispatch.Coordinate{Latitude: 40.7129, Longitude: -74.0060}))
	require.NoError(t, registry.ReportLocation(ctx, "d2", dispatch.Coordinate{Latitude: 40.7131, Longitude: -74.0060}))
	require.NoError(t, registry.ReportLocation(ctx, "remote", dispatch.Coordinate{Latitude: 41.5000, Longitude: -74.0060}))
	for _, id := range []string{"d1", "d2", "remote"} {
		require.NoError(t, registry.SetAvailable(ctx, id, true))
	}

	withinRadius, err := registry.FindNearby(ctx, centroid, 5, 0)
	require.NoError(t, err)
	assert.Len(t, withinRadius, 2)

	limited, err := registry.FindNearby(ctx, centroid, 5, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "d1", limited[0].DriverID)
}

func TestDriverRegistry_ReportLocationUpdatesPosition(t *testing.T) {
	registry := newTestRegistry(t)
	ctx := context.Background()

	require.NoError(t, registry.ReportLocation(ctx, "d1", dispatch.Coordinate{Latitude: 41.5, Longitude: -74.0}))
	require.NoError(t, registry.SetAvailable(ctx, "d1", true))

	centroid := dispatch.Coordinate{Latitude: 40.7128, Longitude: -74.0060}
	nearby, err := registry.FindNearby(ctx, centroid, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, nearby)

	require.NoError(t, registry.ReportLocation(ctx, "d1", dispatch.Coordinate{Latitude: 40.7130, Longitude: -74.0060}))
	nearby, err = registry.FindNearby(ctx, centroid, 5, 0)
	require.NoError(t, err)
	require.Len(t, nearby, 1)
	assert.InDelta(t, 40.7130, nearby[0].Location.Latitude, 0.001)
}
