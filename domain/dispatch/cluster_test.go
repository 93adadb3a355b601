package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderAt(id string, lat, lon float64) *Order {
	return NewOrder(id, Coordinate{Latitude: lat, Longitude: lon}, Coordinate{Latitude: lat + 0.02, Longitude: lon})
}

func TestBuildClusters_GroupsNearbyRestaurants(t *testing.T) {
	orders := []*Order{
		orderAt("o1", 40.7100, -74.0000),
		orderAt("o2", 40.7105, -74.0005), // ~70m from o1
		orderAt("o3", 40.9000, -74.0000), // ~21km away
	}

	clusters := BuildClusters(orders, 2.0, 10)

	require.Len(t, clusters, 2)
	assert.ElementsMatch(t, []string{"o1", "o2"}, clusters[0].OrderIDs())
	assert.Equal(t, []string{"o3"}, clusters[1].OrderIDs())
}

func TestBuildClusters_RespectsMaxOrders(t *testing.T) {
	orders := []*Order{
		orderAt("o1", 40.71, -74.00),
		orderAt("o2", 40.71, -74.00),
		orderAt("o3", 40.71, -74.00),
	}

	clusters := BuildClusters(orders, 2.0, 2)

	require.Len(t, clusters, 2)
	assert.Len(t, clusters[0].Orders, 2)
	assert.Len(t, clusters[1].Orders, 1)
}

func TestBuildClusters_CentroidMovesWithMembers(t *testing.T) {
	orders := []*Order{
		orderAt("o1", 40.7100, -74.0000),
		orderAt("o2", 40.7120, -74.0000),
	}

	clusters := BuildClusters(orders, 2.0, 10)

	require.Len(t, clusters, 1)
	assert.InDelta(t, 40.7110, clusters[0].Centroid.Latitude, 1e-9)
}

func TestBuildClusters_EmptyInput(t *testing.T) {
	assert.Empty(t, BuildClusters(nil, 2.0, 10))
}

func TestBuildClusters_ZeroCapDefaultsToSingles(t *testing.T) {
	orders := []*Order{
		orderAt("o1", 40.71, -74.00),
		orderAt("o2", 40.71, -74.00),
	}

	clusters := BuildClusters(orders, 2.0, 0)

	assert.Len(t, clusters, 2)
}
