package dispatch

// Cluster is an ephemeral grouping of orders by restaurant proximity.
// Clusters are produced per ingestion batch and consumed once by the
// assignment pipeline; they are never persisted.
type Cluster struct {
	Centroid Coordinate
	Orders   []*Order
}

// BuildClusters groups orders by restaurant proximity using a single greedy
// pass: each order joins the first cluster whose centroid is within
// radiusKm, otherwise it seeds a new cluster. Clusters are capped at
// maxOrders members so one batch never exceeds a driver's capacity.
func BuildClusters(orders []*Order, radiusKm float64, maxOrders int) []*Cluster {
	if maxOrders <= 0 {
		maxOrders = 1
	}
	var clusters []*Cluster
	for _, order := range orders {
		var target *Cluster
		for _, c := range clusters {
			if len(c.Orders) >= maxOrders {
				continue
			}
			if HaversineKm(c.Centroid, order.Restaurant) <= radiusKm {
				target = c
				break
			}
		}
		if target == nil {
			clusters = append(clusters, &Cluster{
				Centroid: order.Restaurant,
				Orders:   []*Order{order},
			})
			continue
		}
		target.Orders = append(target.Orders, order)
		target.Centroid = centroidOf(target.Orders)
	}
	return clusters
}

// OrderIDs returns the IDs of the cluster's member orders
func (c *Cluster) OrderIDs() []string {
	ids := make([]string, 0, len(c.Orders))
	for _, o := range c.Orders {
		ids = append(ids, o.OrderID)
	}
	return ids
}

func centroidOf(orders []*Order) Coordinate {
	var lat, lon float64
	for _, o := range orders {
		lat += o.Restaurant.Latitude
		lon += o.Restaurant.Longitude
	}
	n := float64(len(orders))
	return Coordinate{Latitude: lat / n, Longitude: lon / n}
}
