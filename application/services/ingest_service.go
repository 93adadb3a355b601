package services

import (
	"context"

	"go.uber.org/zap"

	"dispatch-backend/application/commands"
	"dispatch-backend/application/commands/handlers"
	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
)

// IngestService is the front half of the dispatch loop: it takes a batch of
// orders off the ingestion stream, clusters them by restaurant proximity,
// finds available drivers near each cluster, and drives the
// lock -> assign -> notify sequence per candidate. A batch whose assignment
// conflicts is unwound: our successful claims are released and the batch is
// offered back to the stream.
type IngestService struct {
	orderRepo     ports.OrderRepository
	lockRepo      ports.DriverLockRepository
	registry      ports.DriverRegistry
	lockDriver    *handlers.LockDriverHandler
	updateOrders  *handlers.UpdateOrdersStatusHandler
	sendToDriver  *handlers.SendToDriverHandler
	sendToKinesis *handlers.SendToKinesisHandler
	logger        *zap.Logger

	clusterRadiusKm    float64
	searchRadiusKm     float64
	maxOrdersPerDriver int
	maxCandidates      int
}

// NewIngestService creates a new ingest service
func NewIngestService(
	orderRepo ports.OrderRepository,
	lockRepo ports.DriverLockRepository,
	registry ports.DriverRegistry,
	lockDriver *handlers.LockDriverHandler,
	updateOrders *handlers.UpdateOrdersStatusHandler,
	sendToDriver *handlers.SendToDriverHandler,
	sendToKinesis *handlers.SendToKinesisHandler,
	logger *zap.Logger,
	clusterRadiusKm, searchRadiusKm float64,
	maxOrdersPerDriver, maxCandidates int,
) *IngestService {
	return &IngestService{
		orderRepo:          orderRepo,
		lockRepo:           lockRepo,
		registry:           registry,
		lockDriver:         lockDriver,
		updateOrders:       updateOrders,
		sendToDriver:       sendToDriver,
		sendToKinesis:      sendToKinesis,
		logger:             logger,
		clusterRadiusKm:    clusterRadiusKm,
		searchRadiusKm:     searchRadiusKm,
		maxOrdersPerDriver: maxOrdersPerDriver,
		maxCandidates:      maxCandidates,
	}
}

// ProcessBatch handles one ingestion batch end to end
func (s *IngestService) ProcessBatch(ctx context.Context, orders []*dispatch.Order) error {
	pending, err := s.register(ctx, orders)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	clusters := dispatch.BuildClusters(pending, s.clusterRadiusKm, s.maxOrdersPerDriver)
	s.logger.Info("Ingestion batch clustered",
		zap.Int("orderCount", len(pending)),
		zap.Int("clusterCount", len(clusters)),
	)

	for _, cluster := range clusters {
		s.dispatchCluster(ctx, cluster)
	}
	return nil
}

// register ensures every incoming order exists in the ledger and filters the
// batch down to orders still worth dispatching. First-time orders are
// created UNASSIGNED; resubmitted orders already exist and keep their
// ledger state.
func (s *IngestService) register(ctx context.Context, orders []*dispatch.Order) ([]*dispatch.Order, error) {
	var pending []*dispatch.Order
	for _, order := range orders {
		current, err := s.orderRepo.GetByID(ctx, order.OrderID)
		if appErrors.IsNotFound(err) {
			fresh := dispatch.NewOrder(order.OrderID, order.Restaurant, order.Customer)
			if err := s.orderRepo.Save(ctx, fresh); err != nil {
				return nil, appErrors.Wrap(err, "failed to create order")
			}
			pending = append(pending, fresh)
			continue
		}
		if err != nil {
			return nil, appErrors.Wrap(err, "failed to read order")
		}
		if current.Status == dispatch.StatusUnassigned {
			pending = append(pending, current)
		}
	}
	return pending, nil
}

// dispatchCluster tries the nearest available drivers in order until one
// takes the whole cluster or the candidates run out. Leftover clusters stay
// UNASSIGNED and surface again on the next batch or reaper pass.
func (s *IngestService) dispatchCluster(ctx context.Context, cluster *dispatch.Cluster) {
	candidates, err := s.registry.FindNearby(ctx, cluster.Centroid, s.searchRadiusKm, s.maxCandidates)
	if err != nil {
		s.logger.Error("Driver search failed", zap.Error(err))
		return
	}
	if len(candidates) == 0 {
		s.logger.Info("No drivers available near cluster",
			zap.Float64("lat", cluster.Centroid.Latitude),
			zap.Float64("lon", cluster.Centroid.Longitude),
		)
		return
	}

	refs := make([]commands.OrderRef, 0, len(cluster.Orders))
	for _, o := range cluster.Orders {
		refs = append(refs, commands.OrderRef{
			OrderID:    o.OrderID,
			Restaurant: o.Restaurant,
			Customer:   o.Customer,
		})
	}

	for _, candidate := range candidates {
		if s.tryDriver(ctx, candidate, refs) {
			return
		}
	}
}

// tryDriver runs lock -> assign -> notify for one candidate driver and
// reports whether the cluster was fully placed
func (s *IngestService) tryDriver(ctx context.Context, candidate ports.DriverPosition, refs []commands.OrderRef) bool {
	lockResult, err := s.lockDriver.Handle(ctx, commands.LockDriverCommand{
		DriverID:       candidate.DriverID,
		DriverIdentity: candidate.DriverID,
		Orders:         refs,
	})
	if err != nil {
		s.logger.Error("Lock attempt failed",
			zap.String("driverID", candidate.DriverID),
			zap.Error(err),
		)
		return false
	}
	if !lockResult.Locked {
		return false
	}

	assignResult, err := s.updateOrders.Handle(ctx, commands.UpdateOrdersStatusCommand{
		DriverID:       candidate.DriverID,
		DriverIdentity: candidate.DriverID,
		Orders:         refs,
	})
	if err != nil {
		s.logger.Error("Assignment attempt failed",
			zap.String("driverID", candidate.DriverID),
			zap.Error(err),
		)
		s.unwind(ctx, candidate.DriverID, refs, assignResult)
		return false
	}

	if !assignResult.AllAssigned() {
		s.unwind(ctx, candidate.DriverID, refs, assignResult)
		return false
	}

	if _, err := s.sendToDriver.Handle(ctx, commands.SendToDriverCommand{
		DriverID:       candidate.DriverID,
		DriverIdentity: candidate.DriverID,
		DriverLocation: candidate.Location,
		Orders:         refs,
	}); err != nil {
		s.logger.Error("Driver notification failed",
			zap.String("driverID", candidate.DriverID),
			zap.Error(err),
		)
	}

	if err := s.registry.SetAvailable(ctx, candidate.DriverID, false); err != nil {
		s.logger.Warn("Failed to mark driver busy",
			zap.String("driverID", candidate.DriverID),
			zap.Error(err),
		)
	}
	return true
}

// unwind rolls back a failed batch: release the orders this attempt managed
// to claim, drop the driver lock, and offer the batch back to the stream
// with the released IDs so only they are re-ingested.
func (s *IngestService) unwind(ctx context.Context, driverID string, refs []commands.OrderRef, assignResult commands.UpdateOrdersResult) {
	var released []string
	for _, entry := range assignResult.StatusList {
		if entry.Status != commands.AssignmentAssigned {
			continue
		}
		if err := s.orderRepo.ReleaseOrder(ctx, entry.OrderID, dispatch.StatusAssigned); err != nil {
			if !appErrors.IsConflict(err) {
				s.logger.Error("Failed to release claimed order",
					zap.String("orderID", entry.OrderID),
					zap.Error(err),
				)
			}
			continue
		}
		released = append(released, entry.OrderID)
	}

	s.unlockDriver(ctx, driverID)

	if _, err := s.sendToKinesis.Handle(ctx, commands.SendToKinesisCommand{
		Orders:         refs,
		Reason:         commands.ResubmitLockReleased,
		OrdersReleased: released,
	}); err != nil {
		s.logger.Error("Failed to resubmit unwound batch",
			zap.String("driverID", driverID),
			zap.Error(err),
		)
	}
}

// unlockDriver drops the whole lock claim after a failed batch
func (s *IngestService) unlockDriver(ctx context.Context, driverID string) {
	lock, err := s.lockRepo.GetByDriverID(ctx, driverID)
	if err != nil {
		if !appErrors.IsNotFound(err) {
			s.logger.Error("Failed to read lock during unwind",
				zap.String("driverID", driverID),
				zap.Error(err),
			)
		}
		return
	}
	if !lock.Locked {
		return
	}
	lock.Orders = nil
	lock.Locked = false
	if err := s.lockRepo.Update(ctx, lock); err != nil && !appErrors.IsConflict(err) {
		s.logger.Error("Failed to unlock driver during unwind",
			zap.String("driverID", driverID),
			zap.Error(err),
		)
	}
}
