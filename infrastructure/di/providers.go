package di

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsapigw "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	awskinesis "github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"dispatch-backend/application/commands/bus"
	"dispatch-backend/application/commands/handlers"
	"dispatch-backend/application/ports"
	"dispatch-backend/application/services"
	"dispatch-backend/infrastructure/config"
	"dispatch-backend/infrastructure/messaging/deviceapi"
	"dispatch-backend/infrastructure/messaging/eventbridge"
	"dispatch-backend/infrastructure/messaging/kinesis"
	"dispatch-backend/infrastructure/persistence/dynamodb"
	"dispatch-backend/infrastructure/registry/redisgeo"
	"dispatch-backend/infrastructure/routing"
	"dispatch-backend/pkg/observability"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideKinesisClient creates a Kinesis client
func ProvideKinesisClient(awsCfg aws.Config) *awskinesis.Client {
	return awskinesis.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client, or nil when metrics
// are disabled
func ProvideCloudWatchClient(awsCfg aws.Config, cfg *config.Config) *awscloudwatch.Client {
	if !cfg.EnableMetrics {
		return nil
	}
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideDeviceAPIClient creates the API Gateway Management API client
// pointed at the driver device endpoint
func ProvideDeviceAPIClient(awsCfg aws.Config, cfg *config.Config) *awsapigw.Client {
	return awsapigw.NewFromConfig(awsCfg, func(o *awsapigw.Options) {
		if cfg.DeviceEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DeviceEndpoint)
		}
	})
}

// ProvideRedisClient creates the shared Redis client
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

// ProvideOrderRepository creates the order ledger
func ProvideOrderRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.OrderRepository {
	return dynamodb.NewOrderRepository(client, cfg.DispatchTable, cfg.StatusIndex, logger)
}

// ProvideDriverLockRepository creates the driver-lock ledger
func ProvideDriverLockRepository(client *awsdynamodb.Client, cfg *config.Config, logger *zap.Logger) ports.DriverLockRepository {
	return dynamodb.NewDriverLockRepository(client, cfg.DispatchTable, logger)
}

// ProvideEventBus creates the EventBridge event bus
func ProvideEventBus(client *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) ports.EventBus {
	return eventbridge.NewPublisher(client, cfg.EventBusName, logger)
}

// ProvideOrderStream creates the Kinesis order stream
func ProvideOrderStream(client *awskinesis.Client, cfg *config.Config, logger *zap.Logger) ports.OrderStream {
	return kinesis.NewStream(client, cfg.OrderStream, logger)
}

// ProvideDeviceChannel creates the driver device channel
func ProvideDeviceChannel(client *awsapigw.Client, logger *zap.Logger) ports.DeviceChannel {
	return deviceapi.NewChannel(client, logger)
}

// ProvideDriverRegistry creates the Redis driver registry
func ProvideDriverRegistry(client *redis.Client, logger *zap.Logger) ports.DriverRegistry {
	return redisgeo.NewDriverRegistry(client, logger)
}

// ProvideRouteComputer creates the route computer
func ProvideRouteComputer(cfg *config.Config) ports.RouteComputer {
	return routing.NewHaversineRouter(cfg.AvgSpeedKmh)
}

// ProvideMetrics creates the metrics instance
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	namespace := fmt.Sprintf("Dispatch/%s", cfg.Environment)
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the tracer
func ProvideTracer() *observability.Tracer {
	return observability.NewTracer("dispatch")
}

// ProvideLockDriverHandler creates the lock driver handler
func ProvideLockDriverHandler(lockRepo ports.DriverLockRepository, eventBus ports.EventBus, logger *zap.Logger) *handlers.LockDriverHandler {
	return handlers.NewLockDriverHandler(lockRepo, eventBus, logger)
}

// ProvideUpdateOrdersStatusHandler creates the assignment handler
func ProvideUpdateOrdersStatusHandler(orderRepo ports.OrderRepository, metrics *observability.Metrics, logger *zap.Logger) *handlers.UpdateOrdersStatusHandler {
	return handlers.NewUpdateOrdersStatusHandler(orderRepo, metrics, logger)
}

// ProvideSendToDriverHandler creates the dispatch notifier handler
func ProvideSendToDriverHandler(
	orderRepo ports.OrderRepository,
	router ports.RouteComputer,
	device ports.DeviceChannel,
	eventBus ports.EventBus,
	logger *zap.Logger,
) *handlers.SendToDriverHandler {
	return handlers.NewSendToDriverHandler(orderRepo, router, device, eventBus, logger)
}

// ProvideSendToKinesisHandler creates the resubmission handler
func ProvideSendToKinesisHandler(
	orderRepo ports.OrderRepository,
	stream ports.OrderStream,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *handlers.SendToKinesisHandler {
	return handlers.NewSendToKinesisHandler(orderRepo, stream, eventBus, metrics, logger)
}

// ProvideCommandBus creates the orchestrator command bus
func ProvideCommandBus(
	lockDriver *handlers.LockDriverHandler,
	updateOrders *handlers.UpdateOrdersStatusHandler,
	sendToDriver *handlers.SendToDriverHandler,
	sendToKinesis *handlers.SendToKinesisHandler,
	logger *zap.Logger,
) *bus.CommandBus {
	return bus.NewCommandBus(lockDriver, updateOrders, sendToDriver, sendToKinesis, logger)
}

// ProvideCleanupService creates the reaper
func ProvideCleanupService(
	orderRepo ports.OrderRepository,
	lockRepo ports.DriverLockRepository,
	stream ports.OrderStream,
	eventBus ports.EventBus,
	metrics *observability.Metrics,
	logger *zap.Logger,
	cfg *config.Config,
) *services.CleanupService {
	return services.NewCleanupService(
		orderRepo,
		lockRepo,
		stream,
		eventBus,
		metrics,
		logger,
		cfg.DriverAckTimeout,
		cfg.SweepWindow,
	)
}

// ProvideIngestService creates the ingestion pipeline
func ProvideIngestService(
	orderRepo ports.OrderRepository,
	lockRepo ports.DriverLockRepository,
	registry ports.DriverRegistry,
	lockDriver *handlers.LockDriverHandler,
	updateOrders *handlers.UpdateOrdersStatusHandler,
	sendToDriver *handlers.SendToDriverHandler,
	sendToKinesis *handlers.SendToKinesisHandler,
	logger *zap.Logger,
	cfg *config.Config,
) *services.IngestService {
	return services.NewIngestService(
		orderRepo,
		lockRepo,
		registry,
		lockDriver,
		updateOrders,
		sendToDriver,
		sendToKinesis,
		logger,
		cfg.ClusterRadiusKm,
		cfg.SearchRadiusKm,
		cfg.MaxOrdersPerDriver,
		cfg.MaxCandidates,
	)
}
