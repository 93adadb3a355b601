package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
)

// OrderRepository implements the order ledger on DynamoDB. Every mutation
// after creation is an UpdateItem with a ConditionExpression on the status
// the caller expects; a failed condition comes back as a CONFLICT AppError.
type OrderRepository struct {
	client      *dynamodb.Client
	tableName   string
	statusIndex string
	logger      *zap.Logger
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(client *dynamodb.Client, tableName, statusIndex string, logger *zap.Logger) ports.OrderRepository {
	return &OrderRepository{
		client:      client,
		tableName:   tableName,
		statusIndex: statusIndex,
		logger:      logger,
	}
}

// orderItem is the DynamoDB item structure for an order
type orderItem struct {
	PK             string     `dynamodbav:"PK"`
	SK             string     `dynamodbav:"SK"`
	GSI1PK         string     `dynamodbav:"GSI1PK"` // STATUS#<status> for sweep queries
	GSI1SK         string     `dynamodbav:"GSI1SK"` // UpdatedAt, RFC3339
	EntityType     string     `dynamodbav:"EntityType"`
	OrderID        string     `dynamodbav:"OrderID"`
	Status         string     `dynamodbav:"Status"`
	DriverID       string     `dynamodbav:"DriverID,omitempty"`
	DriverIdentity string     `dynamodbav:"DriverIdentity,omitempty"`
	AssignedAt     string     `dynamodbav:"AssignedAt,omitempty"`
	UpdatedAt      string     `dynamodbav:"UpdatedAt"`
	Routing        *routeItem `dynamodbav:"Routing,omitempty"`
	RestaurantLat  float64    `dynamodbav:"RestaurantLat"`
	RestaurantLon  float64    `dynamodbav:"RestaurantLon"`
	CustomerLat    float64    `dynamodbav:"CustomerLat"`
	CustomerLon    float64    `dynamodbav:"CustomerLon"`
}

// routeItem is the persisted routing attribute
type routeItem struct {
	DriverToRestaurantKm   float64 `dynamodbav:"DriverToRestaurantKm"`
	RestaurantToCustomerKm float64 `dynamodbav:"RestaurantToCustomerKm"`
	TotalKm                float64 `dynamodbav:"TotalKm"`
	EstimatedSeconds       int64   `dynamodbav:"EstimatedSeconds"`
	ComputedAt             string  `dynamodbav:"ComputedAt"`
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ORDER#%s", orderID)},
		"SK": &types.AttributeValueMemberS{Value: "ORDER"},
	}
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*dispatch.Order, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            orderKey(orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get order", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("order %s", orderID))
	}

	var item orderItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.NewDatabaseError("unmarshal order", err)
	}
	return item.toOrder()
}

// Save persists a new order unconditionally
func (r *OrderRepository) Save(ctx context.Context, order *dispatch.Order) error {
	av, err := attributevalue.MarshalMap(toOrderItem(order))
	if err != nil {
		return appErrors.NewDatabaseError("marshal order", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	})
	if err != nil {
		return appErrors.NewDatabaseError("put order", err)
	}

	r.logger.Info("Order saved",
		zap.String("orderID", order.OrderID),
		zap.String("status", string(order.Status)),
	)
	return nil
}

// AssignToDriver flips the order to ASSIGNED for the driver, conditional on
// the current status being UNASSIGNED. Exactly one of any set of racing
// assignment attempts passes the condition.
func (r *OrderRepository) AssignToDriver(ctx context.Context, orderID, driverID, driverIdentity string, assignedAt time.Time) error {
	update := expression.
		Set(expression.Name("Status"), expression.Value(string(dispatch.StatusAssigned))).
		Set(expression.Name("GSI1PK"), expression.Value(statusPartition(dispatch.StatusAssigned))).
		Set(expression.Name("DriverID"), expression.Value(driverID)).
		Set(expression.Name("DriverIdentity"), expression.Value(driverIdentity)).
		Set(expression.Name("AssignedAt"), expression.Value(assignedAt.UTC().Format(time.RFC3339))).
		Set(expression.Name("UpdatedAt"), expression.Value(assignedAt.UTC().Format(time.RFC3339))).
		Set(expression.Name("GSI1SK"), expression.Value(assignedAt.UTC().Format(time.RFC3339)))
	condition := expression.Name("Status").Equal(expression.Value(string(dispatch.StatusUnassigned)))

	return r.conditionalUpdate(ctx, orderID, update, condition, "assign order")
}

// AttachRouting stores computed routing, conditional on the order still
// being ASSIGNED to the given driver
func (r *OrderRepository) AttachRouting(ctx context.Context, orderID, driverID string, routing *dispatch.Route) error {
	now := time.Now().UTC().Format(time.RFC3339)
	update := expression.
		Set(expression.Name("Routing"), expression.Value(toRouteItem(routing))).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("GSI1SK"), expression.Value(now))
	condition := expression.Name("Status").Equal(expression.Value(string(dispatch.StatusAssigned))).
		And(expression.Name("DriverID").Equal(expression.Value(driverID)))

	return r.conditionalUpdate(ctx, orderID, update, condition, "attach routing")
}

// ReleaseOrder resets the order to UNASSIGNED and clears the driver fields,
// conditional on the current status matching expectedStatus
func (r *OrderRepository) ReleaseOrder(ctx context.Context, orderID string, expectedStatus dispatch.OrderStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)
	update := expression.
		Set(expression.Name("Status"), expression.Value(string(dispatch.StatusUnassigned))).
		Set(expression.Name("GSI1PK"), expression.Value(statusPartition(dispatch.StatusUnassigned))).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("GSI1SK"), expression.Value(now)).
		Remove(expression.Name("DriverID")).
		Remove(expression.Name("DriverIdentity")).
		Remove(expression.Name("AssignedAt")).
		Remove(expression.Name("Routing"))
	condition := expression.Name("Status").Equal(expression.Value(string(expectedStatus)))

	return r.conditionalUpdate(ctx, orderID, update, condition, "release order")
}

// QueryByStatus returns orders in the given status whose UpdatedAt falls in
// the window ending at now, via the status GSI
func (r *OrderRepository) QueryByStatus(ctx context.Context, status dispatch.OrderStatus, window time.Duration, now time.Time) ([]*dispatch.Order, error) {
	from := now.Add(-window).UTC().Format(time.RFC3339)
	to := now.UTC().Format(time.RFC3339)

	keyExpr := expression.Key("GSI1PK").Equal(expression.Value(statusPartition(status))).
		And(expression.Key("GSI1SK").Between(expression.Value(from), expression.Value(to)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, appErrors.NewDatabaseError("build status query", err)
	}

	var orders []*dispatch.Order
	var lastKey map[string]types.AttributeValue
	for {
		out, err := r.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 aws.String(r.tableName),
			IndexName:                 aws.String(r.statusIndex),
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, appErrors.NewDatabaseError("query orders by status", err)
		}

		for _, raw := range out.Items {
			var item orderItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				r.logger.Warn("Failed to parse order item", zap.Error(err))
				continue
			}
			order, err := item.toOrder()
			if err != nil {
				r.logger.Warn("Failed to convert order item", zap.Error(err))
				continue
			}
			orders = append(orders, order)
		}

		lastKey = out.LastEvaluatedKey
		if lastKey == nil {
			break
		}
	}
	return orders, nil
}

// conditionalUpdate runs an UpdateItem and translates a failed condition
// into a CONFLICT AppError
func (r *OrderRepository) conditionalUpdate(ctx context.Context, orderID string, update expression.UpdateBuilder, condition expression.ConditionBuilder, operation string) error {
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return appErrors.NewDatabaseError(operation, err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       orderKey(orderID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			return appErrors.NewConflictError(fmt.Sprintf("%s: condition failed for order %s", operation, orderID))
		}
		return appErrors.NewDatabaseError(operation, err)
	}
	return nil
}

func statusPartition(status dispatch.OrderStatus) string {
	return fmt.Sprintf("STATUS#%s", status)
}

func toOrderItem(order *dispatch.Order) orderItem {
	updatedAt := order.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	item := orderItem{
		PK:             fmt.Sprintf("ORDER#%s", order.OrderID),
		SK:             "ORDER",
		GSI1PK:         statusPartition(order.Status),
		GSI1SK:         updatedAt.UTC().Format(time.RFC3339),
		EntityType:     "ORDER",
		OrderID:        order.OrderID,
		Status:         string(order.Status),
		DriverID:       order.DriverID,
		DriverIdentity: order.DriverIdentity,
		UpdatedAt:      updatedAt.UTC().Format(time.RFC3339),
		Routing:        toRouteItem(order.Routing),
		RestaurantLat:  order.Restaurant.Latitude,
		RestaurantLon:  order.Restaurant.Longitude,
		CustomerLat:    order.Customer.Latitude,
		CustomerLon:    order.Customer.Longitude,
	}
	if !order.AssignedAt.IsZero() {
		item.AssignedAt = order.AssignedAt.UTC().Format(time.RFC3339)
	}
	return item
}

func toRouteItem(route *dispatch.Route) *routeItem {
	if route == nil {
		return nil
	}
	return &routeItem{
		DriverToRestaurantKm:   route.DriverToRestaurantKm,
		RestaurantToCustomerKm: route.RestaurantToCustomerKm,
		TotalKm:                route.TotalKm,
		EstimatedSeconds:       int64(route.EstimatedDuration.Seconds()),
		ComputedAt:             route.ComputedAt.UTC().Format(time.RFC3339),
	}
}

func (i orderItem) toOrder() (*dispatch.Order, error) {
	order := &dispatch.Order{
		OrderID:        i.OrderID,
		Status:         dispatch.OrderStatus(i.Status),
		DriverID:       i.DriverID,
		DriverIdentity: i.DriverIdentity,
		Restaurant:     dispatch.Coordinate{Latitude: i.RestaurantLat, Longitude: i.RestaurantLon},
		Customer:       dispatch.Coordinate{Latitude: i.CustomerLat, Longitude: i.CustomerLon},
	}

	if i.AssignedAt != "" {
		t, err := time.Parse(time.RFC3339, i.AssignedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid AssignedAt on order %s: %w", i.OrderID, err)
		}
		order.AssignedAt = t
	}
	if i.UpdatedAt != "" {
		t, err := time.Parse(time.RFC3339, i.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid UpdatedAt on order %s: %w", i.OrderID, err)
		}
		order.UpdatedAt = t
	}
	if i.Routing != nil {
		computedAt, err := time.Parse(time.RFC3339, i.Routing.ComputedAt)
		if err != nil {
			return nil, fmt.Errorf("invalid routing timestamp on order %s: %w", i.OrderID, err)
		}
		order.Routing = &dispatch.Route{
			DriverToRestaurantKm:   i.Routing.DriverToRestaurantKm,
			RestaurantToCustomerKm: i.Routing.RestaurantToCustomerKm,
			TotalKm:                i.Routing.TotalKm,
			EstimatedDuration:      time.Duration(i.Routing.EstimatedSeconds) * time.Second,
			ComputedAt:             computedAt,
		}
	}
	return order, nil
}
