package dynamodb

import (
	"context"
	"errors"
	"fmt"

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

// DriverLockRepository implements the driver-lock ledger on DynamoDB
// conditional writes. Exactly one of any number of racing lock attempts for
// the same driver passes its condition; the rest get CONFLICT.
type DriverLockRepository struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// NewDriverLockRepository creates a new driver lock repository
func NewDriverLockRepository(client *dynamodb.Client, tableName string, logger *zap.Logger) ports.DriverLockRepository {
	return &DriverLockRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// lockItem is the DynamoDB item structure for a driver lock
type lockItem struct {
	PK             string   `dynamodbav:"PK"` // DRIVERLOCK#<driverId>
	SK             string   `dynamodbav:"SK"` // LOCK
	EntityType     string   `dynamodbav:"EntityType"`
	DriverID       string   `dynamodbav:"DriverID"`
	Locked         bool     `dynamodbav:"Locked"`
	Orders         []string `dynamodbav:"Orders"`
	DriverIdentity string   `dynamodbav:"DriverIdentity,omitempty"`
}

func lockKey(driverID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: fmt.Sprintf("DRIVERLOCK#%s", driverID)},
		"SK": &types.AttributeValueMemberS{Value: "LOCK"},
	}
}

// GetByDriverID retrieves the lock record for a driver
func (r *DriverLockRepository) GetByDriverID(ctx context.Context, driverID string) (*dispatch.DriverLock, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            lockKey(driverID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, appErrors.NewDatabaseError("get driver lock", err)
	}
	if out.Item == nil {
		return nil, appErrors.NewNotFoundError(fmt.Sprintf("driver lock %s", driverID))
	}

	var item lockItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, appErrors.NewDatabaseError("unmarshal driver lock", err)
	}
	return &dispatch.DriverLock{
		DriverID:       item.DriverID,
		Locked:         item.Locked,
		Orders:         item.Orders,
		DriverIdentity: item.DriverIdentity,
	}, nil
}

// Create writes a brand-new locked record, conditional on no record
// existing for this driver
func (r *DriverLockRepository) Create(ctx context.Context, lock *dispatch.DriverLock) error {
	av, err := attributevalue.MarshalMap(toLockItem(lock))
	if err != nil {
		return appErrors.NewDatabaseError("marshal driver lock", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Warn("Driver lock already exists",
				zap.String("driverID", lock.DriverID),
			)
			return appErrors.NewConflictError(fmt.Sprintf("driver lock %s already exists", lock.DriverID))
		}
		return appErrors.NewDatabaseError("create driver lock", err)
	}
	return nil
}

// Acquire flips an existing record to locked with a fresh order set,
// conditional on it currently being unlocked
func (r *DriverLockRepository) Acquire(ctx context.Context, lock *dispatch.DriverLock) error {
	condition := expression.Name("Locked").Equal(expression.Value(false))
	return r.writeLock(ctx, lock, condition, "acquire driver lock")
}

// Update replaces the order set and locked flag, conditional on the record
// currently being locked. Used for claim-set shrinking and final unlock.
func (r *DriverLockRepository) Update(ctx context.Context, lock *dispatch.DriverLock) error {
	condition := expression.Name("Locked").Equal(expression.Value(true))
	return r.writeLock(ctx, lock, condition, "update driver lock")
}

func (r *DriverLockRepository) writeLock(ctx context.Context, lock *dispatch.DriverLock, condition expression.ConditionBuilder, operation string) error {
	update := expression.
		Set(expression.Name("Locked"), expression.Value(lock.Locked)).
		Set(expression.Name("Orders"), expression.Value(lock.Orders)).
		Set(expression.Name("DriverIdentity"), expression.Value(lock.DriverIdentity))
	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return appErrors.NewDatabaseError(operation, err)
	}

	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       lockKey(lock.DriverID),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var conditionalCheckFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionalCheckFailed) {
			r.logger.Warn("Driver lock condition failed",
				zap.String("driverID", lock.DriverID),
				zap.String("operation", operation),
			)
			return appErrors.NewConflictError(fmt.Sprintf("%s: condition failed for driver %s", operation, lock.DriverID))
		}
		return appErrors.NewDatabaseError(operation, err)
	}
	return nil
}

func toLockItem(lock *dispatch.DriverLock) lockItem {
	return lockItem{
		PK:             fmt.Sprintf("DRIVERLOCK#%s", lock.DriverID),
		SK:             "LOCK",
		EntityType:     "DRIVERLOCK",
		DriverID:       lock.DriverID,
		Locked:         lock.Locked,
		Orders:         lock.Orders,
		DriverIdentity: lock.DriverIdentity,
	}
}
