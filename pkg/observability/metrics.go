package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics emits dispatch metrics to CloudWatch. A nil client disables
// emission, which is how tests and local runs opt out.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client *cloudwatch.Client, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordAssignmentConflict counts a lost assignment race
func (m *Metrics) RecordAssignmentConflict(ctx context.Context, driverID string) {
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("AssignmentConflicts"),
		Dimensions: []types.Dimension{{
			Name:  aws.String("DriverID"),
			Value: aws.String(driverID),
		}},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	}})
}

// RecordResubmission counts an order offered back to the stream
func (m *Metrics) RecordResubmission(ctx context.Context, reason string) {
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("OrdersResubmitted"),
		Dimensions: []types.Dimension{{
			Name:  aws.String("Reason"),
			Value: aws.String(reason),
		}},
		Value:     aws.Float64(1),
		Unit:      types.StandardUnitCount,
		Timestamp: aws.Time(time.Now()),
	}})
}

// RecordCleanup reports what one reaper invocation released and unlocked
func (m *Metrics) RecordCleanup(ctx context.Context, ordersReleased, driversUnlocked int) {
	now := time.Now()
	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("ReaperOrdersReleased"),
			Value:      aws.Float64(float64(ordersReleased)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
		{
			MetricName: aws.String("ReaperLocksReleased"),
			Value:      aws.Float64(float64(driversUnlocked)),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(now),
		},
	})
}

// RecordCommandExecution records latency and outcome for an orchestrator
// command
func (m *Metrics) RecordCommandExecution(ctx context.Context, commandName string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.put(ctx, []types.MetricDatum{{
		MetricName: aws.String("CommandExecution"),
		Dimensions: []types.Dimension{
			{
				Name:  aws.String("CommandName"),
				Value: aws.String(commandName),
			},
			{
				Name:  aws.String("Status"),
				Value: aws.String(status),
			},
		},
		Value:     aws.Float64(float64(duration.Milliseconds())),
		Unit:      types.StandardUnitMilliseconds,
		Timestamp: aws.Time(time.Now()),
	}})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	if m.client == nil {
		return
	}
	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	})
	if err != nil && m.logger != nil {
		// Metric loss is never worth failing the operation.
		m.logger.Warn("Failed to send metrics", zap.Error(err))
	}
}
