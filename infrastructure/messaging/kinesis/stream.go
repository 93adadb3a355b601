package kinesis

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"dispatch-backend/application/ports"
	"dispatch-backend/domain/dispatch"
	appErrors "dispatch-backend/pkg/errors"
)

// Stream implements the OrderStream interface on a Kinesis data stream.
// Orders are partitioned by order ID so replays of the same order stay in
// one shard.
type Stream struct {
	client     *kinesis.Client
	streamName string
	logger     *zap.Logger
}

// NewStream creates a new Kinesis order stream
func NewStream(client *kinesis.Client, streamName string, logger *zap.Logger) ports.OrderStream {
	return &Stream{
		client:     client,
		streamName: streamName,
		logger:     logger,
	}
}

// Resubmit puts the order back on the ingestion stream
func (s *Stream) Resubmit(ctx context.Context, order *dispatch.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return appErrors.NewInternalError("failed to marshal order for stream").WithCause(err)
	}

	_, err = s.client.PutRecord(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(s.streamName),
		PartitionKey: aws.String(order.OrderID),
		Data:         data,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			s.logger.Error("Kinesis rejected record",
				zap.String("orderID", order.OrderID),
				zap.String("errorCode", apiErr.ErrorCode()),
			)
		}
		return appErrors.NewExternalError("kinesis", err)
	}

	s.logger.Info("Order resubmitted to stream",
		zap.String("orderID", order.OrderID),
		zap.String("stream", s.streamName),
	)
	return nil
}
