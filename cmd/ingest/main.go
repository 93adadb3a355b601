// Package main implements the ingestion Lambda, consuming order batches
// from the Kinesis stream and driving the cluster/lock/assign/notify
// pipeline.
package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"dispatch-backend/domain/dispatch"
	"dispatch-backend/infrastructure/config"
	"dispatch-backend/infrastructure/di"
)

var container *di.Container

func init() {
	start := time.Now()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err = di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}

	container.Logger.Info("Ingest cold start completed",
		zap.Duration("duration", time.Since(start)),
	)
}

// Handler decodes one Kinesis batch and hands it to the pipeline.
// Undecodable records are logged and dropped rather than poisoning the
// shard with endless retries.
func Handler(ctx context.Context, event events.KinesisEvent) error {
	orders := make([]*dispatch.Order, 0, len(event.Records))
	for _, record := range event.Records {
		var order dispatch.Order
		if err := json.Unmarshal(record.Kinesis.Data, &order); err != nil {
			container.Logger.Error("Dropping undecodable stream record",
				zap.String("sequenceNumber", record.Kinesis.SequenceNumber),
				zap.Error(err),
			)
			continue
		}
		if order.OrderID == "" {
			container.Logger.Error("Dropping stream record without order ID",
				zap.String("sequenceNumber", record.Kinesis.SequenceNumber),
			)
			continue
		}
		orders = append(orders, &order)
	}

	container.Logger.Info("Ingestion batch received",
		zap.Int("recordCount", len(event.Records)),
		zap.Int("orderCount", len(orders)),
	)
	return container.IngestService.ProcessBatch(ctx, orders)
}

func main() {
	lambda.Start(Handler)
}
