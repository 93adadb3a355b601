// Package main implements the cleanup Lambda, triggered on an EventBridge
// schedule. Each invocation runs one full reaper sweep.
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"dispatch-backend/application/services"
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

	container.Logger.Info("Cleanup cold start completed",
		zap.Duration("duration", time.Since(start)),
	)
}

// Handler runs one reaper sweep
func Handler(ctx context.Context, event events.CloudWatchEvent) (services.CleanupSummary, error) {
	container.Logger.Info("Cleanup sweep triggered",
		zap.String("scheduleID", event.ID),
		zap.Time("scheduledAt", event.Time),
	)
	return container.CleanupService.Run(ctx)
}

func main() {
	lambda.Start(Handler)
}
