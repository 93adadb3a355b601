// Package main implements the orchestrator Lambda: the four dispatch
// commands (lockDriver, updateOrdersStatus, sendToDriver, sendToKinesis)
// invoked directly by the assignment state machine.
package main

import (
	"context"
	"log"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"dispatch-backend/application/commands/bus"
	"dispatch-backend/infrastructure/config"
	"dispatch-backend/infrastructure/di"
)

// container holds the dependency injection container, built once per cold
// start and reused across invocations
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

	container.Logger.Info("Orchestrator cold start completed",
		zap.Duration("duration", time.Since(start)),
	)
}

// Handler dispatches one orchestrator command and returns its structured
// result. Handler results carry conflict outcomes as data; an error here
// means the input itself was invalid.
func Handler(ctx context.Context, req bus.Request) (interface{}, error) {
	start := time.Now()

	var result interface{}
	err := container.Tracer.TraceFunction(ctx, string(req.Command), func(ctx context.Context) error {
		var dispatchErr error
		result, dispatchErr = container.CommandBus.Dispatch(ctx, req)
		return dispatchErr
	})
	container.Metrics.RecordCommandExecution(ctx, string(req.Command), time.Since(start), err)

	if err != nil {
		container.Logger.Error("Command failed",
			zap.String("command", string(req.Command)),
			zap.Error(err),
		)
		return nil, err
	}
	return result, nil
}

func main() {
	lambda.Start(Handler)
}
