// Package main runs the cleanup reaper as a standalone process for
// non-Lambda deployments, on a cron schedule.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"dispatch-backend/infrastructure/config"
	"dispatch-backend/infrastructure/di"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger
	defer logger.Sync()

	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.CleanupSchedule, func() {
		if _, err := container.CleanupService.Run(context.Background()); err != nil {
			logger.Error("Cleanup sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("Invalid cleanup schedule",
			zap.String("schedule", cfg.CleanupSchedule),
			zap.Error(err),
		)
	}

	scheduler.Start()
	logger.Info("Cleanup worker started",
		zap.String("schedule", cfg.CleanupSchedule),
	)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Cleanup worker shutting down")
	<-scheduler.Stop().Done()
}
