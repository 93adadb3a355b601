package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Environment string

	// AWS configuration
	AWSRegion      string
	DispatchTable  string
	StatusIndex    string // GSI for status/time sweep queries
	EventBusName   string
	OrderStream    string
	DeviceEndpoint string // API Gateway Management API endpoint for driver devices

	// Redis (driver registry)
	RedisAddr     string
	RedisPassword string

	// Dispatch tuning
	DriverAckTimeout   time.Duration
	SweepWindow        time.Duration
	ClusterRadiusKm    float64
	SearchRadiusKm     float64
	MaxOrdersPerDriver int
	MaxCandidates      int
	AvgSpeedKmh        float64

	// Worker mode
	CleanupSchedule string // cron spec for the standalone reaper

	// Lambda configuration
	IsLambda bool

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableTracing bool
}

// LoadConfig loads configuration from environment variables. Outside Lambda
// a .env file is honored for local development.
func LoadConfig() (*Config, error) {
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") == "" {
		// Missing .env is fine; the environment may be fully set already.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		AWSRegion:   getEnv("AWS_REGION", "us-west-2"),

		DispatchTable:  getEnv("DISPATCH_TABLE", "dispatch"),
		StatusIndex:    getEnv("STATUS_INDEX", "StatusIndex"),
		EventBusName:   getEnv("EVENT_BUS_NAME", "dispatch-events"),
		OrderStream:    getEnv("ORDER_STREAM", "dispatch-orders"),
		DeviceEndpoint: getEnv("DEVICE_ENDPOINT", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		DriverAckTimeout:   time.Duration(getEnvInt("DRIVER_ACK_TIMEOUT_SECONDS", 60)) * time.Second,
		SweepWindow:        time.Duration(getEnvInt("SWEEP_WINDOW_SECONDS", 3600)) * time.Second,
		ClusterRadiusKm:    getEnvFloat("CLUSTER_RADIUS_KM", 2.0),
		SearchRadiusKm:     getEnvFloat("SEARCH_RADIUS_KM", 10.0),
		MaxOrdersPerDriver: getEnvInt("MAX_ORDERS_PER_DRIVER", 3),
		MaxCandidates:      getEnvInt("MAX_DRIVER_CANDIDATES", 5),
		AvgSpeedKmh:        getEnvFloat("AVG_SPEED_KMH", 30.0),

		CleanupSchedule: getEnv("CLEANUP_SCHEDULE", "@every 1m"),

		IsLambda: os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "",

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	if c.DriverAckTimeout <= 0 {
		return fmt.Errorf("DRIVER_ACK_TIMEOUT_SECONDS must be positive")
	}
	if c.SweepWindow < c.DriverAckTimeout {
		return fmt.Errorf("SWEEP_WINDOW_SECONDS must cover DRIVER_ACK_TIMEOUT_SECONDS")
	}
	if c.Environment == "production" {
		if c.DispatchTable == "" {
			return fmt.Errorf("DISPATCH_TABLE is required")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
		if c.OrderStream == "" {
			return fmt.Errorf("ORDER_STREAM is required")
		}
		if c.DeviceEndpoint == "" {
			return fmt.Errorf("DEVICE_ENDPOINT is required in production")
		}
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat gets a float environment variable with a default value
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}
