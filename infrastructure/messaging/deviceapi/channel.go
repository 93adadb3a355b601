package deviceapi

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"dispatch-backend/application/ports"
	appErrors "dispatch-backend/pkg/errors"
)

// Channel implements the DeviceChannel interface over the API Gateway
// Management API: the driver app holds a WebSocket connection and the
// channel ID is its connection ID. Pushes go through a circuit breaker so a
// flapping gateway fails fast instead of stalling a whole dispatch batch.
type Channel struct {
	client  *apigatewaymanagementapi.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewChannel creates a new device channel
func NewChannel(client *apigatewaymanagementapi.Client, logger *zap.Logger) ports.DeviceChannel {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "device-channel",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Device channel breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Channel{
		client:  client,
		breaker: breaker,
		logger:  logger,
	}
}

// PublishToDevice pushes a message to the driver's device channel. Delivery
// is fire-and-forget for the caller: an error means the push did not leave,
// not that the driver did not see it.
func (c *Channel) PublishToDevice(ctx context.Context, channelID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return appErrors.NewInternalError("failed to marshal device message").WithCause(err)
	}

	_, err = c.breaker.Execute(func() (interface{}, error) {
		return c.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(channelID),
			Data:         data,
		})
	})
	if err != nil {
		return appErrors.NewExternalError("device channel", err)
	}

	c.logger.Debug("Message pushed to device",
		zap.String("channelID", channelID),
		zap.Int("bytes", len(data)),
	)
	return nil
}
