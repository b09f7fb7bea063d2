package readings

import (
	"context"
	"encoding/json"

	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/pkg/types"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

const (
	TopicName  string = "sensor.reading"
	SourceName string = "bus"
)

type Recorder interface {
	RecordReading(ctx context.Context, reading types.Reading, source string) (types.Device, error)
}

// NewReadingHandler records every well formed reading received on the bus.
// Malformed messages are logged and dropped.
func NewReadingHandler(recorder Recorder) messaging.TopicMessageHandler {
	return func(ctx context.Context, msg amqp.Delivery, logger zerolog.Logger) {
		reading := types.Reading{}

		err := json.Unmarshal(msg.Body, &reading)
		if err != nil {
			logger.Error().Err(err).Msgf("failed to unmarshal message from %s", msg.RoutingKey)
			return
		}

		if reading.DeviceID == 0 && reading.PathTopic == "" {
			logger.Error().Msg("reading does not identify a device")
			return
		}

		logger = logger.With().Str("path_topic", reading.PathTopic).Uint("device_id", reading.DeviceID).Logger()
		ctx = logging.NewContextWithLogger(ctx, logger)

		_, err = recorder.RecordReading(ctx, reading, SourceName)
		if err != nil {
			logger.Error().Err(err).Msg("could not record reading")
			return
		}

		logger.Debug().Msgf("%s handled", msg.RoutingKey)
	}
}
