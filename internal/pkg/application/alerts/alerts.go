package alerts

import (
	"context"
	"errors"
	"fmt"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/diwise/messaging-golang/pkg/messaging"
	"github.com/diwise/space-monitor/internal/pkg/application/webevents"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/space-monitor/pkg/types"
	"golang.org/x/sys/unix"
)

const AlertEventType string = "spacemonitor.alert"

// Evaluate checks value against the thresholds of device. Unset thresholds are ignored.
func Evaluate(device types.Device, value float64) (kind string, raised bool) {
	if device.MaxAlert != nil && value > *device.MaxAlert {
		return types.AlertAboveMax, true
	}
	if device.MinAlert != nil && value < *device.MinAlert {
		return types.AlertBelowMin, true
	}
	return "", false
}

//go:generate moq -rm -out notifier_mock.go . Notifier

type Notifier interface {
	Notify(ctx context.Context, alert types.AlertRaised) error
}

// Publisher is the part of a messaging context used to publish alerts on the bus.
type Publisher interface {
	PublishOnTopic(ctx context.Context, message messaging.TopicMessage) error
}

// WebPublisher pushes alerts to connected browsers.
type WebPublisher interface {
	Publish(event string, data any) error
}

type notifier struct {
	publisher   Publisher
	web         WebPublisher
	subscribers []SubscriberConfig
	client      cloudevents.Client
}

// NewNotifier returns a Notifier that publishes alerts on the bus and to browsers,
// for each publisher that is not nil, and posts them as cloud events to every
// configured subscriber.
func NewNotifier(publisher Publisher, web WebPublisher, cfg *Config) (Notifier, error) {
	n := &notifier{
		publisher: publisher,
		web:       web,
	}

	if cfg != nil {
		for _, notification := range cfg.Notifications {
			if notification.Type == AlertEventType {
				n.subscribers = append(n.subscribers, notification.Subscribers...)
			}
		}
	}

	if len(n.subscribers) > 0 {
		c, err := cloudevents.NewClientHTTP()
		if err != nil {
			return nil, fmt.Errorf("failed to create cloudevents client: %w", err)
		}
		n.client = c
	}

	return n, nil
}

func (n *notifier) Notify(ctx context.Context, alert types.AlertRaised) error {
	logger := logging.GetLoggerFromContext(ctx).With().Uint("device_id", alert.DeviceID).Str("kind", alert.Kind).Logger()

	metrics.AlertsRaised.WithLabelValues(alert.Kind).Inc()

	var errs []error

	if n.publisher != nil {
		if err := n.publisher.PublishOnTopic(ctx, &alert); err != nil {
			logger.Error().Err(err).Msg("failed to publish alert on topic")
			errs = append(errs, err)
		}
	}

	if n.web != nil {
		if err := n.web.Publish(webevents.AlertEvent, alert); err != nil {
			logger.Error().Err(err).Msg("failed to publish alert to web clients")
			errs = append(errs, err)
		}
	}

	if n.client == nil {
		return errors.Join(errs...)
	}

	event := cloudevents.NewEvent()
	event.SetID(fmt.Sprintf("%d:%d", alert.DeviceID, alert.Timestamp.UnixNano()))
	event.SetTime(alert.Timestamp)
	event.SetSource("github.com/diwise/space-monitor")
	event.SetType(AlertEventType)

	if err := event.SetData(cloudevents.ApplicationJSON, alert); err != nil {
		return errors.Join(append(errs, err)...)
	}

	for _, s := range n.subscribers {
		ctxWithTarget := cloudevents.ContextWithTarget(ctx, s.Endpoint)

		result := n.client.Send(ctxWithTarget, event)
		if cloudevents.IsUndelivered(result) || errors.Is(result, unix.ECONNREFUSED) {
			logger.Error().Err(result).Msgf("failed to send alert to %s", s.Endpoint)
			errs = append(errs, fmt.Errorf("%w", result))
		}
	}

	return errors.Join(errs...)
}
