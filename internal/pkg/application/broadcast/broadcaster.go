package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/metrics"
	"github.com/diwise/space-monitor/pkg/types"
)

const DefaultInterval time.Duration = 2 * time.Second

type LatestValuesReader interface {
	LatestValues(ctx context.Context) ([]types.LatestValue, error)
}

// Broadcaster periodically sends the latest value of every device to all
// clients connected to a Hub.
type Broadcaster struct {
	hub      *Hub
	reader   LatestValuesReader
	interval time.Duration
}

func NewBroadcaster(hub *Hub, reader LatestValuesReader, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Broadcaster{
		hub:      hub,
		reader:   reader,
		interval: interval,
	}
}

// Run blocks until ctx is cancelled. A failed read skips that tick only.
func (b *Broadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Tick(ctx)
		}
	}
}

func (b *Broadcaster) Tick(ctx context.Context) {
	logger := logging.GetLoggerFromContext(ctx)

	if b.hub.ClientCount() == 0 {
		return
	}

	values, err := b.reader.LatestValues(ctx)
	if err != nil {
		metrics.BroadcastErrors.Inc()
		logger.Error().Err(err).Msg("failed to read latest values")
		return
	}

	message, err := json.Marshal(values)
	if err != nil {
		metrics.BroadcastErrors.Inc()
		logger.Error().Err(err).Msg("failed to marshal latest values")
		return
	}

	if b.hub.Broadcast(message) {
		metrics.BroadcastsSent.Inc()
	}
}
