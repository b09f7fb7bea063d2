package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/samber/lo"
)

const (
	SourceName      string        = "simulator"
	DefaultInterval time.Duration = 5 * time.Second

	defaultCenter float64 = 22.5
	defaultSpread float64 = 2.5
	overshoot     float64 = 1.2
	stepRatio     float64 = 0.2
)

type Facility interface {
	GetDeviceTypes(ctx context.Context) ([]types.DeviceType, error)
	GetDevices(ctx context.Context) ([]types.Device, error)
	RecordReading(ctx context.Context, reading types.Reading, source string) (types.Device, error)
}

// Simulator produces readings for every device whose type carries a value. Each
// device follows a bounded random walk that can drift slightly past its alert
// thresholds.
type Simulator struct {
	facility Facility
	interval time.Duration
	rnd      *rand.Rand
	last     map[uint]float64
}

func New(facility Facility, interval time.Duration, seed int64) *Simulator {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Simulator{
		facility: facility,
		interval: interval,
		rnd:      rand.New(rand.NewSource(seed)),
		last:     map[uint]float64{},
	}
}

func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				logger := logging.GetLoggerFromContext(ctx)
				logger.Error().Err(err).Msg("simulation tick failed")
			}
		}
	}
}

func (s *Simulator) Tick(ctx context.Context) error {
	logger := logging.GetLoggerFromContext(ctx)

	deviceTypes, err := s.facility.GetDeviceTypes(ctx)
	if err != nil {
		return err
	}

	withValue := lo.FilterMap(deviceTypes, func(dt types.DeviceType, _ int) (uint, bool) {
		return dt.ID, dt.HasValue
	})

	devices, err := s.facility.GetDevices(ctx)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	for _, d := range devices {
		if !lo.Contains(withValue, d.DeviceTypeID) {
			continue
		}

		value := s.next(d)

		_, err := s.facility.RecordReading(ctx, types.Reading{DeviceID: d.ID, Value: value, Timestamp: now}, SourceName)
		if err != nil {
			logger.Warn().Err(err).Uint("device_id", d.ID).Msg("failed to record simulated reading")
			continue
		}

		s.last[d.ID] = value
	}

	return nil
}

func (s *Simulator) next(d types.Device) float64 {
	center, spread := bounds(d)

	current, ok := s.last[d.ID]
	if !ok {
		current = center + (s.rnd.Float64()*2-1)*spread
	}

	low := center - spread*overshoot
	high := center + spread*overshoot

	v := current + (s.rnd.Float64()*2-1)*spread*stepRatio
	v = math.Max(low, math.Min(v, high))

	return math.Round(v*100) / 100
}

func bounds(d types.Device) (center, spread float64) {
	switch {
	case d.MinAlert != nil && d.MaxAlert != nil:
		return (*d.MinAlert + *d.MaxAlert) / 2, (*d.MaxAlert - *d.MinAlert) / 2
	case d.MaxAlert != nil:
		return *d.MaxAlert - defaultSpread, defaultSpread
	case d.MinAlert != nil:
		return *d.MinAlert + defaultSpread, defaultSpread
	default:
		return defaultCenter, defaultSpread
	}
}
