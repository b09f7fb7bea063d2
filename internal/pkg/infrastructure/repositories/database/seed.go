package database

import (
	"context"
	"errors"

	"github.com/diwise/space-monitor/pkg/types"
	"github.com/diwise/space-monitor/internal/pkg/infrastructure/logging"
)

// SeedDeviceTypes adds every device type not already known by name.
func SeedDeviceTypes(ctx context.Context, r Repository, deviceTypes []types.DeviceType) error {
	log := logging.GetLoggerFromContext(ctx)

	for _, dt := range deviceTypes {
		_, err := r.GetDeviceTypeByName(ctx, dt.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		err = r.SaveDeviceType(ctx, &DeviceType{
			Name:     dt.Name,
			ImageURL: dt.ImageURL,
			HasValue: dt.HasValue,
		})
		if err != nil {
			return err
		}

		log.Debug().Str("device_type", dt.Name).Msg("seeded device type")
	}

	return nil
}

// SeedFloorplans adds the given floor plans when the store has none.
func SeedFloorplans(ctx context.Context, r Repository, floorplans []types.Floorplan) error {
	existing, err := r.GetFloorplans(ctx)
	if err != nil {
		return err
	}

	if len(existing) > 0 {
		return nil
	}

	for _, f := range floorplans {
		err = r.SaveFloorplan(ctx, &Floorplan{
			Name:        f.Name,
			ImageURL:    f.ImageURL,
			Description: f.Description,
		})
		if err != nil {
			return err
		}
	}

	return nil
}
