package facility

import (
	db "github.com/diwise/space-monitor/internal/pkg/infrastructure/repositories/database"
	"github.com/diwise/space-monitor/pkg/types"
	"github.com/samber/lo"
)

func toUser(u db.User) types.User {
	return types.User{ID: u.ID, Username: u.Username}
}

func toFloorplan(f db.Floorplan) types.Floorplan {
	return types.Floorplan{
		ID:          f.ID,
		Name:        f.Name,
		ImageURL:    f.ImageURL,
		Description: f.Description,
	}
}

func toDeviceType(dt db.DeviceType) types.DeviceType {
	return types.DeviceType{
		ID:       dt.ID,
		Name:     dt.Name,
		ImageURL: dt.ImageURL,
		HasValue: dt.HasValue,
	}
}

func toDevice(d db.Device) types.Device {
	return types.Device{
		ID:           d.ID,
		Name:         d.Name,
		DeviceTypeID: d.DeviceTypeID,
		FloorplanID:  d.FloorplanID,
		PathTopic:    d.PathTopic,
		MinAlert:     d.MinAlert,
		MaxAlert:     d.MaxAlert,
		XPercent:     d.XPercent,
		YPercent:     d.YPercent,
		LatestValue:  d.LatestValue,
	}
}

func toDevices(devices []db.Device) []types.Device {
	return lo.Map(devices, func(d db.Device, _ int) types.Device {
		return toDevice(d)
	})
}
