package types

import (
	"time"

	"github.com/diwise/space-monitor/pkg/placement"
)

type User struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type Token struct {
	Token string `json:"token"`
}

type Floorplan struct {
	ID          uint   `json:"id" yaml:"-"`
	Name        string `json:"name" yaml:"name" validate:"required"`
	ImageURL    string `json:"image_url" yaml:"image_url"`
	Description string `json:"description" yaml:"description"`
}

type DeviceType struct {
	ID       uint   `json:"id" yaml:"-"`
	Name     string `json:"name" yaml:"name"`
	ImageURL string `json:"image_url" yaml:"image_url"`
	HasValue bool   `json:"has_value" yaml:"has_value"`
}

type Device struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	DeviceTypeID uint     `json:"device_type_id"`
	FloorplanID  *uint    `json:"floorplan_id"`
	PathTopic    string   `json:"path_topic"`
	MinAlert     *float64 `json:"min_alert"`
	MaxAlert     *float64 `json:"max_alert"`
	XPercent     float64  `json:"x_percent"`
	YPercent     float64  `json:"y_percent"`
	LatestValue  *float64 `json:"latest_value"`
}

func (d Device) Position() placement.Position {
	return placement.Position{X: d.XPercent, Y: d.YPercent}
}

// NewDevice is the body of a device creation request.
type NewDevice struct {
	Name         string   `json:"name" validate:"required"`
	DeviceTypeID uint     `json:"device_type_id" validate:"required"`
	FloorplanID  *uint    `json:"floorplan_id"`
	PathTopic    string   `json:"path_topic"`
	MinAlert     *float64 `json:"min_alert"`
	MaxAlert     *float64 `json:"max_alert"`
	XPercent     float64  `json:"x_percent"`
	YPercent     float64  `json:"y_percent"`
}

// DeviceLocation moves a device to a floor plan and optionally to a position on it.
// A zero floorplan_id removes the device from any floor plan.
type DeviceLocation struct {
	FloorplanID *uint    `json:"floorplan_id"`
	XPercent    *float64 `json:"x_percent,omitempty"`
	YPercent    *float64 `json:"y_percent,omitempty"`
}

// DeviceDrag describes the end of a marker drag in the pixel space of the
// rendered floor plan.
type DeviceDrag struct {
	DeltaX          float64 `json:"delta_x"`
	DeltaY          float64 `json:"delta_y"`
	ContainerWidth  float64 `json:"container_width" validate:"gt=0"`
	ContainerHeight float64 `json:"container_height" validate:"gt=0"`
}

type LatestValue struct {
	ID          uint     `json:"id"`
	LatestValue *float64 `json:"latest_value"`
}

type SensorInfo struct {
	ID         uint      `json:"id"`
	DeviceID   uint      `json:"device_id"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observed_at"`
}

// Reading is a single measurement for a device, addressed either by id or by
// the topic the device publishes on.
type Reading struct {
	DeviceID  uint      `json:"device_id,omitempty"`
	PathTopic string    `json:"path_topic,omitempty"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}
