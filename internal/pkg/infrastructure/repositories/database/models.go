package database

import (
	"time"
)

type User struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;size:255;not null" json:"username"`
	Password string `gorm:"not null" json:"-"`
}

func (User) TableName() string { return "users" }

type Floorplan struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	ImageURL    string `json:"image_url"`
	Description string `json:"description"`
}

func (Floorplan) TableName() string { return "floorplan" }

type DeviceType struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Name     string `gorm:"uniqueIndex;size:255;not null" json:"name"`
	ImageURL string `json:"image_url"`
	HasValue bool   `json:"has_value"`
}

func (DeviceType) TableName() string { return "device_type" }

type Device struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	Name         string      `gorm:"size:255;not null" json:"name"`
	DeviceTypeID uint        `gorm:"not null" json:"device_type_id"`
	DeviceType   *DeviceType `gorm:"foreignKey:DeviceTypeID" json:"-"`
	FloorplanID  *uint       `json:"floorplan_id"`
	Floorplan    *Floorplan  `gorm:"foreignKey:FloorplanID;constraint:OnDelete:SET NULL" json:"-"`
	PathTopic    string      `gorm:"index;size:255" json:"path_topic"`
	MinAlert     *float64    `json:"min_alert"`
	MaxAlert     *float64    `json:"max_alert"`
	XPercent     float64     `json:"x_percent"`
	YPercent     float64     `json:"y_percent"`
	LatestValue  *float64    `json:"latest_value"`
}

func (Device) TableName() string { return "devices" }

type SensorInfo struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DeviceID   uint      `gorm:"index;not null" json:"device_id"`
	Device     *Device   `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `gorm:"index" json:"observed_at"`
}

func (SensorInfo) TableName() string { return "sensor_info" }

// LatestValue is the projection broadcast to connected clients.
type LatestValue struct {
	ID          uint     `json:"id"`
	LatestValue *float64 `json:"latest_value"`
}
