package types

import (
	"encoding/json"
	"time"
)

const (
	AlertAboveMax string = "above_max"
	AlertBelowMin string = "below_min"
)

type AlertRaised struct {
	DeviceID      uint      `json:"device_id"`
	DeviceName    string    `json:"device_name"`
	FloorplanName string    `json:"floorplan_name,omitempty"`
	Kind          string    `json:"kind"`
	Value         float64   `json:"value"`
	MinAlert      *float64  `json:"min_alert,omitempty"`
	MaxAlert      *float64  `json:"max_alert,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func (a *AlertRaised) ContentType() string {
	return "application/json"
}
func (a *AlertRaised) TopicName() string {
	return "sensor.alertRaised"
}
func (a *AlertRaised) Body() []byte {
	b, _ := json.Marshal(a)
	return b
}
