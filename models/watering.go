package models

import "time"

// WateringEvent is emitted after a watering was detected and the history of
// the sensor was archived
type WateringEvent struct {
	ID               string        `json:"id"`
	SensorID         uint          `json:"sensor_id"`
	WateredAt        time.Time     `json:"watered_at"`
	PreviousMoisture float64       `json:"previous_moisture"`
	Moisture         float64       `json:"moisture"`
	Archived         int           `json:"archived"`
	Training         TrainResult   `json:"training"`
	Prediction       *TimeUntilDry `json:"prediction,omitempty"`
}

// Increase returns the moisture jump that triggered the event
func (e *WateringEvent) Increase() float64 {
	return e.Moisture - e.PreviousMoisture
}
