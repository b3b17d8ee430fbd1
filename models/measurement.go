package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Unlabeled marks a measurement whose minutes until dry have not been
// computed yet (the "current" state).
const Unlabeled = -1

// TimestampLayout is used for console output and CSV streams
const TimestampLayout = "2006/01/02 15:04"

// Measurement is a single soil reading of one sensor
type Measurement struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	SensorID        uint      `gorm:"index:idx_measurements_sensor_ts;not null" json:"sensor_id"`
	Moisture        float64   `json:"moisture"`
	Temperature     float64   `json:"temperature"`
	MinutesUntilDry int       `gorm:"index;not null" json:"minutes_until_dry"`
	Timestamp       time.Time `gorm:"index:idx_measurements_sensor_ts;not null" json:"timestamp"`
}

func (Measurement) TableName() string { return "measurements" }

// NewMeasurement returns an unlabeled measurement
func NewMeasurement(sensorID uint, moisture, temperature float64, at time.Time) *Measurement {
	return &Measurement{
		SensorID:        sensorID,
		Moisture:        moisture,
		Temperature:     temperature,
		MinutesUntilDry: Unlabeled,
		Timestamp:       at,
	}
}

// IsLabeled reports whether the measurement has been archived
func (m Measurement) IsLabeled() bool {
	return m.MinutesUntilDry != Unlabeled
}

func (m *Measurement) Describe() string {
	return fmt.Sprintf("[%d | %d | %.2f | %.2f | %d | %s]",
		m.ID, m.SensorID, m.Moisture, m.Temperature, m.MinutesUntilDry, m.Timestamp.Local().Format(TimestampLayout))
}

func (m *Measurement) Insert(db *gorm.DB) error {
	return db.Create(m).Error
}

// BeforeCreate stores timestamps in UTC so they sort the same on every backend
func (m *Measurement) BeforeCreate(tx *gorm.DB) error {
	m.Timestamp = m.Timestamp.UTC()
	return nil
}

// Sample is what a sensor source hands to the acquisition loop
type Sample struct {
	SensorID    uint      `json:"sensor_id"`
	Moisture    float64   `json:"moisture"`
	Temperature float64   `json:"temperature"`
	Timestamp   time.Time `json:"timestamp"`
}
