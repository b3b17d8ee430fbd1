package models

import (
	"time"
)

// SensorHealthStatus represents the reading health of a soil sensor
type SensorHealthStatus string

const (
	SensorHealthy   SensorHealthStatus = "healthy"
	SensorTimeout   SensorHealthStatus = "timeout"
	SensorRecovered SensorHealthStatus = "recovered"
)

// SensorHealth tracks when a sensor last produced a reading
type SensorHealth struct {
	SensorID   uint
	LastSample *Sample
	LastSeen   time.Time
	LastError  string
	Failures   int
	Status     SensorHealthStatus
	TimeoutAt  time.Time // When the sensor timed out (if applicable)
}
