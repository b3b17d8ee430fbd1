package models

import (
	"fmt"
	"math"
	"time"
)

const minutesPerDay = 24 * 60

// TrainResult describes one training run of a dryness model
type TrainResult struct {
	SensorID     uint      `json:"sensor_id"`
	Samples      int       `json:"samples"`
	TrainSamples int       `json:"train_samples"`
	TestSamples  int       `json:"test_samples"`
	MAE          float64   `json:"mae"`
	R2           float64   `json:"r2"`
	Skipped      bool      `json:"skipped"`
	TrainedAt    time.Time `json:"trained_at"`
	Error        string    `json:"error,omitempty"`
}

// TimeUntilDry is a prediction expressed as whole days and hours
type TimeUntilDry struct {
	Days  int `json:"days"`
	Hours int `json:"hours"`
}

// TimeUntilDryFromMinutes converts predicted minutes into days and hours.
// Hours are rounded half to even; a rounded 24 rolls over into the next day.
func TimeUntilDryFromMinutes(minutes float64) TimeUntilDry {
	if minutes < 0 || math.IsNaN(minutes) {
		minutes = 0
	}
	days := int(math.Floor(minutes / minutesPerDay))
	hours := int(math.RoundToEven(math.Mod(minutes, minutesPerDay) / 60))
	if hours >= 24 {
		days++
		hours = 0
	}
	return TimeUntilDry{Days: days, Hours: hours}
}

func (t TimeUntilDry) String() string {
	return fmt.Sprintf("%d days and %d hours", t.Days, t.Hours)
}
