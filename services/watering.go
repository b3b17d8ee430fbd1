package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"plantai/models"
)

// IsWateringEvent reports whether moisture rose by more than threshold
// percentage points. An increase equal to the threshold does not count.
func IsWateringEvent(previousMoisture, newMoisture, threshold float64) bool {
	return newMoisture-previousMoisture > threshold
}

// Detection is the outcome of comparing a new reading with the stored one
type Detection struct {
	Watered  bool
	Previous *models.Measurement // nil on the first reading of a sensor
}

type WateringDetector struct {
	store     MeasurementStore
	threshold float64
	logger    *zap.Logger
}

func NewWateringDetector(store MeasurementStore, threshold float64, logger *zap.Logger) *WateringDetector {
	return &WateringDetector{
		store:     store,
		threshold: threshold,
		logger:    logger.Named("watering"),
	}
}

// Threshold returns the configured moisture increase
func (wd *WateringDetector) Threshold() float64 {
	return wd.threshold
}

// Detect compares newMoisture with the most recent unlabeled measurement of
// the sensor
func (wd *WateringDetector) Detect(ctx context.Context, sensorID uint, newMoisture float64) (Detection, error) {
	previous, err := wd.store.MostRecentUnlabeled(ctx, sensorID)
	if err != nil {
		return Detection{}, fmt.Errorf("error detecting watering for sensor %d: %w", sensorID, err)
	}
	if previous == nil {
		wd.logger.Info("No recent measurement found, watering check skipped", zap.Uint("sensor_id", sensorID))
		return Detection{}, nil
	}

	watered := IsWateringEvent(previous.Moisture, newMoisture, wd.threshold)
	if watered {
		wd.logger.Info("Watering detected",
			zap.Uint("sensor_id", sensorID),
			zap.Float64("previous_moisture", previous.Moisture),
			zap.Float64("moisture", newMoisture),
			zap.Float64("threshold", wd.threshold))
	}
	return Detection{Watered: watered, Previous: previous}, nil
}
