package services

import (
	"context"

	"plantai/models"
)

// MeasurementStore is the part of the database the pipeline depends on
type MeasurementStore interface {
	InsertMeasurement(ctx context.Context, m *models.Measurement) error
	UpdateMinutesUntilDry(ctx context.Context, id uint, minutes int) error
	MostRecentUnlabeled(ctx context.Context, sensorID uint) (*models.Measurement, error)
	AllUnlabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error)
	AllLabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error)
}

// WateringListener is notified after a watering was archived
type WateringListener interface {
	OnWatering(ctx context.Context, event *models.WateringEvent) error
}
