package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"plantai/models"
)

const importBatchSize = 200

// InsertMeasurement stores a new reading
func (d *Database) InsertMeasurement(ctx context.Context, m *models.Measurement) error {
	if err := d.DB.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("error inserting measurement: %w", err)
	}
	return nil
}

// UpdateMinutesUntilDry sets the label of a single measurement
func (d *Database) UpdateMinutesUntilDry(ctx context.Context, id uint, minutes int) error {
	res := d.DB.WithContext(ctx).
		Model(&models.Measurement{}).
		Where("id = ?", id).
		Update("minutes_until_dry", minutes)
	if res.Error != nil {
		return fmt.Errorf("error updating measurement %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("measurement %d: %w", id, ErrNotFound)
	}
	return nil
}

// MostRecentUnlabeled returns the newest unlabeled measurement of a sensor,
// or nil when the sensor has none
func (d *Database) MostRecentUnlabeled(ctx context.Context, sensorID uint) (*models.Measurement, error) {
	var m models.Measurement
	err := d.DB.WithContext(ctx).
		Where("sensor_id = ? AND minutes_until_dry = ?", sensorID, models.Unlabeled).
		Order("timestamp DESC").
		Order("id DESC").
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error getting recent measurement: %w", err)
	}
	return &m, nil
}

// AllUnlabeled returns every unlabeled measurement of a sensor, oldest first
func (d *Database) AllUnlabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error) {
	var list []models.Measurement
	err := d.DB.WithContext(ctx).
		Where("sensor_id = ? AND minutes_until_dry = ?", sensorID, models.Unlabeled).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("error getting unlabeled measurements: %w", err)
	}
	return list, nil
}

// AllLabeled returns every archived measurement of a sensor, oldest first
func (d *Database) AllLabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error) {
	var list []models.Measurement
	err := d.DB.WithContext(ctx).
		Where("sensor_id = ? AND minutes_until_dry <> ?", sensorID, models.Unlabeled).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("error getting archived measurements: %w", err)
	}
	return list, nil
}

// ListMeasurements returns the newest limit measurements of a sensor sorted
// oldest to newest. A negative limit returns all of them.
func (d *Database) ListMeasurements(ctx context.Context, sensorID uint, limit int) ([]models.Measurement, error) {
	var list []models.Measurement
	query := d.DB.WithContext(ctx).Where("sensor_id = ?", sensorID)
	if limit < 0 {
		err := query.Order("timestamp ASC").Order("id ASC").Find(&list).Error
		if err != nil {
			return nil, fmt.Errorf("error listing measurements: %w", err)
		}
		return list, nil
	}

	err := query.Order("timestamp DESC").Order("id DESC").Limit(limit).Find(&list).Error
	if err != nil {
		return nil, fmt.Errorf("error listing measurements: %w", err)
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, nil
}

// DeleteMeasurements removes every measurement of a sensor
func (d *Database) DeleteMeasurements(ctx context.Context, sensorID uint) (int64, error) {
	res := d.DB.WithContext(ctx).Where("sensor_id = ?", sensorID).Delete(&models.Measurement{})
	if res.Error != nil {
		return 0, fmt.Errorf("error deleting measurements: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, fmt.Errorf("sensor %d: %w", sensorID, ErrNotFound)
	}
	return res.RowsAffected, nil
}

// ImportMeasurements inserts a batch of measurements in one transaction
func (d *Database) ImportMeasurements(ctx context.Context, list []models.Measurement) error {
	if len(list) == 0 {
		return nil
	}
	err := d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(list, importBatchSize).Error
	})
	if err != nil {
		return fmt.Errorf("error importing measurements: %w", err)
	}
	d.logger.Info("Imported measurements", zap.Int("count", len(list)))
	return nil
}
