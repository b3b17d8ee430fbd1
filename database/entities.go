package database

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"plantai/models"
)

// Insert stores any console entity
func (d *Database) Insert(ctx context.Context, e models.Entity) error {
	if err := e.Insert(d.DB.WithContext(ctx)); err != nil {
		return fmt.Errorf("error inserting %s: %w", e.Describe(), err)
	}
	return nil
}

func (d *Database) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	var list []models.Sensor
	if err := d.DB.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("error listing sensors: %w", err)
	}
	return list, nil
}

func (d *Database) ListSpecies(ctx context.Context) ([]models.Species, error) {
	var list []models.Species
	if err := d.DB.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("error listing species: %w", err)
	}
	return list, nil
}

func (d *Database) ListPlants(ctx context.Context) ([]models.Plant, error) {
	var list []models.Plant
	if err := d.DB.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("error listing plants: %w", err)
	}
	return list, nil
}

func (d *Database) DeleteSensor(ctx context.Context, id uint) error {
	return d.deleteByID(ctx, &models.Sensor{}, id)
}

func (d *Database) DeleteSpecies(ctx context.Context, id uint) error {
	return d.deleteByID(ctx, &models.Species{}, id)
}

func (d *Database) DeletePlant(ctx context.Context, id uint) error {
	return d.deleteByID(ctx, &models.Plant{}, id)
}

func (d *Database) deleteByID(ctx context.Context, model any, id uint) error {
	res := d.DB.WithContext(ctx).Delete(model, id)
	if res.Error != nil {
		return fmt.Errorf("error deleting entry %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("entry %d: %w", id, ErrNotFound)
	}
	return nil
}

// EnsureSensor returns the sensor at address, registering it when missing
func (d *Database) EnsureSensor(ctx context.Context, address int) (*models.Sensor, error) {
	var sensor models.Sensor
	err := d.DB.WithContext(ctx).Where("address = ?", address).Take(&sensor).Error
	if err == nil {
		return &sensor, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("error getting sensor 0x%02x: %w", address, err)
	}

	sensor = models.Sensor{Address: address}
	if err := d.Insert(ctx, &sensor); err != nil {
		return nil, err
	}
	d.logger.Info("Registered sensor", zap.Uint("sensor_id", sensor.ID), zap.Int("address", address))
	return &sensor, nil
}
