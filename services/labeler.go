package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"plantai/models"
)

// ErrNegativeElapsed means a measurement is newer than the watering it is
// labelled against
var ErrNegativeElapsed = errors.New("measurement is newer than the watering event")

// ErrRetrainFailed means every measurement was archived but the model could
// not be rebuilt from them
var ErrRetrainFailed = errors.New("retraining failed")

// Retrainer rebuilds the dryness model of a sensor from its archived
// measurements
type Retrainer interface {
	Retrain(ctx context.Context, sensorID uint) (models.TrainResult, error)
}

// DrynessLabeler back-fills minutes until dry after a watering
type DrynessLabeler struct {
	store     MeasurementStore
	retrainer Retrainer
	logger    *zap.Logger

	mu   sync.Mutex
	last models.TrainResult
}

func NewDrynessLabeler(store MeasurementStore, retrainer Retrainer, logger *zap.Logger) *DrynessLabeler {
	return &DrynessLabeler{
		store:     store,
		retrainer: retrainer,
		logger:    logger.Named("labeler"),
	}
}

// MinutesUntilDry returns the whole minutes between a reading and the watering
func MinutesUntilDry(readAt, wateredAt time.Time) (int, error) {
	delta := wateredAt.Sub(readAt)
	if delta < 0 {
		return 0, ErrNegativeElapsed
	}
	return int(delta.Minutes()), nil
}

// ArchiveUnlabeled labels every unlabeled measurement of the sensor with the
// minutes elapsed until wateredAt and retrains the model. It returns the
// number of measurements updated, also when an update fails halfway.
func (dl *DrynessLabeler) ArchiveUnlabeled(ctx context.Context, sensorID uint, wateredAt time.Time) (int, error) {
	list, err := dl.store.AllUnlabeled(ctx, sensorID)
	if err != nil {
		return 0, fmt.Errorf("error archiving sensor %d: %w", sensorID, err)
	}

	labels := make([]int, len(list))
	for i := range list {
		minutes, err := MinutesUntilDry(list[i].Timestamp, wateredAt)
		if err != nil {
			return 0, fmt.Errorf("measurement %d at %s: %w",
				list[i].ID, list[i].Timestamp.Format(time.RFC3339), err)
		}
		labels[i] = minutes
	}

	archived := 0
	for i := range list {
		if err := dl.store.UpdateMinutesUntilDry(ctx, list[i].ID, labels[i]); err != nil {
			dl.logger.Error("Archiving stopped",
				zap.Uint("sensor_id", sensorID),
				zap.Uint("measurement_id", list[i].ID),
				zap.Int("archived", archived),
				zap.Error(err))
			return archived, fmt.Errorf("error archiving measurement %d: %w", list[i].ID, err)
		}
		archived++
	}
	dl.logger.Info("Minutes until dry set",
		zap.Uint("sensor_id", sensorID),
		zap.Int("archived", archived),
		zap.Time("watered_at", wateredAt))

	result, err := dl.retrainer.Retrain(ctx, sensorID)
	if err != nil {
		dl.logger.Error("Retraining failed", zap.Uint("sensor_id", sensorID), zap.Error(err))
		dl.mu.Lock()
		dl.last = models.TrainResult{SensorID: sensorID, Error: err.Error(), TrainedAt: time.Now()}
		dl.mu.Unlock()
		return archived, fmt.Errorf("%w: sensor %d: %w", ErrRetrainFailed, sensorID, err)
	}
	dl.mu.Lock()
	dl.last = result
	dl.mu.Unlock()
	return archived, nil
}

// LastTraining returns the result of the training that followed the latest
// completed archive
func (dl *DrynessLabeler) LastTraining() models.TrainResult {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.last
}
