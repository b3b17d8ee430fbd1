package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"plantai/models"
)

const (
	ModeInterval = "interval"
	ModeDebug    = "debug"
)

// SensorLister returns the registered sensors in ID order
type SensorLister interface {
	ListSensors(ctx context.Context) ([]models.Sensor, error)
}

// AcquisitionService reads every sensor once per interval and drives the
// watering pipeline
type AcquisitionService struct {
	store      MeasurementStore
	sensors    SensorLister
	source     SensorSource
	detector   *WateringDetector
	labeler    *DrynessLabeler
	predictors *Predictors
	health     *SensorHealthService
	listeners  []WateringListener
	interval   time.Duration
	mode       string
	logger     *zap.Logger
}

// AcquisitionOptions collects the collaborators of the acquisition loop.
// Health is optional.
type AcquisitionOptions struct {
	Store      MeasurementStore
	Sensors    SensorLister
	Source     SensorSource
	Detector   *WateringDetector
	Labeler    *DrynessLabeler
	Predictors *Predictors
	Health     *SensorHealthService
	Interval   time.Duration
	Mode       string
}

func NewAcquisitionService(opts AcquisitionOptions, logger *zap.Logger) *AcquisitionService {
	mode := opts.Mode
	if mode == "" {
		mode = ModeInterval
	}
	return &AcquisitionService{
		store:      opts.Store,
		sensors:    opts.Sensors,
		source:     opts.Source,
		detector:   opts.Detector,
		labeler:    opts.Labeler,
		predictors: opts.Predictors,
		health:     opts.Health,
		interval:   opts.Interval,
		mode:       mode,
		logger:     logger.Named("acquisition"),
	}
}

// AddListener registers a receiver of watering events
func (a *AcquisitionService) AddListener(l WateringListener) {
	a.listeners = append(a.listeners, l)
}

// Start blocks until ctx is cancelled
func (a *AcquisitionService) Start(ctx context.Context) {
	if a.mode == ModeDebug {
		a.runDebug(ctx)
		return
	}

	a.logger.Info("Starting acquisition loop", zap.Duration("interval", a.interval))
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		if err := a.RunOnce(ctx); err != nil && ctx.Err() == nil {
			a.logger.Error("Acquisition cycle failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			a.logger.Info("Acquisition loop stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce processes every registered sensor once. A failing sensor does not
// stop the others; the first error is returned.
func (a *AcquisitionService) RunOnce(ctx context.Context) error {
	sensors, err := a.sensors.ListSensors(ctx)
	if err != nil {
		return fmt.Errorf("error listing sensors: %w", err)
	}

	var firstErr error
	for _, sensor := range sensors {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, err := a.Process(ctx, sensor); err != nil {
			a.logger.Error("Failed to process sensor",
				zap.Uint("sensor_id", sensor.ID),
				zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Process reads one sample of the sensor, archives the history on a watering
// and stores the sample as the new unlabeled reading. The returned event is
// nil when no watering was detected.
func (a *AcquisitionService) Process(ctx context.Context, sensor models.Sensor) (*models.WateringEvent, error) {
	sample, err := a.source.Read(ctx, sensor)
	if err != nil {
		if a.health != nil {
			a.health.ReportFailure(sensor.ID, err)
		}
		if errors.Is(err, ErrNoReading) {
			a.logger.Debug("No new reading", zap.Uint("sensor_id", sensor.ID))
			return nil, nil
		}
		return nil, fmt.Errorf("error reading sensor %d: %w", sensor.ID, err)
	}
	sample.SensorID = sensor.ID
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	if a.health != nil {
		a.health.ReportSample(sample)
	}

	a.logger.Debug("Sensor read",
		zap.Uint("sensor_id", sensor.ID),
		zap.Float64("moisture", sample.Moisture),
		zap.Float64("temperature", sample.Temperature))

	detection, err := a.detector.Detect(ctx, sensor.ID, sample.Moisture)
	if err != nil {
		return nil, err
	}

	var event *models.WateringEvent
	if detection.Watered {
		archived, err := a.labeler.ArchiveUnlabeled(ctx, sensor.ID, sample.Timestamp)
		switch {
		case errors.Is(err, ErrRetrainFailed):
			// the sweep completed, so the reading and the event still go out
			a.logger.Error("Watering archived without a new model",
				zap.Uint("sensor_id", sensor.ID),
				zap.Int("archived", archived),
				zap.Error(err))
		case err != nil:
			return nil, fmt.Errorf("error archiving after watering (%d archived): %w", archived, err)
		}
		event = &models.WateringEvent{
			ID:               uuid.NewString(),
			SensorID:         sensor.ID,
			WateredAt:        sample.Timestamp,
			PreviousMoisture: detection.Previous.Moisture,
			Moisture:         sample.Moisture,
			Archived:         archived,
			Training:         a.labeler.LastTraining(),
		}
		if prediction, err := a.predictors.Predict(sensor.ID, sample.Moisture); err == nil {
			event.Prediction = &prediction
		}
	}

	m := models.NewMeasurement(sensor.ID, sample.Moisture, sample.Temperature, sample.Timestamp)
	if err := a.store.InsertMeasurement(ctx, m); err != nil {
		return event, err
	}

	if event != nil {
		a.notify(ctx, event)
	}
	return event, nil
}

func (a *AcquisitionService) notify(ctx context.Context, event *models.WateringEvent) {
	for _, l := range a.listeners {
		if err := l.OnWatering(ctx, event); err != nil {
			a.logger.Error("Failed to deliver watering event",
				zap.Uint("sensor_id", event.SensorID),
				zap.Error(err))
		}
	}
}

// runDebug logs a reading of every sensor each second without storing it
func (a *AcquisitionService) runDebug(ctx context.Context) {
	a.logger.Info("Starting debug readings, nothing is stored")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	raw, hasRaw := a.source.(RawReader)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Debug readings stopped")
			return
		case <-ticker.C:
		}

		sensors, err := a.sensors.ListSensors(ctx)
		if err != nil {
			a.logger.Error("Error listing sensors", zap.Error(err))
			continue
		}
		for _, sensor := range sensors {
			if hasRaw {
				r, err := raw.ReadRaw(ctx, sensor)
				if err != nil {
					a.logger.Error("Debug read failed", zap.Uint("sensor_id", sensor.ID), zap.Error(err))
					continue
				}
				a.logger.Info("Sensor",
					zap.Uint("sensor_id", sensor.ID),
					zap.Float64("moisture_volts", r.MoistureVolts),
					zap.Float64("moisture", r.Moisture),
					zap.Float64("temperature_volts", r.TemperatureVolts),
					zap.Float64("temperature", r.Temperature))
				continue
			}
			sample, err := a.source.Read(ctx, sensor)
			if err != nil {
				a.logger.Debug("Debug read failed", zap.Uint("sensor_id", sensor.ID), zap.Error(err))
				continue
			}
			a.logger.Info("Sensor",
				zap.Uint("sensor_id", sensor.ID),
				zap.Float64("moisture", sample.Moisture),
				zap.Float64("temperature", sample.Temperature))
		}
	}
}
