package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"plantai/models"
)

// HealthAlerter delivers sensor timeout and recovery alerts
type HealthAlerter interface {
	SendSensorTimeoutAlert(health models.SensorHealth, timeSinceLastSeen time.Duration) error
	SendSensorRecoveryAlert(sensorID uint, downDuration time.Duration) error
}

// SensorHealthService tracks successful readings per sensor and alerts when a
// sensor stays silent longer than the timeout
type SensorHealthService struct {
	timeout       time.Duration
	checkInterval time.Duration
	alerter       HealthAlerter
	logger        *zap.Logger
	now           func() time.Time
	sensors       map[uint]*models.SensorHealth
	mu            sync.RWMutex
}

// NewSensorHealthService creates a new health monitor. alerter may be nil.
func NewSensorHealthService(timeout time.Duration, alerter HealthAlerter, logger *zap.Logger) *SensorHealthService {
	return &SensorHealthService{
		timeout:       timeout,
		checkInterval: 10 * time.Second,
		alerter:       alerter,
		logger:        logger.Named("health"),
		now:           time.Now,
		sensors:       make(map[uint]*models.SensorHealth),
	}
}

// Start runs the timeout checker until ctx is cancelled
func (h *SensorHealthService) Start(ctx context.Context) {
	h.logger.Info("Starting sensor health monitoring", zap.Duration("timeout", h.timeout))

	ticker := time.NewTicker(h.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Sensor health monitoring stopped")
			return
		case <-ticker.C:
			h.checkTimeouts()
		}
	}
}

// Register starts tracking a sensor before its first reading
func (h *SensorHealthService) Register(sensorID uint) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sensorLocked(sensorID)
}

func (h *SensorHealthService) sensorLocked(sensorID uint) *models.SensorHealth {
	sensor, exists := h.sensors[sensorID]
	if !exists {
		sensor = &models.SensorHealth{
			SensorID: sensorID,
			LastSeen: h.now(),
			Status:   models.SensorHealthy,
		}
		h.sensors[sensorID] = sensor
		h.logger.Info("New sensor registered for health monitoring", zap.Uint("sensor_id", sensorID))
	}
	return sensor
}

// ReportSample records a successful reading
func (h *SensorHealthService) ReportSample(sample models.Sample) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	sensor := h.sensorLocked(sample.SensorID)
	wasTimeout := sensor.Status == models.SensorTimeout

	s := sample
	sensor.LastSample = &s
	sensor.LastSeen = now
	sensor.LastError = ""
	sensor.Failures = 0
	sensor.Status = models.SensorHealthy

	if wasTimeout {
		downDuration := now.Sub(sensor.TimeoutAt)
		sensor.Status = models.SensorRecovered
		h.logger.Info("Sensor recovered from timeout",
			zap.Uint("sensor_id", sample.SensorID),
			zap.Duration("down_duration", downDuration))

		if h.alerter != nil {
			if err := h.alerter.SendSensorRecoveryAlert(sample.SensorID, downDuration); err != nil {
				h.logger.Error("Failed to send recovery alert",
					zap.Uint("sensor_id", sample.SensorID),
					zap.Error(err))
			}
		}
	}
}

// ReportFailure records a failed reading
func (h *SensorHealthService) ReportFailure(sensorID uint, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sensor := h.sensorLocked(sensorID)
	sensor.Failures++
	sensor.LastError = err.Error()
}

// checkTimeouts flags every sensor that has been silent for too long
func (h *SensorHealthService) checkTimeouts() {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	for sensorID, sensor := range h.sensors {
		if sensor.Status == models.SensorTimeout {
			continue
		}

		timeSinceLastSeen := now.Sub(sensor.LastSeen)
		if timeSinceLastSeen <= h.timeout {
			continue
		}
		h.logger.Warn("Sensor reading timeout detected",
			zap.Uint("sensor_id", sensorID),
			zap.Time("last_seen", sensor.LastSeen),
			zap.Duration("time_since_last_seen", timeSinceLastSeen),
			zap.Int("failures", sensor.Failures))

		sensor.Status = models.SensorTimeout
		sensor.TimeoutAt = now

		if h.alerter != nil {
			if err := h.alerter.SendSensorTimeoutAlert(*sensor, timeSinceLastSeen); err != nil {
				h.logger.Error("Failed to send timeout alert",
					zap.Uint("sensor_id", sensorID),
					zap.Error(err))
			}
		}
	}
}

// GetSensorHealth returns a copy of the health of a sensor
func (h *SensorHealthService) GetSensorHealth(sensorID uint) (models.SensorHealth, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sensor, exists := h.sensors[sensorID]
	if !exists {
		return models.SensorHealth{}, false
	}
	return *sensor, true
}
