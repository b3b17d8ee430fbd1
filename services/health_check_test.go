package services

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"plantai/models"
)

type recordingAlerter struct {
	timeouts   []models.SensorHealth
	recoveries []time.Duration
}

func (r *recordingAlerter) SendSensorTimeoutAlert(health models.SensorHealth, since time.Duration) error {
	r.timeouts = append(r.timeouts, health)
	return nil
}

func (r *recordingAlerter) SendSensorRecoveryAlert(sensorID uint, down time.Duration) error {
	r.recoveries = append(r.recoveries, down)
	return nil
}

func TestSensorTimeoutAndRecovery(t *testing.T) {
	now := base
	alerter := &recordingAlerter{}
	h := NewSensorHealthService(30*time.Minute, alerter, zaptest.NewLogger(t))
	h.now = func() time.Time { return now }

	h.ReportSample(models.Sample{SensorID: 1, Moisture: 30})

	now = now.Add(20 * time.Minute)
	h.ReportFailure(1, errors.New("i2c timeout"))
	h.checkTimeouts()
	if len(alerter.timeouts) != 0 {
		t.Fatal("timeout raised too early")
	}

	now = now.Add(15 * time.Minute)
	h.checkTimeouts()
	h.checkTimeouts()
	if len(alerter.timeouts) != 1 {
		t.Fatalf("expected exactly one timeout alert, got %d", len(alerter.timeouts))
	}
	alert := alerter.timeouts[0]
	if alert.Failures != 1 || alert.LastError != "i2c timeout" || alert.LastSample == nil {
		t.Fatalf("timeout alert lacks details: %+v", alert)
	}

	now = now.Add(time.Hour)
	h.ReportSample(models.Sample{SensorID: 1, Moisture: 29})
	if len(alerter.recoveries) != 1 || alerter.recoveries[0] != time.Hour {
		t.Fatalf("unexpected recoveries %v", alerter.recoveries)
	}

	health, ok := h.GetSensorHealth(1)
	if !ok || health.Status != models.SensorRecovered || health.Failures != 0 {
		t.Fatalf("unexpected health %+v", health)
	}
}

func TestRegisteredSensorWithoutReadingTimesOut(t *testing.T) {
	now := base
	alerter := &recordingAlerter{}
	h := NewSensorHealthService(time.Minute, alerter, zaptest.NewLogger(t))
	h.now = func() time.Time { return now }

	h.Register(7)
	now = now.Add(2 * time.Minute)
	h.checkTimeouts()
	if len(alerter.timeouts) != 1 || alerter.timeouts[0].SensorID != 7 {
		t.Fatalf("expected timeout for sensor 7, got %+v", alerter.timeouts)
	}
}

func TestHealthWithoutAlerter(t *testing.T) {
	now := base
	h := NewSensorHealthService(time.Minute, nil, zaptest.NewLogger(t))
	h.now = func() time.Time { return now }
	h.Register(1)
	now = now.Add(time.Hour)
	h.checkTimeouts()
	h.ReportSample(models.Sample{SensorID: 1})

	if _, ok := h.GetSensorHealth(2); ok {
		t.Fatal("sensor 2 was never seen")
	}
}
