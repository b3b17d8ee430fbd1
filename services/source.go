package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"plantai/config"
	"plantai/models"
)

// ErrNoReading is returned by sources that have nothing new for a sensor
var ErrNoReading = errors.New("no new reading available")

// SensorSource produces one sample per sensor on demand
type SensorSource interface {
	Read(ctx context.Context, sensor models.Sensor) (models.Sample, error)
	Close() error
}

// RawReading is a single SMT50 conversion with the voltages it came from
type RawReading struct {
	MoistureVolts    float64
	TemperatureVolts float64
	Moisture         float64
	Temperature      float64
}

// RawReader is implemented by sources that sample analog voltages
type RawReader interface {
	ReadRaw(ctx context.Context, sensor models.Sensor) (RawReading, error)
}

// NewSensorSource builds the source selected by sensors.source
func NewSensorSource(cfg *config.Config, logger *zap.Logger) (SensorSource, error) {
	switch cfg.Sensors.Source {
	case "i2c":
		return NewI2CSource(cfg.Sensors, logger)
	case "dummy":
		return NewDummySource(cfg.Sensors, time.Now().UnixNano(), logger), nil
	case "mqtt":
		return NewMQTTSource(cfg.MQTT, logger)
	case "firebase":
		return NewFirebaseSource(context.Background(), cfg.Firebase, logger)
	default:
		return nil, fmt.Errorf("unsupported sensor source: %q", cfg.Sensors.Source)
	}
}

// MoistureFromVolts scales the SMT50 moisture output (0..3 V) to volumetric
// water content (0..50 %)
func MoistureFromVolts(v float64) float64 {
	return v * 50.0 / 3.0
}

// TemperatureFromVolts scales the SMT50 temperature output to °C
func TemperatureFromVolts(v float64) float64 {
	return (v - 0.5) * 100.0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// voltageReader samples both SMT50 channels of a sensor once
type voltageReader interface {
	voltages(ctx context.Context, sensor models.Sensor) (moisture, temperature float64, err error)
}

// smt50 averages several voltage samples into one reading
type smt50 struct {
	reader voltageReader
	cycles int
	pause  time.Duration
	now    func() time.Time
}

func newSMT50(reader voltageReader, cycles int) *smt50 {
	if cycles <= 0 {
		cycles = 1
	}
	return &smt50{reader: reader, cycles: cycles, pause: time.Second, now: time.Now}
}

func (s *smt50) Read(ctx context.Context, sensor models.Sensor) (models.Sample, error) {
	var moisture, temperature float64
	for i := 0; i < s.cycles; i++ {
		if i > 0 && s.pause > 0 {
			select {
			case <-ctx.Done():
				return models.Sample{}, ctx.Err()
			case <-time.After(s.pause):
			}
		}
		mv, tv, err := s.reader.voltages(ctx, sensor)
		if err != nil {
			return models.Sample{}, err
		}
		moisture += MoistureFromVolts(mv)
		temperature += TemperatureFromVolts(tv)
	}
	n := float64(s.cycles)
	return models.Sample{
		SensorID:    sensor.ID,
		Moisture:    round2(moisture / n),
		Temperature: round2(temperature / n),
		Timestamp:   s.now(),
	}, nil
}

func (s *smt50) ReadRaw(ctx context.Context, sensor models.Sensor) (RawReading, error) {
	mv, tv, err := s.reader.voltages(ctx, sensor)
	if err != nil {
		return RawReading{}, err
	}
	return RawReading{
		MoistureVolts:    mv,
		TemperatureVolts: tv,
		Moisture:         round2(MoistureFromVolts(mv)),
		Temperature:      round2(TemperatureFromVolts(tv)),
	}, nil
}
