package services

import (
	"context"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"plantai/config"
	"plantai/models"
)

const (
	dummyWetMoisture = 42.0
	dummyDryMoisture = 12.0
)

type dummyPlant struct {
	moisture    float64
	temperature float64
}

// DummySource simulates a drying plant that gets watered whenever it runs
// dry. Used on machines without an I2C bus.
type DummySource struct {
	*smt50
	logger *zap.Logger

	mu     sync.Mutex
	rng    *rand.Rand
	plants map[uint]*dummyPlant
}

func NewDummySource(cfg config.SensorsConfig, seed int64, logger *zap.Logger) *DummySource {
	s := &DummySource{
		logger: logger.Named("dummy"),
		rng:    rand.New(rand.NewSource(seed)),
		plants: make(map[uint]*dummyPlant),
	}
	s.smt50 = newSMT50(s, cfg.ReadCycles)
	s.smt50.pause = 0
	s.logger.Info("Using simulated sensor readings")
	return s
}

// step advances the simulation of one sensor by one read
func (s *DummySource) step(sensorID uint) *dummyPlant {
	p, ok := s.plants[sensorID]
	if !ok {
		p = &dummyPlant{moisture: dummyWetMoisture, temperature: 21}
		s.plants[sensorID] = p
		return p
	}
	p.moisture -= 0.05 + s.rng.Float64()*0.1
	if p.moisture < dummyDryMoisture {
		p.moisture = dummyWetMoisture
		s.logger.Info("Simulated watering", zap.Uint("sensor_id", sensorID))
	}
	p.temperature = 21 + s.rng.NormFloat64()*0.3
	return p
}

func (s *DummySource) voltages(ctx context.Context, sensor models.Sensor) (float64, float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.step(sensor.ID)
	return p.moisture * 3.0 / 50.0, p.temperature/100.0 + 0.5, nil
}

func (s *DummySource) Close() error {
	return nil
}
