package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"plantai/config"
	"plantai/models"
)

// SMT50 moisture is wired to channel 0 and temperature to channel 1 of an
// ADS1115 running at the 4.096 V gain
const adsFullScale = 4096 * physic.MilliVolt

type adsPins struct {
	moisture    analog.PinADC
	temperature analog.PinADC
}

// I2CSource reads SMT50 probes through ADS1115 converters, one per sensor
// address
type I2CSource struct {
	*smt50
	bus    i2c.BusCloser
	logger *zap.Logger

	mu   sync.Mutex
	pins map[int]*adsPins
}

func NewI2CSource(cfg config.SensorsConfig, logger *zap.Logger) (*I2CSource, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("error initializing host drivers: %w", err)
	}
	bus, err := i2creg.Open(cfg.I2CBus)
	if err != nil {
		return nil, fmt.Errorf("error opening i2c bus %q: %w", cfg.I2CBus, err)
	}

	s := &I2CSource{
		bus:    bus,
		logger: logger.Named("i2c"),
		pins:   make(map[int]*adsPins),
	}
	s.smt50 = newSMT50(s, cfg.ReadCycles)
	s.logger.Info("I2C bus opened", zap.String("bus", bus.String()))
	return s, nil
}

func (s *I2CSource) pinsFor(address int) (*adsPins, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.pins[address]; ok {
		return p, nil
	}

	adc, err := ads1x15.NewADS1115(s.bus, &ads1x15.Opts{I2cAddress: uint16(address)})
	if err != nil {
		return nil, fmt.Errorf("error opening ADS1115 at 0x%02x: %w", address, err)
	}
	moisture, err := adc.PinForChannel(ads1x15.Channel0, adsFullScale, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		return nil, fmt.Errorf("error opening moisture channel: %w", err)
	}
	temperature, err := adc.PinForChannel(ads1x15.Channel1, adsFullScale, 1*physic.Hertz, ads1x15.SaveEnergy)
	if err != nil {
		moisture.Halt()
		return nil, fmt.Errorf("error opening temperature channel: %w", err)
	}

	p := &adsPins{moisture: moisture, temperature: temperature}
	s.pins[address] = p
	s.logger.Info("ADS1115 initialized", zap.String("address", fmt.Sprintf("0x%02x", address)))
	return p, nil
}

func (s *I2CSource) voltages(ctx context.Context, sensor models.Sensor) (float64, float64, error) {
	p, err := s.pinsFor(sensor.Address)
	if err != nil {
		return 0, 0, err
	}
	m, err := p.moisture.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("error reading moisture voltage: %w", err)
	}
	t, err := p.temperature.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("error reading temperature voltage: %w", err)
	}
	return volts(m.V), volts(t.V), nil
}

func volts(v physic.ElectricPotential) float64 {
	return float64(v) / float64(physic.Volt)
}

// Close halts every opened channel and releases the bus
func (s *I2CSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr, p := range s.pins {
		if err := p.moisture.Halt(); err != nil {
			s.logger.Warn("Error halting moisture channel", zap.Int("address", addr), zap.Error(err))
		}
		if err := p.temperature.Halt(); err != nil {
			s.logger.Warn("Error halting temperature channel", zap.Int("address", addr), zap.Error(err))
		}
	}
	return s.bus.Close()
}
