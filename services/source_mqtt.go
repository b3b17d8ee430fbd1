package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"plantai/config"
	"plantai/models"
)

// MQTTSource keeps the latest sample each remote probe published
type MQTTSource struct {
	client mqtt.Client
	topic  string
	logger *zap.Logger

	mu       sync.Mutex
	latest   map[uint]models.Sample
	consumed map[uint]time.Time
}

func NewMQTTSource(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTSource, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("mqtt broker is not configured")
	}
	s := newMQTTCache(cfg.Topic, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	// Subscriptions are lost on reconnect with a clean session
	opts.OnConnect = func(client mqtt.Client) {
		s.logger.Info("Connected to MQTT broker", zap.String("broker", cfg.Broker))
		token := client.Subscribe(s.topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			s.handleMessage(msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			s.logger.Error("Failed to subscribe", zap.String("topic", s.topic), zap.Error(token.Error()))
			return
		}
		s.logger.Info("Subscribed to soil readings", zap.String("topic", s.topic))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		s.logger.Error("MQTT connection lost", zap.Error(err))
	}

	s.client = mqtt.NewClient(opts)

	maxRetries := 3
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		token := s.client.Connect()
		if token.Wait() && token.Error() == nil {
			return s, nil
		}
		err = token.Error()
		s.logger.Warn("MQTT connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))
		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return nil, fmt.Errorf("failed to connect to MQTT broker after %d attempts: %w", maxRetries, err)
}

func newMQTTCache(topic string, logger *zap.Logger) *MQTTSource {
	return &MQTTSource{
		topic:    topic,
		logger:   logger.Named("mqtt"),
		latest:   make(map[uint]models.Sample),
		consumed: make(map[uint]time.Time),
	}
}

// handleMessage stores a published sample if it is newer than the cached one
func (s *MQTTSource) handleMessage(payload []byte) {
	var sample models.Sample
	if err := json.Unmarshal(payload, &sample); err != nil {
		s.logger.Warn("Invalid soil reading payload", zap.Error(err))
		return
	}
	if sample.SensorID == 0 {
		s.logger.Warn("Soil reading without sensor_id")
		return
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.latest[sample.SensorID]; ok && !sample.Timestamp.After(prev.Timestamp) {
		return
	}
	s.latest[sample.SensorID] = sample
	s.logger.Debug("Soil reading received",
		zap.Uint("sensor_id", sample.SensorID),
		zap.Float64("moisture", sample.Moisture),
		zap.Float64("temperature", sample.Temperature))
}

// Read returns the newest published sample of the sensor once
func (s *MQTTSource) Read(ctx context.Context, sensor models.Sensor) (models.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sample, ok := s.latest[sensor.ID]
	if !ok || !sample.Timestamp.After(s.consumed[sensor.ID]) {
		return models.Sample{}, fmt.Errorf("sensor %d: %w", sensor.ID, ErrNoReading)
	}
	s.consumed[sensor.ID] = sample.Timestamp
	return sample, nil
}

func (s *MQTTSource) Close() error {
	if s.client != nil && s.client.IsConnected() {
		s.client.Unsubscribe(s.topic).Wait()
		s.client.Disconnect(250)
	}
	s.logger.Info("MQTT source closed")
	return nil
}
