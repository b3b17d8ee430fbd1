package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantai/config"
	"plantai/models"
	"plantai/services"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

var (
	interval   = flag.Duration("interval", time.Second, "Time between two readings of every probe")
	sensors    = flag.Int("sensors", 1, "Number of simulated probes (sensor IDs 1..n)")
	seed       = flag.Int64("seed", time.Now().UnixNano(), "Seed of the drying simulation")
	mqttBroker = flag.String("broker", "localhost:1883", "MQTT broker address (host:port)")
	mqttUser   = flag.String("user", "", "MQTT username")
	mqttPass   = flag.String("pass", "", "MQTT password")
	mqttTopic  = flag.String("topic", "plantai/soil", "MQTT topic to publish to")
	toFirebase = flag.Bool("firebase", false, "Push readings to the configured Firebase path instead of MQTT")
)

// publisher delivers one soil sample to the monitoring service
type publisher interface {
	publish(ctx context.Context, sample models.Sample) error
	close()
}

type mqttPublisher struct {
	client mqtt.Client
	topic  string
}

func (p *mqttPublisher) publish(ctx context.Context, sample models.Sample) error {
	payload, err := json.Marshal(sample)
	if err != nil {
		return fmt.Errorf("failed to marshal sample: %w", err)
	}
	token := p.client.Publish(p.topic, 1, false, payload)
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}

func (p *mqttPublisher) close() {
	p.client.Disconnect(250)
}

type firebasePublisher struct {
	source *services.FirebaseSource
}

func (p *firebasePublisher) publish(ctx context.Context, sample models.Sample) error {
	return p.source.Push(ctx, sample)
}

func (p *firebasePublisher) close() {
	p.source.Close()
}

func newMQTTPublisher(logger *zap.Logger) (*mqttPublisher, error) {
	// Initialize MQTT client (simulating the probe's microcontroller)
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", *mqttBroker))
	opts.SetClientID("plantai-probe-generator")
	opts.SetUsername(*mqttUser)
	opts.SetPassword(*mqttPass)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker", zap.String("broker", *mqttBroker))
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		logger.Error("MQTT connection lost", zap.Error(err))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}
	return &mqttPublisher{client: client, topic: *mqttTopic}, nil
}

func main() {
	flag.Parse()

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pub publisher
	target := "mqtt"
	if *toFirebase {
		cfg, err := config.LoadConfig()
		if err != nil {
			logger.Fatal("Failed to load config", zap.Error(err))
		}
		source, err := services.NewFirebaseSource(ctx, cfg.Firebase, logger)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase", zap.Error(err))
		}
		pub = &firebasePublisher{source: source}
		target = "firebase"
	} else {
		mp, err := newMQTTPublisher(logger)
		if err != nil {
			logger.Fatal("Failed to initialize MQTT", zap.Error(err))
		}
		pub = mp
	}
	defer pub.close()

	logger.Info("Soil probe generator started",
		zap.Int("sensors", *sensors),
		zap.Duration("interval", *interval),
		zap.String("target", target),
		zap.String("mqtt_topic", *mqttTopic),
	)
	logger.Info("Press Ctrl+C to stop gracefully")

	// One reading per cycle, so the service sees the raw drying curve
	sim := services.NewDummySource(config.SensorsConfig{ReadCycles: 1}, *seed, logger)

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping generator")
		cancel()
	}()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	messageCount := 0
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Shutting down gracefully",
				zap.Int("total_messages", messageCount),
				zap.Duration("total_uptime", time.Since(startTime)),
			)
			return

		case <-ticker.C:
			for id := 1; id <= *sensors; id++ {
				sample, err := sim.Read(ctx, models.Sensor{ID: uint(id)})
				if err != nil {
					logger.Error("Failed to simulate reading", zap.Int("sensor_id", id), zap.Error(err))
					continue
				}

				if err := pub.publish(ctx, sample); err != nil {
					logger.Error("Failed to publish sample",
						zap.Error(err),
						zap.Int("message_count", messageCount))
					continue
				}
				messageCount++

				logger.Debug("Published sample",
					zap.Uint("sensor_id", sample.SensorID),
					zap.Float64("moisture", sample.Moisture),
					zap.Float64("temperature", sample.Temperature))

				// Log every 100 messages
				if messageCount%100 == 0 {
					logger.Info("Samples published",
						zap.Int("count", messageCount),
						zap.Float64("rate", float64(messageCount)/time.Since(startTime).Seconds()),
					)
				}
			}
		}
	}
}
