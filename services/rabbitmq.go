package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"plantai/config"
	"plantai/models"
)

// WateringRoutingKey is the routing key of published watering events
const WateringRoutingKey = "plantai.watering"

// amqpChannel is the part of *amqp.Channel the publisher uses
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQService publishes watering events to a durable topic exchange
type RabbitMQService struct {
	config    config.RabbitMQConfig
	conn      *amqp.Connection
	channel   amqpChannel
	logger    *zap.Logger
	mu        sync.Mutex
	isClosing bool
}

// NewRabbitMQService creates a new RabbitMQ publisher
func NewRabbitMQService(cfg config.RabbitMQConfig, logger *zap.Logger) (*RabbitMQService, error) {
	service := &RabbitMQService{
		config: cfg,
		logger: logger.Named("rabbitmq"),
	}

	if err := service.connect(); err != nil {
		return nil, err
	}

	return service, nil
}

// connect establishes connection to RabbitMQ and declares the exchange
func (r *RabbitMQService) connect() error {
	var conn *amqp.Connection
	var err error

	r.logger.Info("Connecting to RabbitMQ")

	maxRetries := 5
	for attempt := 1; attempt <= maxRetries; attempt++ {
		conn, err = amqp.Dial(r.config.URL)
		if err == nil {
			break
		}

		r.logger.Warn("Failed to connect to RabbitMQ",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ after %d attempts: %w", maxRetries, err)
	}

	r.logger.Info("Connected to RabbitMQ successfully")

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		r.config.Exchange, // name
		"topic",           // type
		true,              // durable
		false,             // auto-deleted
		false,             // internal
		false,             // no-wait
		nil,               // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	r.logger.Info("Exchange declared", zap.String("exchange", r.config.Exchange))

	r.mu.Lock()
	r.conn = conn
	r.channel = channel
	r.mu.Unlock()

	go r.handleReconnect(conn)

	return nil
}

// handleReconnect reconnects when the connection is lost
func (r *RabbitMQService) handleReconnect(conn *amqp.Connection) {
	closeErr := <-conn.NotifyClose(make(chan *amqp.Error, 1))

	r.mu.Lock()
	closing := r.isClosing
	r.mu.Unlock()
	if closing {
		r.logger.Info("RabbitMQ connection closed gracefully")
		return
	}

	r.logger.Error("RabbitMQ connection lost", zap.Error(closeErr))

	for {
		r.logger.Info("Attempting to reconnect to RabbitMQ...")
		err := r.connect()
		if err == nil {
			r.logger.Info("Successfully reconnected to RabbitMQ")
			return
		}

		r.logger.Error("Failed to reconnect", zap.Error(err))
		time.Sleep(5 * time.Second)
	}
}

// Publish sends a watering event as persistent JSON
func (r *RabbitMQService) Publish(ctx context.Context, event *models.WateringEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal watering event: %w", err)
	}

	r.mu.Lock()
	channel := r.channel
	r.mu.Unlock()
	if channel == nil {
		return fmt.Errorf("rabbitmq channel is not open")
	}

	err = channel.PublishWithContext(ctx,
		r.config.Exchange,  // exchange
		WateringRoutingKey, // routing key
		false,              // mandatory
		false,              // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	r.logger.Debug("Published watering event",
		zap.Uint("sensor_id", event.SensorID),
		zap.Int("archived", event.Archived))
	return nil
}

// OnWatering publishes the event
func (r *RabbitMQService) OnWatering(ctx context.Context, event *models.WateringEvent) error {
	return r.Publish(ctx, event)
}

// Close gracefully closes RabbitMQ connection
func (r *RabbitMQService) Close() error {
	r.mu.Lock()
	r.isClosing = true
	channel, conn := r.channel, r.conn
	r.mu.Unlock()

	r.logger.Info("Closing RabbitMQ connection")

	if channel != nil {
		if err := channel.Close(); err != nil {
			r.logger.Error("Error closing channel", zap.Error(err))
		}
	}

	if conn != nil {
		if err := conn.Close(); err != nil {
			r.logger.Error("Error closing connection", zap.Error(err))
			return err
		}
	}

	r.logger.Info("RabbitMQ connection closed")
	return nil
}
