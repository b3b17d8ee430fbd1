package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plantai/config"
	"plantai/database"
	"plantai/log"
	"plantai/services"

	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Initialize structured logger
	if err := log.Configure(cfg.Log.Level, cfg.Log.File); err != nil {
		panic("Failed to configure logger: " + err.Error())
	}
	logger := log.GetInstance()
	defer logger.Sync()

	// Open the measurement store
	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sensors, err := db.ListSensors(ctx)
	if err != nil {
		logger.Fatal("Failed to list sensors", zap.Error(err))
	}
	if len(sensors) == 0 {
		sensor, err := db.EnsureSensor(ctx, cfg.Sensors.DefaultAddress)
		if err != nil {
			logger.Fatal("Failed to register default sensor", zap.Error(err))
		}
		sensors = append(sensors, *sensor)
	}

	// Initialize services
	source, err := services.NewSensorSource(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize sensor source", zap.Error(err))
	}

	predictors := services.NewPredictors(db, services.TrainOptionsFromConfig(cfg.Model), logger)
	for _, sensor := range sensors {
		if _, err := predictors.Retrain(ctx, sensor.ID); err != nil {
			logger.Error("Startup training failed", zap.Uint("sensor_id", sensor.ID), zap.Error(err))
		}
	}

	detector := services.NewWateringDetector(db, cfg.Watering.Threshold, logger)
	labeler := services.NewDrynessLabeler(db, predictors, logger)
	weatherService := services.NewWeatherService(cfg.Weather, logger)

	// Telegram is optional, without it sensor timeouts are only logged
	var telegramService *services.TelegramService
	var healthService *services.SensorHealthService
	if cfg.Telegram.BotToken != "" {
		deps := services.CommandDeps{
			Store:      db,
			Sensors:    db,
			Predictors: predictors,
			Weather:    weatherService,
		}
		telegramService, err = services.NewTelegramService(cfg.Telegram, deps, logger)
		if err != nil {
			logger.Error("Failed to initialize Telegram service, continuing without it", zap.Error(err))
			telegramService = nil
		}
	}
	if telegramService != nil {
		healthService = services.NewSensorHealthService(cfg.Health.Timeout, telegramService, logger)
	} else {
		healthService = services.NewSensorHealthService(cfg.Health.Timeout, nil, logger)
	}
	for _, sensor := range sensors {
		healthService.Register(sensor.ID)
	}

	acquisition := services.NewAcquisitionService(services.AcquisitionOptions{
		Store:      db,
		Sensors:    db,
		Source:     source,
		Detector:   detector,
		Labeler:    labeler,
		Predictors: predictors,
		Health:     healthService,
		Interval:   cfg.Sensors.ReadInterval,
		Mode:       cfg.Sensors.Mode,
	}, logger)

	if telegramService != nil {
		telegramService.SetHealth(healthService)
		acquisition.AddListener(telegramService)
	}

	var rabbitMQService *services.RabbitMQService
	if cfg.RabbitMQ.URL != "" {
		rabbitMQService, err = services.NewRabbitMQService(cfg.RabbitMQ, logger)
		if err != nil {
			logger.Error("Failed to initialize RabbitMQ publisher, continuing without it", zap.Error(err))
		} else {
			acquisition.AddListener(rabbitMQService)
		}
	}

	// Send startup notification
	if telegramService != nil {
		if err := telegramService.SendStartupMessage(len(sensors), cfg.Sensors.Source); err != nil {
			logger.Warn("Failed to send startup message", zap.Error(err))
		}
	}

	logger.Info("PlantAI Monitoring Service started",
		zap.Int("sensors", len(sensors)),
		zap.String("source", cfg.Sensors.Source),
		zap.String("mode", cfg.Sensors.Mode),
		zap.Duration("interval", cfg.Sensors.ReadInterval),
		zap.Float64("watering_threshold", cfg.Watering.Threshold),
		zap.String("database", cfg.Database.Driver),
		zap.Bool("telegram", telegramService != nil),
		zap.Bool("rabbitmq", rabbitMQService != nil),
	)

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Channel to signal when cleanup is complete
	cleanupDone := make(chan bool, 1)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, stopping services")

		// Cancel context to stop all goroutines
		cancel()

		// Wait for cleanup to complete or timeout
		select {
		case <-cleanupDone:
			logger.Info("Cleanup completed successfully")
		case <-time.After(5 * time.Second):
			logger.Warn("Cleanup timeout, forcing exit")
		}

		logger.Info("PlantAI Monitoring Service stopped")
		os.Exit(0)
	}()

	go healthService.Start(ctx)
	if telegramService != nil {
		go telegramService.Listen(ctx)
	}

	// Blocks until the context is cancelled
	acquisition.Start(ctx)

	// Perform cleanup
	logger.Info("Starting cleanup")

	if err := source.Close(); err != nil {
		logger.Error("Error closing sensor source", zap.Error(err))
	} else {
		logger.Info("Sensor source closed")
	}

	if rabbitMQService != nil {
		if err := rabbitMQService.Close(); err != nil {
			logger.Error("Error closing RabbitMQ publisher", zap.Error(err))
		}
	}

	if err := db.Close(); err != nil {
		logger.Error("Error closing database", zap.Error(err))
	}

	// Signal cleanup completion
	cleanupDone <- true
}
