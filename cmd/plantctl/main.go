package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"plantai/config"
	"plantai/database"
	"plantai/log"
	"plantai/services"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic("Failed to load config: " + err.Error())
	}

	// Only warnings reach the terminal so they do not interleave with prompts
	if err := log.Configure("warn", cfg.Log.File); err != nil {
		panic("Failed to configure logger: " + err.Error())
	}
	logger := log.GetInstance().Named("plantctl")
	defer logger.Sync()

	db, err := database.Open(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	deps := services.CommandDeps{
		Store:      db,
		Sensors:    db,
		Predictors: services.NewPredictors(db, services.TrainOptionsFromConfig(cfg.Model), logger),
		Weather:    services.NewWeatherService(cfg.Weather, logger),
	}

	c := newConsole(db, deps, cfg.CSV.Import, cfg.CSV.Export, os.Stdin, os.Stdout, logger)
	if err := c.Run(ctx); err != nil {
		logger.Error("Console stopped", zap.Error(err))
	}
}
