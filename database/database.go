package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"plantai/config"
	"plantai/models"
)

// ErrNotFound is returned when an update or delete matched no row
var ErrNotFound = errors.New("no matching entry found")

// Database wraps the gorm connection used by every store operation
type Database struct {
	DB     *gorm.DB
	Driver string
	logger *zap.Logger
}

// Open connects to the configured backend. SQLite runs over a single
// connection so the acquisition loop and front ends never interleave writes.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(sqliteDSN(cfg.DSN))
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("error opening the database: %w", err)
	}

	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("error getting sql handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
	}

	d := &Database{
		DB:     db,
		Driver: cfg.Driver,
		logger: logger.Named("database"),
	}
	d.logger.Info("Connected to database", zap.String("driver", cfg.Driver))
	return d, nil
}

// sqliteDSN adds a busy timeout so a second process (the console) waits for
// the lock instead of failing
func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=busy_timeout(5000)"
}

// Migrate creates or updates all tables
func (d *Database) Migrate() error {
	if err := d.DB.AutoMigrate(&models.Sensor{}, &models.Species{}, &models.Plant{}, &models.Measurement{}); err != nil {
		return fmt.Errorf("error performing database migration: %w", err)
	}
	d.logger.Debug("Database migrated")
	return nil
}

// Close releases the underlying connection pool
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
