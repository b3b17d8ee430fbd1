package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"plantai/config"
	"plantai/models"
)

// FirebaseSource reads soil samples that probes push to the Realtime
// Database under <path>/<push-id>
type FirebaseSource struct {
	client *db.Client
	path   string
	logger *zap.Logger

	mu       sync.Mutex
	consumed map[uint]time.Time
}

func NewFirebaseSource(ctx context.Context, cfg config.FirebaseConfig, logger *zap.Logger) (*FirebaseSource, error) {
	if cfg.DbUrl == "" || cfg.ServiceAccountJSON == "" {
		return nil, fmt.Errorf("firebase database url and service account are required")
	}

	conf := &firebase.Config{
		DatabaseURL: cfg.DbUrl,
	}
	opt := option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))
	app, err := firebase.NewApp(ctx, conf, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting database client: %w", err)
	}

	fs := &FirebaseSource{
		client:   client,
		path:     cfg.Path,
		logger:   logger.Named("firebase"),
		consumed: make(map[uint]time.Time),
	}

	if err := fs.testConnection(ctx); err != nil {
		fs.logger.Error("Firebase connection test failed", zap.Error(err))
		return nil, fmt.Errorf("firebase connection test failed: %w", err)
	}
	return fs, nil
}

// testConnection reads the sample path with retry
func (fs *FirebaseSource) testConnection(ctx context.Context) error {
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		fs.logger.Info("Testing Firebase connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		var data any
		err := fs.client.NewRef(fs.path).OrderByKey().LimitToLast(1).Get(ctx, &data)
		if err == nil {
			fs.logger.Info("Firebase connection successful")
			return nil
		}

		fs.logger.Warn("Firebase connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}
	return fmt.Errorf("failed to connect to Firebase after %d attempts", maxRetries)
}

// Read returns the newest sample of the sensor that has not been read yet
func (fs *FirebaseSource) Read(ctx context.Context, sensor models.Sensor) (models.Sample, error) {
	var data map[string]any
	query := fs.client.NewRef(fs.path).OrderByChild("sensor_id").EqualTo(sensor.ID)
	if err := query.Get(ctx, &data); err != nil {
		return models.Sample{}, fmt.Errorf("error getting soil data: %w", err)
	}

	latest, ok := fs.latestSample(sensor.ID, data)
	if !ok {
		return models.Sample{}, fmt.Errorf("sensor %d: %w", sensor.ID, ErrNoReading)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if !latest.Timestamp.After(fs.consumed[sensor.ID]) {
		return models.Sample{}, fmt.Errorf("sensor %d: %w", sensor.ID, ErrNoReading)
	}
	fs.consumed[sensor.ID] = latest.Timestamp
	return latest, nil
}

// latestSample picks the newest valid record of the sensor
func (fs *FirebaseSource) latestSample(sensorID uint, data map[string]any) (models.Sample, bool) {
	var latest models.Sample
	found := false
	for pushID, raw := range data {
		record, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		sample, ok := fs.parseSample(pushID, record)
		if !ok || sample.SensorID != sensorID {
			continue
		}
		if !found || sample.Timestamp.After(latest.Timestamp) {
			latest = sample
			found = true
		}
	}
	return latest, found
}

// parseSample converts a Firebase record to a Sample
func (fs *FirebaseSource) parseSample(pushID string, data map[string]any) (models.Sample, bool) {
	sensorID, idOk := data["sensor_id"].(float64)
	moisture, moistOk := data["moisture"].(float64)
	temperature, tempOk := data["temperature"].(float64)
	timestampStr, timeOk := data["timestamp"].(string)

	if !idOk || !moistOk || !timeOk {
		fs.logger.Warn("Invalid soil data format", zap.String("record_id", pushID))
		return models.Sample{}, false
	}
	if !tempOk {
		temperature = 0
	}

	timestamp, err := time.Parse(time.RFC3339, timestampStr)
	if err != nil {
		fs.logger.Warn("Invalid timestamp format",
			zap.String("record_id", pushID),
			zap.Error(err))
		return models.Sample{}, false
	}

	return models.Sample{
		SensorID:    uint(sensorID),
		Moisture:    moisture,
		Temperature: temperature,
		Timestamp:   timestamp,
	}, true
}

// Push appends a sample under the configured path
func (fs *FirebaseSource) Push(ctx context.Context, sample models.Sample) error {
	record := map[string]any{
		"sensor_id":   sample.SensorID,
		"moisture":    sample.Moisture,
		"temperature": sample.Temperature,
		"timestamp":   sample.Timestamp.Format(time.RFC3339),
	}
	if _, err := fs.client.NewRef(fs.path).Push(ctx, record); err != nil {
		return fmt.Errorf("error pushing soil data: %w", err)
	}
	return nil
}

// Close closes the Firebase connection
func (fs *FirebaseSource) Close() error {
	fs.logger.Info("Closing Firebase source")
	// Firebase client doesn't require explicit closing
	return nil
}
