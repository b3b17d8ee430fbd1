package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"plantai/config"
	"plantai/forest"
	"plantai/models"
)

// ErrModelNotTrained is returned by predictions before the first successful
// training of a sensor
var ErrModelNotTrained = errors.New("dryness model has not been trained")

// LabeledSource provides the training data of a sensor
type LabeledSource interface {
	AllLabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error)
}

// TrainOptions configure forest growth and evaluation
type TrainOptions struct {
	Forest       forest.Options
	TestFraction float64
}

// TrainOptionsFromConfig maps the model section of the configuration
func TrainOptionsFromConfig(cfg config.ModelConfig) TrainOptions {
	return TrainOptions{
		Forest: forest.Options{
			Trees:    cfg.Trees,
			MaxDepth: cfg.MaxDepth,
			MinLeaf:  cfg.MinLeaf,
			Seed:     cfg.Seed,
		},
		TestFraction: cfg.TestFraction,
	}
}

// DefaultTrainOptions holds out 20% and grows 100 trees seeded with 42
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{Forest: forest.DefaultOptions(), TestFraction: 0.2}
}

// DrynessModel maps soil moisture to predicted minutes until dry
type DrynessModel struct {
	forest *forest.Forest
}

// PredictMinutes returns the raw prediction in minutes
func (m *DrynessModel) PredictMinutes(moisture float64) float64 {
	return m.forest.Predict(moisture)
}

// Predict returns the time until the soil is dry
func (m *DrynessModel) Predict(moisture float64) models.TimeUntilDry {
	return models.TimeUntilDryFromMinutes(m.PredictMinutes(moisture))
}

// TrainModel fits a model on every archived measurement of the sensor. With
// no archived data the result is marked skipped and the model is nil.
func TrainModel(ctx context.Context, store LabeledSource, sensorID uint, opts TrainOptions) (*DrynessModel, models.TrainResult, error) {
	result := models.TrainResult{SensorID: sensorID, TrainedAt: time.Now()}

	list, err := store.AllLabeled(ctx, sensorID)
	if err != nil {
		return nil, result, fmt.Errorf("error loading training data: %w", err)
	}
	if len(list) == 0 {
		result.Skipped = true
		return nil, result, nil
	}

	x := make([]float64, len(list))
	y := make([]float64, len(list))
	for i, m := range list {
		x[i] = m.Moisture
		y[i] = float64(m.MinutesUntilDry)
	}

	train, test := forest.TrainTestSplit(len(list), opts.TestFraction, opts.Forest.Seed)
	trainX, trainY := pick(x, train), pick(y, train)
	testX, testY := pick(x, test), pick(y, test)
	if len(test) == 0 {
		// Too little data to hold anything out, evaluate on the training set
		testX, testY = trainX, trainY
	}

	f, err := forest.Fit(trainX, trainY, opts.Forest)
	if err != nil {
		return nil, result, fmt.Errorf("error fitting model: %w", err)
	}

	pred := f.PredictAll(testX)
	result.Samples = len(list)
	result.TrainSamples = len(train)
	result.TestSamples = len(test)
	result.MAE = forest.MeanAbsoluteError(testY, pred)
	result.R2 = forest.R2Score(testY, pred)
	return &DrynessModel{forest: f}, result, nil
}

func pick(values []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = values[j]
	}
	return out
}

// DrynessPredictor holds the current model of one sensor
type DrynessPredictor struct {
	store    LabeledSource
	sensorID uint
	opts     TrainOptions
	logger   *zap.Logger

	mu    sync.RWMutex
	model *DrynessModel
	last  models.TrainResult
}

func NewDrynessPredictor(store LabeledSource, sensorID uint, opts TrainOptions, logger *zap.Logger) *DrynessPredictor {
	return &DrynessPredictor{
		store:    store,
		sensorID: sensorID,
		opts:     opts,
		logger:   logger.Named("predictor").With(zap.Uint("sensor_id", sensorID)),
	}
}

// Train replaces the model with one fitted on the current archive. A skipped
// training keeps the previous model.
func (p *DrynessPredictor) Train(ctx context.Context) (models.TrainResult, error) {
	model, result, err := TrainModel(ctx, p.store, p.sensorID, p.opts)
	if err != nil {
		p.logger.Error("Training failed", zap.Error(err))
		return result, err
	}
	if result.Skipped {
		p.logger.Warn("No archived measurements, training skipped")
		return result, nil
	}
	if result.TestSamples == 0 {
		p.logger.Info("Too few samples for a hold-out set, evaluated on training data",
			zap.Int("samples", result.Samples))
	}

	p.mu.Lock()
	p.model = model
	p.last = result
	p.mu.Unlock()

	p.logger.Info("Model trained",
		zap.Int("samples", result.Samples),
		zap.Int("train_samples", result.TrainSamples),
		zap.Int("test_samples", result.TestSamples),
		zap.Float64("mae_minutes", result.MAE),
		zap.Float64("r2", result.R2))
	return result, nil
}

// Predict returns the time until dry for the given moisture
func (p *DrynessPredictor) Predict(moisture float64) (models.TimeUntilDry, error) {
	p.mu.RLock()
	model := p.model
	p.mu.RUnlock()
	if model == nil {
		return models.TimeUntilDry{}, ErrModelNotTrained
	}
	return model.Predict(moisture), nil
}

// Trained reports whether a model is available
func (p *DrynessPredictor) Trained() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model != nil
}

// LastTraining returns the result of the last non-skipped training
func (p *DrynessPredictor) LastTraining() models.TrainResult {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Predictors keeps one DrynessPredictor per sensor
type Predictors struct {
	store  LabeledSource
	opts   TrainOptions
	logger *zap.Logger

	mu       sync.Mutex
	bySensor map[uint]*DrynessPredictor
}

func NewPredictors(store LabeledSource, opts TrainOptions, logger *zap.Logger) *Predictors {
	return &Predictors{
		store:    store,
		opts:     opts,
		logger:   logger,
		bySensor: make(map[uint]*DrynessPredictor),
	}
}

// Get returns the predictor of a sensor, creating it on first use
func (ps *Predictors) Get(sensorID uint) *DrynessPredictor {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	p, ok := ps.bySensor[sensorID]
	if !ok {
		p = NewDrynessPredictor(ps.store, sensorID, ps.opts, ps.logger)
		ps.bySensor[sensorID] = p
	}
	return p
}

// Retrain trains the model of the given sensor
func (ps *Predictors) Retrain(ctx context.Context, sensorID uint) (models.TrainResult, error) {
	return ps.Get(sensorID).Train(ctx)
}

// Predict predicts with the model of the given sensor. Sensors that were
// never trained are not added to the set.
func (ps *Predictors) Predict(sensorID uint, moisture float64) (models.TimeUntilDry, error) {
	ps.mu.Lock()
	p, ok := ps.bySensor[sensorID]
	ps.mu.Unlock()
	if !ok {
		return models.TimeUntilDry{}, ErrModelNotTrained
	}
	return p.Predict(moisture)
}

// Len returns the number of sensors with a predictor
func (ps *Predictors) Len() int {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return len(ps.bySensor)
}
