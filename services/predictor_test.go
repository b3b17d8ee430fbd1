package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"plantai/config"
	"plantai/models"
)

func labeledStore(sensorID uint, n int) *memStore {
	store := newMemStore()
	for i := 0; i < n; i++ {
		m := models.NewMeasurement(sensorID, 45-float64(i), 21, base.Add(time.Duration(i)*time.Hour))
		m.MinutesUntilDry = (n - i) * 60
		store.InsertMeasurement(context.Background(), m)
	}
	return store
}

func TestTrainModelSkipsWithoutData(t *testing.T) {
	model, result, err := TrainModel(context.Background(), newMemStore(), 1, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if model != nil || !result.Skipped {
		t.Fatalf("expected skipped training, got %+v", result)
	}
}

func TestTrainModel(t *testing.T) {
	store := labeledStore(1, 30)
	model, result, err := TrainModel(context.Background(), store, 1, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if model == nil || result.Skipped {
		t.Fatal("expected a trained model")
	}
	if result.Samples != 30 || result.TrainSamples != 24 || result.TestSamples != 6 {
		t.Fatalf("unexpected split %+v", result)
	}
	if result.MAE < 0 || result.R2 > 1 {
		t.Fatalf("invalid metrics %+v", result)
	}

	// Wetter soil takes longer to dry
	if model.PredictMinutes(44) <= model.PredictMinutes(20) {
		t.Fatal("prediction must decrease with moisture")
	}
}

func TestTrainModelSingleSample(t *testing.T) {
	store := labeledStore(1, 1)
	model, result, err := TrainModel(context.Background(), store, 1, DefaultTrainOptions())
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if result.TrainSamples != 1 || result.TestSamples != 0 {
		t.Fatalf("expected in-sample evaluation, got %+v", result)
	}
	if result.MAE != 0 || result.R2 != 1 {
		t.Fatalf("single sample must fit exactly, got %+v", result)
	}
	if got := model.Predict(45); got != (models.TimeUntilDry{Days: 0, Hours: 1}) {
		t.Fatalf("unexpected prediction %+v", got)
	}
}

func TestPredictorLifecycle(t *testing.T) {
	store := newMemStore()
	p := NewDrynessPredictor(store, 1, DefaultTrainOptions(), zaptest.NewLogger(t))

	if _, err := p.Predict(30); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("expected ErrModelNotTrained, got %v", err)
	}

	result, err := p.Train(context.Background())
	if err != nil || !result.Skipped || p.Trained() {
		t.Fatalf("empty training must be skipped: %+v err=%v", result, err)
	}

	filled := labeledStore(1, 20)
	p.store = filled
	if _, err := p.Train(context.Background()); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	first, err := p.Predict(30)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if first.Days < 0 || first.Hours < 0 || first.Hours >= 24 {
		t.Fatalf("invalid prediction %+v", first)
	}

	// A later skipped training keeps the model
	p.store = newMemStore()
	if _, err := p.Train(context.Background()); err != nil {
		t.Fatalf("train failed: %v", err)
	}
	second, err := p.Predict(30)
	if err != nil || second != first {
		t.Fatalf("model changed after skipped training: %+v err=%v", second, err)
	}
	if p.LastTraining().Samples != 20 {
		t.Fatalf("unexpected last training %+v", p.LastTraining())
	}
}

func TestPredictorsPerSensor(t *testing.T) {
	store := labeledStore(1, 10)
	ps := NewPredictors(store, DefaultTrainOptions(), zaptest.NewLogger(t))

	if _, err := ps.Retrain(context.Background(), 1); err != nil {
		t.Fatalf("retrain failed: %v", err)
	}
	if _, err := ps.Predict(1, 30); err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if _, err := ps.Predict(2, 30); !errors.Is(err, ErrModelNotTrained) {
		t.Fatalf("sensor 2 has no model, got %v", err)
	}
	for id := uint(100); id < 110; id++ {
		ps.Predict(id, 30)
	}
	if ps.Len() != 1 {
		t.Fatalf("predicting must not add sensors, have %d", ps.Len())
	}
	if ps.Get(1) != ps.Get(1) {
		t.Fatal("predictors must be reused")
	}
}

func TestTrainOptionsFromConfig(t *testing.T) {
	opts := TrainOptionsFromConfig(config.Default().Model)
	if opts.Forest.Trees != 100 || opts.Forest.Seed != 42 || opts.TestFraction != 0.2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}
