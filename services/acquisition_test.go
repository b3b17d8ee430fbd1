package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"plantai/models"
)

func newTestAcquisition(t *testing.T, store *memStore, source SensorSource) (*AcquisitionService, *recordingListener) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	predictors := NewPredictors(store, DefaultTrainOptions(), logger)
	a := NewAcquisitionService(AcquisitionOptions{
		Store:      store,
		Sensors:    store,
		Source:     source,
		Detector:   NewWateringDetector(store, 10, logger),
		Labeler:    NewDrynessLabeler(store, predictors, logger),
		Predictors: predictors,
		Health:     NewSensorHealthService(time.Hour, nil, logger),
		Interval:   time.Minute,
	}, logger)
	listener := &recordingListener{}
	a.AddListener(listener)
	return a, listener
}

func TestWateringRoundTrip(t *testing.T) {
	sensor := models.Sensor{ID: 1, Address: 0x48}
	store := newMemStore(sensor)
	source := &scriptedSource{samples: []models.Sample{
		{Moisture: 20, Temperature: 21, Timestamp: base},
		{Moisture: 25, Temperature: 21, Timestamp: base.Add(10 * time.Minute)},
		{Moisture: 30, Temperature: 21, Timestamp: base.Add(20 * time.Minute)},
		{Moisture: 42, Temperature: 21, Timestamp: base.Add(30 * time.Minute)},
	}}
	a, listener := newTestAcquisition(t, store, source)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		event, err := a.Process(ctx, sensor)
		if err != nil || event != nil {
			t.Fatalf("reading %d: event=%+v err=%v", i, event, err)
		}
	}
	unlabeledList, _ := store.AllUnlabeled(ctx, 1)
	if len(unlabeledList) != 3 {
		t.Fatalf("expected 3 unlabeled readings, got %d", len(unlabeledList))
	}

	event, err := a.Process(ctx, sensor)
	if err != nil {
		t.Fatalf("watering reading failed: %v", err)
	}
	if event == nil {
		t.Fatal("expected a watering event")
	}
	if event.ID == "" || event.Archived != 3 || event.PreviousMoisture != 30 || event.Moisture != 42 {
		t.Fatalf("unexpected event %+v", event)
	}
	if !event.WateredAt.Equal(base.Add(30 * time.Minute)) {
		t.Fatalf("unexpected watering time %v", event.WateredAt)
	}
	if event.Training.Skipped || event.Training.Samples != 3 {
		t.Fatalf("expected training on 3 samples, got %+v", event.Training)
	}
	if event.Prediction == nil {
		t.Fatal("expected a prediction for the new reading")
	}

	labeledList, _ := store.AllLabeled(ctx, 1)
	want := []int{30, 20, 10}
	if len(labeledList) != len(want) {
		t.Fatalf("expected %d labeled readings, got %d", len(want), len(labeledList))
	}
	for i, m := range labeledList {
		if m.MinutesUntilDry != want[i] {
			t.Fatalf("label %d = %d, want %d", i, m.MinutesUntilDry, want[i])
		}
	}

	current, _ := store.MostRecentUnlabeled(ctx, 1)
	if current == nil || current.Moisture != 42 {
		t.Fatalf("the watering reading must stay unlabeled, got %+v", current)
	}
	unlabeledList, _ = store.AllUnlabeled(ctx, 1)
	if len(unlabeledList) != 1 {
		t.Fatalf("expected only the new reading unlabeled, got %d", len(unlabeledList))
	}

	if len(listener.events) != 1 || listener.events[0] != event {
		t.Fatalf("listener got %d events", len(listener.events))
	}

	prediction, err := a.predictors.Predict(1, 30)
	if err != nil {
		t.Fatalf("predict failed: %v", err)
	}
	if prediction.Days < 0 || prediction.Hours < 0 || prediction.Hours >= 24 {
		t.Fatalf("invalid prediction %+v", prediction)
	}
}

func TestProcessWithoutNewReading(t *testing.T) {
	sensor := models.Sensor{ID: 1}
	store := newMemStore(sensor)
	a, _ := newTestAcquisition(t, store, &scriptedSource{})

	event, err := a.Process(context.Background(), sensor)
	if err != nil || event != nil {
		t.Fatalf("missing reading is not an error: event=%+v err=%v", event, err)
	}
	health, ok := a.health.GetSensorHealth(1)
	if !ok || health.Failures != 1 {
		t.Fatalf("failure must be reported to health monitoring: %+v", health)
	}
}

func TestRunOnceContinuesAfterFailure(t *testing.T) {
	readErr := errors.New("bus error")
	store := newMemStore(models.Sensor{ID: 1}, models.Sensor{ID: 2})
	a, _ := newTestAcquisition(t, store, &scriptedSource{err: readErr})

	err := a.RunOnce(context.Background())
	if !errors.Is(err, readErr) {
		t.Fatalf("expected read error, got %v", err)
	}
	for _, id := range []uint{1, 2} {
		if h, ok := a.health.GetSensorHealth(id); !ok || h.Failures != 1 {
			t.Fatalf("sensor %d was not attempted: %+v", id, h)
		}
	}
}

func TestArchiveFailureKeepsReadingOut(t *testing.T) {
	sensor := models.Sensor{ID: 1}
	store := newMemStore(sensor)
	store.insert(1, 20, base)
	store.failAfter = 0
	source := &scriptedSource{samples: []models.Sample{
		{Moisture: 40, Timestamp: base.Add(time.Hour)},
	}}
	a, listener := newTestAcquisition(t, store, source)

	if _, err := a.Process(context.Background(), sensor); !errors.Is(err, errUpdateFailed) {
		t.Fatalf("expected update failure, got %v", err)
	}
	current, _ := store.MostRecentUnlabeled(context.Background(), 1)
	if current == nil || current.Moisture != 20 {
		t.Fatalf("reading after a failed archive must not be stored, current=%+v", current)
	}
	if len(listener.events) != 0 {
		t.Fatal("no event may be published after a failed archive")
	}
}

func TestRetrainFailureStillPublishes(t *testing.T) {
	sensor := models.Sensor{ID: 1}
	store := newMemStore(sensor)
	store.insert(1, 20, base)
	store.insert(1, 25, base.Add(10*time.Minute))
	source := &scriptedSource{samples: []models.Sample{
		{Moisture: 42, Temperature: 21, Timestamp: base.Add(30 * time.Minute)},
	}}
	logger := zaptest.NewLogger(t)
	predictors := NewPredictors(store, DefaultTrainOptions(), logger)
	a := NewAcquisitionService(AcquisitionOptions{
		Store:      store,
		Sensors:    store,
		Source:     source,
		Detector:   NewWateringDetector(store, 10, logger),
		Labeler:    NewDrynessLabeler(store, failingRetrainer{err: errors.New("no memory")}, logger),
		Predictors: predictors,
		Health:     NewSensorHealthService(time.Hour, nil, logger),
		Interval:   time.Minute,
	}, logger)
	listener := &recordingListener{}
	a.AddListener(listener)
	ctx := context.Background()

	event, err := a.Process(ctx, sensor)
	if err != nil {
		t.Fatalf("a failed retrain must not fail the reading: %v", err)
	}
	if event == nil || event.Archived != 2 || event.Training.Error == "" {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Prediction != nil {
		t.Fatal("no prediction without a model")
	}
	current, _ := store.MostRecentUnlabeled(ctx, 1)
	if current == nil || current.Moisture != 42 {
		t.Fatalf("the watering reading must be stored, current=%+v", current)
	}
	if len(listener.events) != 1 || listener.events[0] != event {
		t.Fatalf("listener got %d events", len(listener.events))
	}
}
