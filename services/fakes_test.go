package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"plantai/models"
)

var (
	errUpdateFailed = errors.New("disk full")
	base            = time.Date(2025, 10, 10, 8, 0, 0, 0, time.UTC)
)

// memStore is an in-memory MeasurementStore with optional failure injection
type memStore struct {
	mu           sync.Mutex
	nextID       uint
	measurements []models.Measurement
	sensors      []models.Sensor
	updates      int
	failAfter    int // fail the update after this many successful ones, -1 never
}

func newMemStore(sensors ...models.Sensor) *memStore {
	return &memStore{sensors: sensors, failAfter: -1}
}

func (s *memStore) InsertMeasurement(ctx context.Context, m *models.Measurement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.measurements = append(s.measurements, *m)
	return nil
}

func (s *memStore) UpdateMinutesUntilDry(ctx context.Context, id uint, minutes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAfter >= 0 && s.updates >= s.failAfter {
		return errUpdateFailed
	}
	for i := range s.measurements {
		if s.measurements[i].ID == id {
			s.measurements[i].MinutesUntilDry = minutes
			s.updates++
			return nil
		}
	}
	return errors.New("not found")
}

func (s *memStore) filter(sensorID uint, keep func(m models.Measurement) bool) []models.Measurement {
	var out []models.Measurement
	for _, m := range s.measurements {
		if m.SensorID == sensorID && keep(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func labeled(m models.Measurement) bool   { return m.IsLabeled() }
func unlabeled(m models.Measurement) bool { return !m.IsLabeled() }

func (s *memStore) MostRecentUnlabeled(ctx context.Context, sensorID uint) (*models.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.filter(sensorID, unlabeled)
	if len(list) == 0 {
		return nil, nil
	}
	m := list[len(list)-1]
	return &m, nil
}

func (s *memStore) AllUnlabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(sensorID, unlabeled), nil
}

func (s *memStore) AllLabeled(ctx context.Context, sensorID uint) ([]models.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter(sensorID, labeled), nil
}

func (s *memStore) ListSensors(ctx context.Context) ([]models.Sensor, error) {
	return s.sensors, nil
}

func (s *memStore) ListMeasurements(ctx context.Context, sensorID uint, limit int) ([]models.Measurement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.filter(sensorID, func(models.Measurement) bool { return true })
	if limit >= 0 && len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list, nil
}

func (s *memStore) ImportMeasurements(ctx context.Context, list []models.Measurement) error {
	for i := range list {
		if err := s.InsertMeasurement(ctx, &list[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *memStore) insert(sensorID uint, moisture float64, at time.Time) *models.Measurement {
	m := models.NewMeasurement(sensorID, moisture, 21, at)
	s.InsertMeasurement(context.Background(), m)
	return m
}

func (s *memStore) get(id uint) models.Measurement {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.measurements {
		if m.ID == id {
			return m
		}
	}
	return models.Measurement{}
}

// scriptedSource returns queued samples in order
type scriptedSource struct {
	samples []models.Sample
	err     error
}

func (s *scriptedSource) Read(ctx context.Context, sensor models.Sensor) (models.Sample, error) {
	if s.err != nil {
		return models.Sample{}, s.err
	}
	if len(s.samples) == 0 {
		return models.Sample{}, ErrNoReading
	}
	sample := s.samples[0]
	s.samples = s.samples[1:]
	return sample, nil
}

func (s *scriptedSource) Close() error { return nil }

type recordingListener struct {
	events []*models.WateringEvent
}

func (l *recordingListener) OnWatering(ctx context.Context, event *models.WateringEvent) error {
	l.events = append(l.events, event)
	return nil
}

type countingRetrainer struct {
	calls int
}

func (r *countingRetrainer) Retrain(ctx context.Context, sensorID uint) (models.TrainResult, error) {
	r.calls++
	return models.TrainResult{SensorID: sensorID, Skipped: true}, nil
}

type failingRetrainer struct {
	err error
}

func (r failingRetrainer) Retrain(ctx context.Context, sensorID uint) (models.TrainResult, error) {
	return models.TrainResult{}, r.err
}
