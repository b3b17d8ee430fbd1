package models

import (
	"strings"
	"testing"
	"time"
)

var testTime = time.Date(2025, 10, 10, 8, 30, 0, 0, time.UTC)

func TestDescribe(t *testing.T) {
	entities := []Entity{
		&Sensor{ID: 1, Address: 0x48},
		&Species{ID: 2, Name: "Monstera", MinMoisture: 15},
		&Plant{ID: 3, SpeciesID: 2, SensorID: 1, Name: "Living room"},
		&Measurement{ID: 4, SensorID: 1, Moisture: 21.5, Temperature: 20, MinutesUntilDry: Unlabeled, Timestamp: testTime},
	}
	want := []string{
		"[1 | 0x48]",
		"[2 | Monstera | 15.00]",
		"[3 | 2 | 1 | Living room]",
		"[4 | 1 | 21.50 | 20.00 | -1 | " + testTime.Local().Format(TimestampLayout) + "]",
	}
	for i, e := range entities {
		if got := e.Describe(); got != want[i] {
			t.Fatalf("describe %d: got %q want %q", i, got, want[i])
		}
	}
}

func TestIsLabeled(t *testing.T) {
	m := NewMeasurement(1, 30, 20, testTime)
	if m.IsLabeled() {
		t.Fatal("new measurements are unlabeled")
	}
	list := []Measurement{*m, {MinutesUntilDry: 0}}
	if list[0].IsLabeled() || !list[1].IsLabeled() {
		t.Fatal("zero minutes is a label")
	}
}

func TestWateringEventIncrease(t *testing.T) {
	e := WateringEvent{PreviousMoisture: 30, Moisture: 42}
	if e.Increase() != 12 {
		t.Fatalf("unexpected increase %v", e.Increase())
	}
	if !strings.Contains((TimeUntilDry{Days: 1, Hours: 3}).String(), "1 days") {
		t.Fatal("unexpected string form")
	}
}
