package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"plantai/models"
)

func TestWriteMeasurementsCSV(t *testing.T) {
	at := time.Date(2025, 10, 10, 8, 30, 0, 0, time.Local)
	list := []models.Measurement{
		{SensorID: 1, Moisture: 31.456, Temperature: 20.1, MinutesUntilDry: 120, Timestamp: at},
		{SensorID: 1, Moisture: 29, Temperature: 20, MinutesUntilDry: models.Unlabeled, Timestamp: at.Add(time.Hour)},
	}
	var buf bytes.Buffer
	if err := WriteMeasurementsCSV(&buf, list); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	want := "Minutes until Dry,Moisture,Temperature,Timestamp\n" +
		"120,31.46,20.10,2025/10/10 08:30\n" +
		"-1,29.00,20.00,2025/10/10 09:30\n"
	if buf.String() != want {
		t.Fatalf("unexpected csv:\n%s", buf.String())
	}
}

func TestReadMeasurementsCSV(t *testing.T) {
	in := "Minutes until Dry,Moisture,Temperature,Timestamp\n" +
		"120,31.46,20.1,2025/10/10 08:30\n" +
		"-1,29,20,2025/10/10 09:30\n"
	list, err := ReadMeasurementsCSV(strings.NewReader(in), 3)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d rows", len(list))
	}
	if list[0].SensorID != 3 || list[0].MinutesUntilDry != 120 || list[0].Moisture != 31.46 {
		t.Fatalf("unexpected first row %+v", list[0])
	}
	if list[1].IsLabeled() || list[1].MinutesUntilDry != models.Unlabeled {
		t.Fatal("second row must stay unlabeled")
	}
	if !list[0].Timestamp.Equal(time.Date(2025, 10, 10, 8, 30, 0, 0, time.Local)) {
		t.Fatalf("unexpected timestamp %v", list[0].Timestamp)
	}
}

func TestReadMeasurementsCSVErrors(t *testing.T) {
	cases := map[string]string{
		"header":    "a,b,c,d\n",
		"columns":   "Minutes until Dry,Moisture,Temperature,Timestamp\n1,2,3\n",
		"minutes":   "Minutes until Dry,Moisture,Temperature,Timestamp\nx,2,3,2025/10/10 08:30\n",
		"negative":  "Minutes until Dry,Moisture,Temperature,Timestamp\n-5,2,3,2025/10/10 08:30\n",
		"timestamp": "Minutes until Dry,Moisture,Temperature,Timestamp\n1,2,3,10.10.2025\n",
		"nan":       "Minutes until Dry,Moisture,Temperature,Timestamp\nNaN,2,3,2025/10/10 08:30\n",
		"inf":       "Minutes until Dry,Moisture,Temperature,Timestamp\n+Inf,2,3,2025/10/10 08:30\n",
		"huge":      "Minutes until Dry,Moisture,Temperature,Timestamp\n1e30,2,3,2025/10/10 08:30\n",
		"fraction":  "Minutes until Dry,Moisture,Temperature,Timestamp\n-1.5,2,3,2025/10/10 08:30\n",
		"small":     "Minutes until Dry,Moisture,Temperature,Timestamp\n-0.5,2,3,2025/10/10 08:30\n",
	}
	for name, in := range cases {
		if _, err := ReadMeasurementsCSV(strings.NewReader(in), 1); err == nil {
			t.Fatalf("%s: expected an error", name)
		}
	}
	list, err := ReadMeasurementsCSV(strings.NewReader(""), 1)
	if err != nil || len(list) != 0 {
		t.Fatalf("empty input: %v %v", list, err)
	}
}

func TestCSVServiceRoundTrip(t *testing.T) {
	store := newMemStore()
	store.insert(1, 30, base)
	store.insert(1, 28, base.Add(time.Hour))
	store.UpdateMinutesUntilDry(context.Background(), 1, 60)
	svc := NewCSVService(store, zaptest.NewLogger(t))
	path := filepath.Join(t.TempDir(), "measurements.csv")

	n, err := svc.ExportFile(context.Background(), path, 1)
	if err != nil || n != 2 {
		t.Fatalf("export returned %d err=%v", n, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	n, err = svc.ImportFile(context.Background(), path, 2)
	if err != nil || n != 2 {
		t.Fatalf("import returned %d err=%v", n, err)
	}
	imported, _ := store.ListMeasurements(context.Background(), 2, -1)
	if len(imported) != 2 || imported[0].MinutesUntilDry != 60 || imported[1].IsLabeled() {
		t.Fatalf("unexpected imported rows %+v", imported)
	}
}
