package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"plantai/models"
)

var csvHeader = []string{"Minutes until Dry", "Moisture", "Temperature", "Timestamp"}

// CSVStore is the part of the database used for CSV streams
type CSVStore interface {
	ListMeasurements(ctx context.Context, sensorID uint, limit int) ([]models.Measurement, error)
	ImportMeasurements(ctx context.Context, list []models.Measurement) error
}

// WriteMeasurementsCSV writes measurements with the CSV header
func WriteMeasurementsCSV(w io.Writer, list []models.Measurement) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, m := range list {
		err := writer.Write([]string{
			strconv.Itoa(m.MinutesUntilDry),
			fmt.Sprintf("%.2f", m.Moisture),
			fmt.Sprintf("%.2f", m.Temperature),
			m.Timestamp.In(time.Local).Format(models.TimestampLayout),
		})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadMeasurementsCSV parses a measurement CSV for the given sensor. Rows
// are numbered from 2 in errors since row 1 is the header.
func ReadMeasurementsCSV(r io.Reader, sensorID uint) ([]models.Measurement, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	if !strings.EqualFold(strings.TrimPrefix(header[0], "\ufeff"), csvHeader[0]) {
		return nil, fmt.Errorf("unexpected header %q", strings.Join(header, ","))
	}

	var list []models.Measurement
	for row := 2; ; row++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		m, err := parseCSVRecord(record, sensorID)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		list = append(list, m)
	}
	return list, nil
}

func parseCSVRecord(record []string, sensorID uint) (models.Measurement, error) {
	minutes, err := strconv.ParseFloat(record[0], 64)
	if err != nil || math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes > math.MaxInt32 {
		return models.Measurement{}, fmt.Errorf("invalid minutes until dry %q", record[0])
	}
	// -1 is the unlabeled marker and the only negative value allowed
	if minutes < 0 && minutes != models.Unlabeled {
		return models.Measurement{}, fmt.Errorf("negative minutes until dry %q", record[0])
	}
	moisture, err := strconv.ParseFloat(record[1], 64)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid moisture %q", record[1])
	}
	temperature, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid temperature %q", record[2])
	}
	timestamp, err := time.ParseInLocation(models.TimestampLayout, record[3], time.Local)
	if err != nil {
		return models.Measurement{}, fmt.Errorf("invalid timestamp %q", record[3])
	}
	return models.Measurement{
		SensorID:        sensorID,
		Moisture:        moisture,
		Temperature:     temperature,
		MinutesUntilDry: int(minutes),
		Timestamp:       timestamp,
	}, nil
}

// CSVService moves measurements between the store and CSV files
type CSVService struct {
	store  CSVStore
	logger *zap.Logger
}

func NewCSVService(store CSVStore, logger *zap.Logger) *CSVService {
	return &CSVService{store: store, logger: logger.Named("csv")}
}

// ExportFile writes every measurement of the sensor to path
func (s *CSVService) ExportFile(ctx context.Context, path string, sensorID uint) (int, error) {
	list, err := s.store.ListMeasurements(ctx, sensorID, -1)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("error creating %s: %w", path, err)
	}
	if err := WriteMeasurementsCSV(f, list); err != nil {
		f.Close()
		return 0, fmt.Errorf("error writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("error closing %s: %w", path, err)
	}

	s.logger.Info("Exported measurements",
		zap.String("path", path),
		zap.Uint("sensor_id", sensorID),
		zap.Int("count", len(list)))
	return len(list), nil
}

// ImportFile reads path and stores its rows for the sensor
func (s *CSVService) ImportFile(ctx context.Context, path string, sensorID uint) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("error opening %s: %w", path, err)
	}
	defer f.Close()

	list, err := ReadMeasurementsCSV(f, sensorID)
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	if err := s.store.ImportMeasurements(ctx, list); err != nil {
		return 0, err
	}

	s.logger.Info("Imported measurements",
		zap.String("path", path),
		zap.Uint("sensor_id", sensorID),
		zap.Int("count", len(list)))
	return len(list), nil
}
