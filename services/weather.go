package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"plantai/config"
)

// ErrLocationNotFound is returned when geocoding yields no result
var ErrLocationNotFound = errors.New("location not found")

const forecastHours = 6

// Forecast is the subset of the Open-Meteo forecast response that is used
type Forecast struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		Precipitation []float64 `json:"precipitation"`
	} `json:"hourly"`
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
	} `json:"daily"`
}

type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// WeatherService looks up forecasts from Open-Meteo
type WeatherService struct {
	config     config.WeatherConfig
	logger     *zap.Logger
	httpClient *http.Client
}

// NewWeatherService creates a new weather client
func NewWeatherService(cfg config.WeatherConfig, logger *zap.Logger) *WeatherService {
	return &WeatherService{
		config: cfg,
		logger: logger.Named("weather"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// getJSON sends a GET request and decodes a successful response into v
func (w *WeatherService) getJSON(ctx context.Context, endpoint string, query url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PlantAI/1.0")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		w.logger.Error("Weather request failed",
			zap.Error(err),
			zap.String("url", endpoint))
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		w.logger.Error("Weather API returned error",
			zap.String("url", endpoint),
			zap.Int("status_code", resp.StatusCode))
		return fmt.Errorf("weather API error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Geocode returns the coordinates of the best match for location
func (w *WeatherService) Geocode(ctx context.Context, location string) (float64, float64, error) {
	query := url.Values{}
	query.Set("name", location)
	query.Set("count", "1")
	query.Set("language", "de")

	var data geocodeResponse
	if err := w.getJSON(ctx, w.config.GeocodeURL, query, &data); err != nil {
		return 0, 0, fmt.Errorf("error retrieving geodata: %w", err)
	}
	if len(data.Results) == 0 {
		return 0, 0, fmt.Errorf("%q: %w", location, ErrLocationNotFound)
	}
	return data.Results[0].Latitude, data.Results[0].Longitude, nil
}

// Forecast returns the hourly and daily forecast for location. An empty
// location falls back to the configured one.
func (w *WeatherService) Forecast(ctx context.Context, location string) (*Forecast, error) {
	if location == "" {
		location = w.config.Location
	}
	if location == "" {
		return nil, fmt.Errorf("no location given")
	}

	lat, lon, err := w.Geocode(ctx, location)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("latitude", fmt.Sprintf("%g", lat))
	query.Set("longitude", fmt.Sprintf("%g", lon))
	query.Set("hourly", "temperature_2m,precipitation")
	query.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum")
	query.Set("timezone", w.config.Timezone)

	var forecast Forecast
	if err := w.getJSON(ctx, w.config.ForecastURL, query, &forecast); err != nil {
		return nil, fmt.Errorf("error retrieving weather data: %w", err)
	}

	w.logger.Debug("Forecast retrieved",
		zap.String("location", location),
		zap.Float64("latitude", lat),
		zap.Float64("longitude", lon))
	return &forecast, nil
}

// Report returns the forecast for location as plain text
func (w *WeatherService) Report(ctx context.Context, location string) (string, error) {
	forecast, err := w.Forecast(ctx, location)
	if err != nil {
		return "", err
	}
	return FormatForecast(forecast), nil
}

// FormatForecast renders the next hours and the daily outlook
func FormatForecast(f *Forecast) string {
	var sb strings.Builder

	sb.WriteString("Current forecast (hourly):\n")
	sb.WriteString("--------------------\n")
	sb.WriteString("> Hourly temperatures (in °C):\n")
	sb.WriteString("  " + formatValues(f.Hourly.Temperature, forecastHours) + "\n\n")
	sb.WriteString("> Rainfall (in mm):\n")
	sb.WriteString("  " + formatValues(f.Hourly.Precipitation, forecastHours) + "\n\n")

	sb.WriteString("Daily forecast:\n")
	sb.WriteString("----------------\n")
	days := len(f.Daily.Time)
	for _, l := range []int{len(f.Daily.TemperatureMax), len(f.Daily.TemperatureMin), len(f.Daily.PrecipitationSum)} {
		if l < days {
			days = l
		}
	}
	for i := 0; i < days; i++ {
		sb.WriteString(fmt.Sprintf("%s: %g°C – %g°C, Rain: %g mm\n",
			f.Daily.Time[i], f.Daily.TemperatureMin[i], f.Daily.TemperatureMax[i], f.Daily.PrecipitationSum[i]))
	}
	return sb.String()
}

func formatValues(values []float64, limit int) string {
	if len(values) > limit {
		values = values[:limit]
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
