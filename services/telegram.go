package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"plantai/config"
	"plantai/models"
)

// WeatherReporter renders a forecast for a location
type WeatherReporter interface {
	Report(ctx context.Context, location string) (string, error)
}

// CommandDeps are the collaborators the bot commands read from. Weather and
// Health are optional.
type CommandDeps struct {
	Store      MeasurementStore
	Sensors    SensorLister
	Predictors *Predictors
	Weather    WeatherReporter
	Health     *SensorHealthService
	Now        func() time.Time
}

type TelegramService struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	deps   CommandDeps
	logger *zap.Logger
}

func NewTelegramService(cfg config.TelegramConfig, deps CommandDeps, logger *zap.Logger) (*TelegramService, error) {
	logger = logger.Named("telegram")
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("error creating telegram bot: %w", err)
	}

	logger.Info("Telegram bot authorized", zap.String("username", bot.Self.UserName))

	if deps.Now == nil {
		deps.Now = time.Now
	}
	ts := &TelegramService{
		bot:    bot,
		chatID: cfg.ChatID,
		deps:   deps,
		logger: logger,
	}

	if err := ts.testConnection(); err != nil {
		logger.Error("Telegram connection test failed", zap.Error(err))
		return nil, fmt.Errorf("telegram connection test failed: %w", err)
	}

	return ts, nil
}

// SetHealth attaches the health service after construction, since the health
// service itself alerts through the bot. Call it before Listen.
func (ts *TelegramService) SetHealth(health *SensorHealthService) {
	ts.deps.Health = health
}

// testConnection tests Telegram connection with retry logic
func (ts *TelegramService) testConnection() error {
	maxRetries := 3

	for attempt := 1; attempt <= maxRetries; attempt++ {
		ts.logger.Info("Testing Telegram connection", zap.Int("attempt", attempt), zap.Int("max_retries", maxRetries))

		_, err := ts.bot.GetMe()
		if err == nil {
			ts.logger.Info("Telegram connection successful")
			return nil
		}

		ts.logger.Warn("Telegram connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_retries", maxRetries),
			zap.Error(err))

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
	}

	return fmt.Errorf("failed to connect to Telegram after %d attempts", maxRetries)
}

// SendStatusMessage sends a general status message
func (ts *TelegramService) SendStatusMessage(message string) error {
	msg := tgbotapi.NewMessage(ts.chatID, message)
	msg.ParseMode = "HTML"
	msg.DisableWebPagePreview = true

	_, err := ts.bot.Send(msg)
	return err
}

// SendStartupMessage sends a message when the service starts
func (ts *TelegramService) SendStartupMessage(sensors int, source string) error {
	message := "🟢 <b>PlantAI Monitoring Started</b>\n\n" +
		fmt.Sprintf("🌱 Sensors: %d\n", sensors) +
		fmt.Sprintf("📡 Source: %s\n", source) +
		"🤖 Telegram commands active, send /help\n\n" +
		"✅ Watching soil moisture for waterings..."

	return ts.SendStatusMessage(message)
}

// OnWatering sends a watering alert
func (ts *TelegramService) OnWatering(ctx context.Context, event *models.WateringEvent) error {
	if err := ts.SendStatusMessage(formatWateringMessage(event)); err != nil {
		return fmt.Errorf("error sending watering alert: %w", err)
	}
	ts.logger.Info("Sent watering alert",
		zap.Uint("sensor_id", event.SensorID),
		zap.Int("archived", event.Archived))
	return nil
}

func formatWateringMessage(event *models.WateringEvent) string {
	var sb strings.Builder

	sb.WriteString("💧 <b>PLANT WATERED</b> 💧\n\n")
	sb.WriteString(fmt.Sprintf("🌱 <b>Sensor:</b> %d\n", event.SensorID))
	sb.WriteString(fmt.Sprintf("🕐 <b>Time:</b> %s\n", event.WateredAt.In(time.Local).Format(models.TimestampLayout)))
	sb.WriteString(fmt.Sprintf("📈 <b>Moisture:</b> %.2f%% → %.2f%% (+%.2f)\n\n",
		event.PreviousMoisture, event.Moisture, event.Increase()))

	sb.WriteString(fmt.Sprintf("🗂 Archived readings: %d\n", event.Archived))
	switch {
	case event.Training.Error != "":
		sb.WriteString(fmt.Sprintf("🧠 Model: training failed, %s\n", html.EscapeString(event.Training.Error)))
	case event.Training.Skipped:
		sb.WriteString("🧠 Model: not trained, no archived data\n")
	default:
		sb.WriteString(fmt.Sprintf("🧠 Model: %d samples, MAE %.1f min, R² %.2f\n",
			event.Training.Samples, event.Training.MAE, event.Training.R2))
	}
	if event.Prediction != nil {
		sb.WriteString(fmt.Sprintf("\n⏳ <b>Next watering in:</b> %s", event.Prediction))
	}
	return sb.String()
}

// SendSensorTimeoutAlert sends an alert when a sensor stops delivering readings
func (ts *TelegramService) SendSensorTimeoutAlert(health models.SensorHealth, timeSinceLastSeen time.Duration) error {
	var sb strings.Builder

	sb.WriteString("⚠️ <b>SENSOR TIMEOUT</b> ⚠️\n\n")
	sb.WriteString(fmt.Sprintf("🌱 <b>Sensor:</b> %d\n", health.SensorID))
	sb.WriteString(fmt.Sprintf("🕐 <b>Last Seen:</b> %s\n", health.LastSeen.Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("⏱️ <b>Time Since Last Reading:</b> %s\n", formatDuration(timeSinceLastSeen)))
	if health.Failures > 0 {
		sb.WriteString(fmt.Sprintf("❌ <b>Failed Reads:</b> %d\n", health.Failures))
		sb.WriteString(fmt.Sprintf("   └ %s\n", health.LastError))
	}
	if health.LastSample != nil {
		sb.WriteString(fmt.Sprintf("\n📊 <b>Last Reading:</b> %.2f%% / %.2f°C\n",
			health.LastSample.Moisture, health.LastSample.Temperature))
	}
	sb.WriteString("\n💡 Check the probe wiring or the publishing device.\n\n")
	sb.WriteString("🔴 <b>Status:</b> SENSOR TIMEOUT")

	if err := ts.SendStatusMessage(sb.String()); err != nil {
		return fmt.Errorf("error sending sensor timeout alert: %w", err)
	}

	ts.logger.Info("Sent sensor timeout alert",
		zap.Uint("sensor_id", health.SensorID),
		zap.Duration("time_since_last_seen", timeSinceLastSeen))
	return nil
}

// SendSensorRecoveryAlert sends an alert when a sensor delivers readings again
func (ts *TelegramService) SendSensorRecoveryAlert(sensorID uint, downDuration time.Duration) error {
	var sb strings.Builder

	sb.WriteString("✅ <b>SENSOR RECOVERED</b> ✅\n\n")
	sb.WriteString(fmt.Sprintf("🌱 <b>Sensor:</b> %d\n", sensorID))
	sb.WriteString(fmt.Sprintf("🕐 <b>Recovery Time:</b> %s\n", time.Now().Format("2006-01-02 15:04:05")))
	sb.WriteString(fmt.Sprintf("⏱️ <b>Downtime:</b> %s\n\n", formatDuration(downDuration)))
	sb.WriteString("🟢 <b>Status:</b> SENSOR ONLINE")

	if err := ts.SendStatusMessage(sb.String()); err != nil {
		return fmt.Errorf("error sending sensor recovery alert: %w", err)
	}

	ts.logger.Info("Sent sensor recovery alert",
		zap.Uint("sensor_id", sensorID),
		zap.Duration("down_duration", downDuration))
	return nil
}

// Listen answers bot commands from the configured chat until ctx is done
func (ts *TelegramService) Listen(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := ts.bot.GetUpdatesChan(u)
	defer ts.bot.StopReceivingUpdates()

	ts.logger.Info("Listening for bot commands")
	for {
		select {
		case <-ctx.Done():
			ts.logger.Info("Stopped listening for bot commands")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			if update.Message.Chat.ID != ts.chatID {
				ts.logger.Warn("Ignoring command from unknown chat", zap.Int64("chat_id", update.Message.Chat.ID))
				continue
			}

			reply := HandleCommand(ctx, ts.deps, update.Message.Command(), update.Message.CommandArguments())
			msg := tgbotapi.NewMessage(ts.chatID, reply)
			msg.ReplyToMessageID = update.Message.MessageID
			if _, err := ts.bot.Send(msg); err != nil {
				ts.logger.Error("Failed to answer command",
					zap.String("command", update.Message.Command()),
					zap.Error(err))
			}
		}
	}
}

// HandleCommand returns the plain text answer to a bot command
func HandleCommand(ctx context.Context, deps CommandDeps, command, args string) string {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	args = strings.TrimSpace(args)

	switch command {
	case "predict":
		return predictCommand(ctx, deps, args)
	case "status":
		return statusCommand(ctx, deps)
	case "weather":
		if deps.Weather == nil {
			return "Weather lookup is not available."
		}
		report, err := deps.Weather.Report(ctx, args)
		if errors.Is(err, ErrLocationNotFound) {
			return fmt.Sprintf("Location %q not found.", args)
		}
		if err != nil {
			return fmt.Sprintf("Weather lookup failed: %v", err)
		}
		return report
	case "time":
		return fmt.Sprintf("It is %s.", deps.Now().Format("15:04 on Monday, 2 January 2006"))
	case "start", "help":
		return "/predict [sensor] - time until the soil is dry\n" +
			"/status - latest reading of every sensor\n" +
			"/weather <location> - weather forecast\n" +
			"/time - current time"
	default:
		return fmt.Sprintf("Unknown command /%s, send /help", command)
	}
}

func predictCommand(ctx context.Context, deps CommandDeps, args string) string {
	sensorID, err := resolveSensor(ctx, deps.Sensors, args)
	if err != nil {
		return err.Error()
	}

	current, err := deps.Store.MostRecentUnlabeled(ctx, sensorID)
	if err != nil {
		return fmt.Sprintf("Could not load the current reading: %v", err)
	}
	if current == nil {
		return fmt.Sprintf("Sensor %d has no current reading yet.", sensorID)
	}

	prediction, err := deps.Predictors.Predict(sensorID, current.Moisture)
	if errors.Is(err, ErrModelNotTrained) {
		return fmt.Sprintf("Sensor %d has no trained model yet, wait for the first watering.", sensorID)
	}
	if err != nil {
		return fmt.Sprintf("Prediction failed: %v", err)
	}
	return fmt.Sprintf("Sensor %d at %.2f%% moisture: the plant will need water in %s.",
		sensorID, current.Moisture, prediction)
}

// resolveSensor parses a sensor ID argument, defaulting to the first sensor
func resolveSensor(ctx context.Context, sensors SensorLister, args string) (uint, error) {
	if args != "" {
		id, err := strconv.ParseUint(args, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid sensor id %q", args)
		}
		return uint(id), nil
	}
	list, err := sensors.ListSensors(ctx)
	if err != nil {
		return 0, fmt.Errorf("could not list sensors: %v", err)
	}
	if len(list) == 0 {
		return 0, fmt.Errorf("no sensor registered")
	}
	return list[0].ID, nil
}

func statusCommand(ctx context.Context, deps CommandDeps) string {
	list, err := deps.Sensors.ListSensors(ctx)
	if err != nil {
		return fmt.Sprintf("Could not list sensors: %v", err)
	}
	if len(list) == 0 {
		return "No sensor registered."
	}

	var sb strings.Builder
	for i, sensor := range list {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(fmt.Sprintf("Sensor %d (0x%02x): ", sensor.ID, sensor.Address))
		current, err := deps.Store.MostRecentUnlabeled(ctx, sensor.ID)
		switch {
		case err != nil:
			sb.WriteString("error loading reading")
		case current == nil:
			sb.WriteString("no reading yet")
		default:
			sb.WriteString(fmt.Sprintf("%.2f%% / %.2f°C at %s",
				current.Moisture, current.Temperature,
				current.Timestamp.In(time.Local).Format(models.TimestampLayout)))
		}
		if deps.Health != nil {
			if health, ok := deps.Health.GetSensorHealth(sensor.ID); ok {
				sb.WriteString(fmt.Sprintf(" [%s]", health.Status))
			}
		}
	}
	return sb.String()
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0f seconds", d.Seconds())
	} else if d < time.Hour {
		minutes := int(d.Minutes())
		seconds := int(d.Seconds()) % 60
		return fmt.Sprintf("%d min %d sec", minutes, seconds)
	} else if d < 24*time.Hour {
		hours := int(d.Hours())
		minutes := int(d.Minutes()) % 60
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%d days %d hr", days, hours)
}
