package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap/zaptest"

	"plantai/config"
	"plantai/models"
)

type publishedMessage struct {
	exchange, key string
	msg           amqp.Publishing
}

type fakeChannel struct {
	published []publishedMessage
	err       error
	closed    bool
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if c.err != nil {
		return c.err
	}
	c.published = append(c.published, publishedMessage{exchange: exchange, key: key, msg: msg})
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func TestPublishWateringEvent(t *testing.T) {
	channel := &fakeChannel{}
	r := &RabbitMQService{
		config:  config.RabbitMQConfig{Exchange: "plantai"},
		channel: channel,
		logger:  zaptest.NewLogger(t),
	}
	event := &models.WateringEvent{
		ID:               "evt-1",
		SensorID:         1,
		WateredAt:        base,
		PreviousMoisture: 30,
		Moisture:         42,
		Archived:         3,
		Prediction:       &models.TimeUntilDry{Days: 1, Hours: 4},
	}

	if err := r.OnWatering(context.Background(), event); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if len(channel.published) != 1 {
		t.Fatalf("expected one message, got %d", len(channel.published))
	}
	got := channel.published[0]
	if got.exchange != "plantai" || got.key != WateringRoutingKey {
		t.Fatalf("published to %s/%s", got.exchange, got.key)
	}
	if got.msg.ContentType != "application/json" || got.msg.DeliveryMode != amqp.Persistent || got.msg.MessageId != "evt-1" {
		t.Fatalf("unexpected message properties %+v", got.msg)
	}

	var decoded models.WateringEvent
	if err := json.Unmarshal(got.msg.Body, &decoded); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if decoded.Archived != 3 || decoded.Prediction == nil || decoded.Prediction.Hours != 4 {
		t.Fatalf("unexpected body %s", got.msg.Body)
	}

	if err := r.Close(); err != nil || !channel.closed {
		t.Fatalf("close failed: %v", err)
	}
}

func TestPublishErrors(t *testing.T) {
	r := &RabbitMQService{logger: zaptest.NewLogger(t)}
	if err := r.Publish(context.Background(), &models.WateringEvent{}); err == nil {
		t.Fatal("expected an error without a channel")
	}

	broken := errors.New("channel closed")
	r.channel = &fakeChannel{err: broken}
	if err := r.Publish(context.Background(), &models.WateringEvent{}); !errors.Is(err, broken) {
		t.Fatalf("expected wrapped channel error, got %v", err)
	}
}
