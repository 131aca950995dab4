package kafka

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DeoTime/localys/models"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
)

func InitConsumer(logger *zap.Logger) (sarama.Consumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	config.Consumer.Retry.Backoff = 1 * time.Second

	brokers := []string{getEnv("KAFKA_BROKER", "localhost:9092")}

	consumer, err := sarama.NewConsumer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer: %w", err)
	}

	logger.Info("Kafka consumer initialized")
	return consumer, nil
}

// StartNotificationConsumer consumes order/coin/boost events and writes a
// notification row per event. The consume loop runs until the parent
// consumer is closed.
func StartNotificationConsumer(consumer sarama.Consumer, topic string, db *sql.DB, logger *zap.Logger) error {
	partitionConsumer, err := consumer.ConsumePartition(topic, 0, sarama.OffsetNewest)
	if err != nil {
		return fmt.Errorf("failed to consume partition: %w", err)
	}

	logger.Info("Notification consumer started", zap.String("topic", topic))

	go func() {
		defer partitionConsumer.Close()
		for {
			select {
			case message, ok := <-partitionConsumer.Messages():
				if !ok {
					return
				}
				if err := handleMessageWithRetry(message, db, logger, 3); err != nil {
					logger.Error("Failed to handle message after retries", zap.Error(err))
				}
			case err, ok := <-partitionConsumer.Errors():
				if !ok {
					return
				}
				logger.Error("Kafka consumer error", zap.Error(err))
			}
		}
	}()

	return nil
}

func handleMessageWithRetry(message *sarama.ConsumerMessage, db *sql.DB, logger *zap.Logger, retries int) error {
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if err = handleMessage(message, db, logger); err == nil {
			return nil
		}
		time.Sleep(time.Duration(attempt+1) * 500 * time.Millisecond)
	}
	return err
}

func handleMessage(message *sarama.ConsumerMessage, db *sql.DB, logger *zap.Logger) error {
	var propagator propagation.TextMapPropagator = otel.GetTextMapPropagator()
	carrier := consumerHeaderCarrier(message.Headers)
	ctx := propagator.Extract(context.Background(), carrier)

	ctx, span := otel.Tracer("localys").Start(ctx, "HandleNotification")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	span.SetAttributes(
		attribute.String("event.type", event.EventType),
		attribute.Int("user.id", event.UserID),
	)

	body := notificationBody(event)
	if body == "" {
		return nil
	}

	_, err := db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, kind, body) VALUES ($1, $2, $3)",
		event.UserID, event.EventType, body,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	logger.Info("Notification recorded",
		zap.String("event_type", event.EventType),
		zap.Int("user_id", event.UserID),
	)
	return nil
}

func notificationBody(event models.OrderEvent) string {
	switch event.EventType {
	case models.EventOrderPaid:
		return fmt.Sprintf("Your order %s is paid. Show the pickup QR at the counter.", event.OrderID)
	case models.EventOrderCompleted:
		return fmt.Sprintf("Order %s picked up. Enjoy!", event.OrderID)
	case models.EventCoinsCredited:
		return fmt.Sprintf("%d coins added to your balance.", event.CoinAmount)
	case models.EventVideoBoosted:
		return "Your video boost is live."
	default:
		return ""
	}
}

// consumerHeaderCarrier implements TextMapCarrier over consumed record
// headers.
type consumerHeaderCarrier []*sarama.RecordHeader

func (c consumerHeaderCarrier) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c consumerHeaderCarrier) Set(key, value string) {}

func (c consumerHeaderCarrier) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
