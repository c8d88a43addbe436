package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dhoini/Plugin-billing-service/internal/domain"
	"github.com/Dhoini/Plugin-billing-service/pkg/logger"

	"github.com/segmentio/kafka-go"
)

// Топики событий биллинга
const (
	TopicBillingCustomerCreated  = "billing_customer_created"
	TopicBillingCustomerUnlinked = "billing_customer_unlinked"
)

// TopicFor возвращает топик для типа события
func TopicFor(eventType domain.BillingEventType) (string, error) {
	switch eventType {
	case domain.BillingEventCustomerCreated:
		return TopicBillingCustomerCreated, nil
	case domain.BillingEventCustomerUnlinked:
		return TopicBillingCustomerUnlinked, nil
	default:
		return "", fmt.Errorf("kafka: no topic for event type %q", eventType)
	}
}

// Producer публикует события биллинга.
type Producer interface {
	// Publish отправляет событие; ключ сообщения - ID пользователя,
	// чтобы события одного пользователя попадали в одну партицию.
	Publish(ctx context.Context, event domain.BillingEvent) error
	// Close закрывает соединение продюсера Kafka.
	Close() error
}

// messageWriter часть kafka.Writer, нужная продюсеру
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaProducer реализует интерфейс Producer, используя segmentio/kafka-go.
type kafkaProducer struct {
	writer messageWriter
	log    *logger.Logger
}

// NewKafkaProducer создает и настраивает новый продюсер Kafka.
func NewKafkaProducer(cfg Config, log *logger.Logger) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		log.Errorw("Kafka brokers list is empty in config, cannot create producer")
		return nil, errors.New("kafka brokers are not configured")
	}

	// Топик задается в каждом сообщении
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           cfg.RequiredAcks,
		BatchTimeout:           cfg.BatchTimeout,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: false,
	}

	log.Infow("Kafka producer initialized", "brokers", cfg.Brokers)
	return newProducer(writer, log), nil
}

func newProducer(w messageWriter, log *logger.Logger) *kafkaProducer {
	return &kafkaProducer{writer: w, log: log}
}

// Publish преобразует событие в JSON и отправляет в топик его типа.
func (k *kafkaProducer) Publish(ctx context.Context, event domain.BillingEvent) error {
	topic, err := TopicFor(event.Type)
	if err != nil {
		return err
	}

	value, err := json.Marshal(event)
	if err != nil {
		k.log.Errorw("Failed to marshal billing event to JSON for Kafka", "error", err, "eventID", event.ID, "topic", topic)
		return fmt.Errorf("kafka: failed to marshal message data: %w", err)
	}

	message := kafka.Message{
		Topic: topic,
		Key:   []byte(event.IdentityID),
		Value: value,
		Time:  event.Timestamp,
	}

	writeCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := k.writer.WriteMessages(writeCtx, message); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			k.log.Errorw("Kafka write timeout exceeded", "error", err, "topic", topic, "eventID", event.ID)
			return fmt.Errorf("kafka: write timeout: %w", err)
		}
		k.log.Errorw("Failed to write message to Kafka", "error", err, "topic", topic, "eventID", event.ID)
		return fmt.Errorf("kafka: failed to write message: %w", err)
	}

	k.log.Infow("Successfully published message to Kafka", "topic", topic, "eventID", event.ID, "identityID", event.IdentityID)
	return nil
}

// Close закрывает соединение Kafka Writer.
func (k *kafkaProducer) Close() error {
	k.log.Infow("Closing Kafka producer writer...")
	if err := k.writer.Close(); err != nil {
		k.log.Errorw("Failed to close Kafka writer", "error", err)
		return fmt.Errorf("kafka: failed to close writer: %w", err)
	}
	k.log.Infow("Kafka producer writer closed successfully")
	return nil
}

// logProducer используется, когда Kafka не настроена: события только пишутся в лог
type logProducer struct {
	log *logger.Logger
}

// NewLogProducer создает продюсер, который только логирует события
func NewLogProducer(log *logger.Logger) Producer {
	return &logProducer{log: log}
}

func (p *logProducer) Publish(_ context.Context, event domain.BillingEvent) error {
	p.log.Infow("Billing event (Kafka disabled)",
		"type", string(event.Type),
		"eventID", event.ID,
		"identityID", event.IdentityID,
		"customerID", event.CustomerID,
		"error", event.ErrorMessage,
	)
	return nil
}

func (p *logProducer) Close() error { return nil }
