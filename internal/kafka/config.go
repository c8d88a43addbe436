package kafka

import (
	"time"

	"github.com/segmentio/kafka-go"
)

// Config конфигурация продюсера Kafka
type Config struct {
	Brokers      []string
	RequiredAcks kafka.RequiredAcks
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	// Partitions и ReplicationFactor используются при создании топиков
	Partitions        int
	ReplicationFactor int
}

// NewConfig создает конфигурацию с настройками по умолчанию
func NewConfig(brokers []string) Config {
	return Config{
		Brokers:           brokers,
		RequiredAcks:      kafka.RequireOne,
		BatchTimeout:      10 * time.Millisecond,
		WriteTimeout:      10 * time.Second,
		Partitions:        3,
		ReplicationFactor: 1,
	}
}
