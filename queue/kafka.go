package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"roomreserve/config"
	"roomreserve/model"

	"github.com/segmentio/kafka-go"
)

// KafkaPublisher writes settled booking events to the notification topic,
// keyed by booking ID so per-booking ordering holds within a partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(cfg *config.Kafka) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:     kafka.TCP(cfg.Brokers...),
			Topic:    cfg.NotificationTopic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

func (p *KafkaPublisher) PublishNotificationEvent(ctx context.Context, event model.NotificationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode notification event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.BookingID),
		Value: payload,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewReader builds the consumer the notification worker reads from.
func NewReader(cfg *config.Kafka) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.NotificationTopic,
		GroupID: cfg.ConsumerGroup,
	})
}
