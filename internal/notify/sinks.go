package notify

import (
	"context"

	"github.com/segmentio/kafka-go"

	"github.com/kareem-ic/paysim-sandbox/internal/aws"
)

const eventTypeAttr = "event_type"

// QueueSink enqueues messages on SQS.
type QueueSink struct {
	publisher *aws.QueuePublisher
}

func NewQueueSink(p *aws.QueuePublisher) *QueueSink {
	return &QueueSink{publisher: p}
}

func (s *QueueSink) Send(ctx context.Context, eventType string, message []byte) error {
	return s.publisher.SendMessage(ctx, string(message), map[string]string{eventTypeAttr: eventType})
}

// TopicSink fans messages out through SNS.
type TopicSink struct {
	publisher *aws.TopicPublisher
}

func NewTopicSink(p *aws.TopicPublisher) *TopicSink {
	return &TopicSink{publisher: p}
}

func (s *TopicSink) Send(ctx context.Context, eventType string, message []byte) error {
	return s.publisher.Publish(ctx, string(message), map[string]string{eventTypeAttr: eventType})
}

// kafkaWriter is the part of *kafka.Writer the sink uses.
type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink writes messages to a Kafka topic.
type KafkaSink struct {
	writer kafkaWriter
}

// NewKafkaSink returns a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
		},
	}
}

func (s *KafkaSink) Send(ctx context.Context, eventType string, message []byte) error {
	return s.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(eventType),
		Value:   message,
		Headers: []kafka.Header{{Key: eventTypeAttr, Value: []byte(eventType)}},
	})
}

func (s *KafkaSink) Close() error {
	return s.writer.Close()
}

// Discard drops every message; used when notifications are disabled.
type Discard struct{}

func (Discard) Send(context.Context, string, []byte) error { return nil }
