package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/IBM/sarama"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// ErrKafkaBrokersRequired is returned when no brokers are configured.
var ErrKafkaBrokersRequired = errors.New("at least one Kafka broker is required")

// HeaderEventType carries the CloudEvent type on every Kafka record.
const HeaderEventType = "ce_type"

// KafkaObserver writes events as structured CloudEvents JSON to a topic,
// keyed by event id.
type KafkaObserver struct {
	id       string
	topic    string
	producer sarama.SyncProducer
}

// NewKafkaObserver connects a synchronous producer to brokers.
func NewKafkaObserver(id string, brokers []string, topic string) (*KafkaObserver, error) {
	if len(brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return NewKafkaObserverWithProducer(id, topic, producer), nil
}

// NewKafkaObserverWithProducer wraps an existing producer.
func NewKafkaObserverWithProducer(id, topic string, producer sarama.SyncProducer) *KafkaObserver {
	return &KafkaObserver{id: id, topic: topic, producer: producer}
}

// ObserverID returns the observer identifier.
func (k *KafkaObserver) ObserverID() string {
	return k.id
}

// OnEvent publishes event to the configured topic.
func (k *KafkaObserver) OnEvent(_ context.Context, event cloudevents.Event) error {
	value, err := event.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to encode event %s: %w", event.ID(), err)
	}

	msg := &sarama.ProducerMessage{
		Topic: k.topic,
		Key:   sarama.StringEncoder(event.ID()),
		Value: sarama.ByteEncoder(value),
		Headers: []sarama.RecordHeader{
			{Key: []byte(HeaderEventType), Value: []byte(event.Type())},
		},
	}
	if _, _, err := k.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to publish %s to %s: %w", event.ID(), k.topic, err)
	}
	return nil
}

// Close closes the producer.
func (k *KafkaObserver) Close() error {
	return k.producer.Close()
}
