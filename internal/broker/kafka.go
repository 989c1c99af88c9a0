// Package broker wraps the Kafka transport: the inbound telemetry consumer
// and the outbound alert producer.
package broker

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// Producer publishes records to one topic, keyed so a vehicle's records land
// on one partition.
type Producer struct {
	producer *kafka.Producer
	topic    string
	log      *zap.Logger
}

func NewProducer(brokers, topic string, log *zap.Logger) (*Producer, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"acks":              "all",
		"retries":           3,
		"batch.size":        16384,
		"linger.ms":         5,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	return &Producer{producer: producer, topic: topic, log: log}, nil
}

// Publish sends one record and waits for the delivery report. A delivery
// failure is returned to the caller to log; nothing is retried here.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	deliveryChan := make(chan kafka.Event, 1)

	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(key),
		Value: value,
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("produce to %s: %w", p.topic, err)
	}

	select {
	case e := <-deliveryChan:
		if msg, ok := e.(*kafka.Message); ok && msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery to %s: %w", p.topic, msg.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}

// Consumer reads one topic in a poll loop and hands each record's payload to
// a handler. Handler errors are logged and the stream position still
// advances, so processing is best-effort.
type Consumer struct {
	consumer *kafka.Consumer
	topic    string
	log      *zap.Logger
}

func NewConsumer(brokers, topic, group string, log *zap.Logger) (*Consumer, error) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
		"group.id":          group,
		"auto.offset.reset": "latest",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}
	return &Consumer{consumer: consumer, topic: topic, log: log}, nil
}

// Run blocks until ctx is done, delivering each record to handler.
func (c *Consumer) Run(ctx context.Context, handler func([]byte) error) error {
	if err := c.consumer.Subscribe(c.topic, nil); err != nil {
		return fmt.Errorf("subscribe to %s: %w", c.topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			msg, err := c.consumer.ReadMessage(100 * time.Millisecond)
			if err != nil {
				if kafkaErr, ok := err.(kafka.Error); ok && kafkaErr.Code() == kafka.ErrTimedOut {
					continue
				}
				return fmt.Errorf("read from %s: %w", c.topic, err)
			}

			if err := handler(msg.Value); err != nil {
				c.log.Error("message handling failed, advancing past record",
					zap.String("topic", c.topic),
					zap.Error(err))
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.consumer.Close()
}
