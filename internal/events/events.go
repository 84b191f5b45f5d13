package events

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"
)

type (
	// ConvertedKafkaMessage is the message we send to Kafka after a
	// snapshot was converted, so downstream consumers can index the
	// artifact without reading it.
	ConvertedKafkaMessage struct {
		ProfileID     string `json:"profile_id"`
		Kind          string `json:"kind"`
		SampleCount   int    `json:"sample_count"`
		LocationCount int    `json:"location_count"`
		DurationNS    int64  `json:"duration_ns"`
		Received      int64  `json:"received"`
	}

	// Writer publishes conversion events. A nil Writer drops them, which
	// is how deployments without Kafka run.
	Writer struct {
		kafka *kafka.Writer
	}
)

func NewWriter(brokers []string, topic string) *Writer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	return &Writer{
		kafka: &kafka.Writer{
			Addr:      kafka.TCP(brokers...),
			Async:     true,
			Balancer:  kafka.CRC32Balancer{},
			BatchSize: 10,
			Topic:     topic,
		},
	}
}

func (w *Writer) Publish(ctx context.Context, m ConvertedKafkaMessage) error {
	if w == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return w.kafka.WriteMessages(ctx, kafka.Message{Value: b})
}

func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	return w.kafka.Close()
}
