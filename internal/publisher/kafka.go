// Package publisher forwards recorded fills to a Kafka topic.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"brokergw/internal/domain"
	"brokergw/internal/metrics"
)

// messageWriter is the subset of *kafka.Writer the publisher needs.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// FillEvent is the message value written for each fill.
type FillEvent struct {
	Type string      `json:"type"`
	Fill domain.Fill `json:"fill"`
}

// KafkaPublisher publishes fills keyed by symbol, so fills for one symbol land
// on one partition in ledger order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	log    *zap.Logger
}

// NewKafkaPublisher creates a publisher writing asynchronously to topic on
// brokers. Delivery failures are reported through the logger and the sink
// error counter.
func NewKafkaPublisher(brokers []string, topic string, log *zap.Logger) *KafkaPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	p := &KafkaPublisher{
		topic: topic,
		log:   log.With(zap.String("component", "kafka"), zap.String("topic", topic)),
	}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion:   p.completion,
	}
	return p
}

func newKafkaPublisherWithWriter(w messageWriter, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, log: log}
}

// Name implements gateway.FillSink.
func (p *KafkaPublisher) Name() string { return "kafka" }

// PublishFill implements gateway.FillSink.
func (p *KafkaPublisher) PublishFill(ctx context.Context, fill domain.Fill) error {
	value, err := json.Marshal(FillEvent{Type: "fill", Fill: fill})
	if err != nil {
		return errors.Wrap(err, "encoding fill event")
	}

	msg := kafka.Message{
		Key:   []byte(fill.Symbol),
		Value: value,
		Time:  fill.Timestamp,
		Headers: []kafka.Header{
			{Key: "exec_id", Value: []byte(fill.ExecID)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return errors.Wrapf(err, "writing fill %s to %s", fill.ExecID, p.topic)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func (p *KafkaPublisher) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	metrics.SinkErrorsTotal.WithLabelValues(p.Name()).Add(float64(len(msgs)))
	p.log.Warn("delivering fills", zap.Int("messages", len(msgs)), zap.Error(err))
}
