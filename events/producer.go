package events

import (
	"encoding/json"
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// Producer pushes domain events to Kafka, best-effort. A nil Producer or a
// disabled one drops everything silently, so callers never branch on it.
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	log      *zap.Logger
}

func NewProducer(brokers []string, topic string, log *zap.Logger) (*Producer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return &Producer{producer: producer, topic: topic, log: log}, nil
}

// NewWithClient wraps an existing sarama producer. Used by tests with mocks.
func NewWithClient(producer sarama.SyncProducer, topic string, log *zap.Logger) *Producer {
	return &Producer{producer: producer, topic: topic, log: log}
}

// Log sends one event. Failures are logged and swallowed; an event log
// outage must never fail a delivery operation.
func (p *Producer) Log(event map[string]interface{}) {
	if p == nil || p.producer == nil {
		return
	}

	event["timestamp"] = time.Now().Unix()
	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("event marshal failed", zap.Error(err))
		return
	}

	_, _, err = p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Value: sarama.StringEncoder(data),
	})
	if err != nil {
		p.log.Warn("event publish failed", zap.Error(err))
	}
}

// Close releases the underlying producer.
func (p *Producer) Close() {
	if p == nil || p.producer == nil {
		return
	}
	if err := p.producer.Close(); err != nil {
		p.log.Warn("event producer close failed", zap.Error(err))
	}
}
