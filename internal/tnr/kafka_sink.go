package tnr

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/charging-platform/fleet-simulator/internal/logger"
	"github.com/charging-platform/fleet-simulator/internal/metrics"
)

// KafkaSink forwards the recorded event stream to Kafka via an async
// producer, adapted from the teacher's KafkaProducer: same
// RequiredAcks/Compression/Flush tuning, same success/error goroutines,
// but publishing the simulator's own Event shape instead of the gateway's
// integration-event format.
type KafkaSink struct {
	producer sarama.AsyncProducer
	topic    string
	active   atomic.Bool
	log      *logger.Logger
}

// NewKafkaSink dials brokers and starts the producer's success/error
// drains. The sink begins inactive; call Start to arm it.
func NewKafkaSink(brokers []string, topic string, log *logger.Logger) (*KafkaSink, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Flush.Frequency = 500 * time.Millisecond
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("tnr: create kafka producer: %w", err)
	}

	sink := &KafkaSink{producer: producer, topic: topic, log: log}
	go sink.handleSuccesses()
	go sink.handleErrors()
	return sink, nil
}

func (k *KafkaSink) Start() error {
	k.active.Store(true)
	return nil
}

func (k *KafkaSink) Stop() error {
	k.active.Store(false)
	return k.producer.Close()
}

func (k *KafkaSink) IsActive() bool {
	return k.active.Load()
}

// Emit publishes one Event, keyed by session id so a session's stream
// stays ordered within one partition. A no-op when the sink isn't armed.
func (k *KafkaSink) Emit(e Event) {
	if !k.IsActive() {
		return
	}

	data, err := json.Marshal(e)
	if err != nil {
		k.log.Errorf("tnr: marshal event: %v", err)
		return
	}

	msg := &sarama.ProducerMessage{
		Topic:    k.topic,
		Key:      sarama.StringEncoder(e.SessionID),
		Value:    sarama.ByteEncoder(data),
		Metadata: e,
	}
	k.producer.Input() <- msg
}

func (k *KafkaSink) handleSuccesses() {
	for msg := range k.producer.Successes() {
		if e, ok := msg.Metadata.(Event); ok {
			metrics.EventsPublished.WithLabelValues(string(e.Kind)).Inc()
		}
	}
}

func (k *KafkaSink) handleErrors() {
	for err := range k.producer.Errors() {
		k.log.Errorf("tnr: kafka publish failed: %v", err)
	}
}
