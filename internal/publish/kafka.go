package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/SIMPLYBOYS/mempool_scanner/internal/types"
)

const DefaultKafkaTopic = "mempool.pending_swaps"

// KafkaPublisher writes one message per swap keyed by transaction hash, so
// every event for a hash lands on the same partition.
type KafkaPublisher struct {
	topic    string
	producer sarama.SyncProducer
	now      func() time.Time
}

func DialKafka(brokers []string, topic string) (*KafkaPublisher, error) {
	cfg := sarama.NewConfig()
	cfg.ClientID = "mempool-scanner"
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Timeout = 5 * time.Second

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}
	return NewKafkaPublisher(producer, topic), nil
}

func NewKafkaPublisher(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultKafkaTopic
	}
	return &KafkaPublisher{topic: topic, producer: producer, now: time.Now}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish ignores ctx; SyncProducer has no cancellation.
func (p *KafkaPublisher) Publish(ctx context.Context, swap *types.ClassifiedSwap) error {
	data, err := encodeSwap(swap, p.now())
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(swap.Tx.Hash),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("kafka send failed: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
