package dispatcher

import (
	"context"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaPublisher publishes outbox messages to a Kafka topic via franz-go.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// Publish produces synchronously. The dispatcher marks rows delivered only
// after this returns, so broker acknowledgment gates the delivery marker.
func (p *KafkaPublisher) Publish(ctx context.Context, key []byte, value []byte) error {
	record := &kgo.Record{Topic: p.topic, Key: key, Value: value}
	return p.client.ProduceSync(ctx, record).FirstErr()
}

func (p *KafkaPublisher) Close() {
	p.client.Close()
}
