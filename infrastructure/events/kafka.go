package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"socialnet/internal/entity"

	"github.com/segmentio/kafka-go"
)

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes activity events keyed by post id, so all events of one post land in
// the same partition in order. The writer is asynchronous: Publish only enqueues, and delivery
// failures are logged from the completion callback.
type KafkaPublisher struct {
	w       MessageWriter
	timeout time.Duration
}

// publishTimeout bounds the partition metadata lookup that WriteMessages does even in async mode.
const publishTimeout = 2 * time.Second

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion:   logDeliveryFailure,
	}
	return &KafkaPublisher{w: w, timeout: publishTimeout}
}

func logDeliveryFailure(messages []kafka.Message, err error) {
	if err == nil {
		return
	}
	slog.Warn("kafka delivery failed", "messages", len(messages), "error", err)
}

func NewKafkaPublisherWithWriter(w MessageWriter) *KafkaPublisher {
	return &KafkaPublisher{w: w, timeout: publishTimeout}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event entity.FeedEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.w.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.PostId),
		Value: b,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}
