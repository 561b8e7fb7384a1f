package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"Memora/backend/go/internal/models"

	"github.com/segmentio/kafka-go"
)

// Topics for domain events.
const (
	TopicCollectionIngested   = "collection.ingested"
	TopicKnowledgeBaseCreated = "knowledge_base.created"
	EventCollectionIngested   = "collection.ingested"
	EventKnowledgeBaseCreated = "knowledge_base.created"
)

// Publisher sends domain events to interested consumers.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *models.DomainEvent) error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaPublisher serializes events as JSON and writes them to Kafka, keyed by user id.
type KafkaPublisher struct {
	writer messageWriter
}

// NewKafkaPublisher creates a publisher on top of a shared writer.
func NewKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

func (p *KafkaPublisher) Publish(ctx context.Context, topic string, event *models.DomainEvent) error {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.Type, err)
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(strconv.FormatInt(event.UserID, 10)),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("failed to write %s event to kafka: %w", event.Type, err)
	}
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, string, *models.DomainEvent) error { return nil }

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Nop{}
)
