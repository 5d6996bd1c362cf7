package ingest

import (
	"context"
	"time"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
)

// Publisher is the producing side of the document stream. Writers upstream
// of the index publish through it; the Consumer applies what it publishes.
type Publisher struct {
	producer *kafka.Producer
}

// NewPublisher builds a publisher on the configured document topic.
func NewPublisher(cfg config.KafkaConfig) *Publisher {
	return &Publisher{producer: kafka.NewProducer(cfg, cfg.DocumentTopic)}
}

// Index publishes an add event for the fields.
func (p *Publisher) Index(ctx context.Context, id string, fields map[string]any) error {
	return p.publish(ctx, DocumentEvent{Action: ActionIndex, ID: id, Fields: fields})
}

// Update publishes a replace-by-id event.
func (p *Publisher) Update(ctx context.Context, id string, fields map[string]any) error {
	return p.publish(ctx, DocumentEvent{Action: ActionUpdate, ID: id, Fields: fields})
}

// Delete publishes a delete-by-id event.
func (p *Publisher) Delete(ctx context.Context, id string) error {
	return p.publish(ctx, DocumentEvent{Action: ActionDelete, ID: id})
}

func (p *Publisher) publish(ctx context.Context, event DocumentEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	event.At = time.Now().UTC()
	return p.producer.Publish(ctx, kafka.Event{Key: event.ID, Value: event})
}

// Close flushes and closes the producer.
func (p *Publisher) Close() error {
	return p.producer.Close()
}
