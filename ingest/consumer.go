package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
)

// Consumer applies the document stream to a writer. Events accumulate in the
// writer's buffer and commit every CommitDocs events, so a crash replays at
// most one uncommitted window from the uncommitted Kafka offsets.
type Consumer struct {
	writer *index.Writer
	inner  *kafka.Consumer
	logger *slog.Logger

	// CommitDocs is the number of applied events between index commits.
	CommitDocs int

	mu      sync.Mutex
	pending int
}

// NewConsumer builds a consumer on the configured document topic.
func NewConsumer(cfg config.KafkaConfig, w *index.Writer) *Consumer {
	c := &Consumer{
		writer:     w,
		logger:     logger.WithComponent("ingest.consumer"),
		CommitDocs: 1000,
	}
	c.inner = kafka.NewConsumer(cfg, cfg.DocumentTopic, c.apply)
	return c
}

// Run consumes until ctx is cancelled, then commits whatever was applied.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.inner.Run(ctx)
	if commitErr := c.commitPending(true); commitErr != nil && err == nil {
		err = commitErr
	}
	return err
}

// Close closes the underlying reader.
func (c *Consumer) Close() error {
	return c.inner.Close()
}

// apply decodes and applies one event. Malformed events are rejected so the
// offset stays uncommitted and the poison message is visible in the log.
func (c *Consumer) apply(ctx context.Context, key, value []byte) error {
	event, err := kafka.DecodeJSON[DocumentEvent](value)
	if err != nil {
		return err
	}
	if event.ID == "" {
		event.ID = string(key)
	}
	if err := event.Validate(); err != nil {
		return err
	}
	switch event.Action {
	case ActionIndex:
		if err := c.writer.Add(eventDocument(event)); err != nil {
			return err
		}
	case ActionUpdate:
		if err := c.writer.Update(eventDocument(event)); err != nil {
			return err
		}
	case ActionDelete:
		if err := c.writer.DeleteByID(event.ID); err != nil {
			return err
		}
	}
	return c.commitPending(false)
}

func eventDocument(event DocumentEvent) *field.Document {
	doc := field.FromMap(event.Fields)
	if event.ID != "" {
		doc.Set(field.IDField, event.ID)
	}
	return doc
}

// commitPending commits the index once enough events accumulated, or
// unconditionally when force is set.
func (c *Consumer) commitPending(force bool) error {
	c.mu.Lock()
	if !force {
		c.pending++
	}
	due := c.pending > 0 && (force || c.pending >= c.CommitDocs)
	if due {
		c.pending = 0
	}
	c.mu.Unlock()
	if !due {
		return nil
	}
	if err := c.writer.Commit(); err != nil {
		c.logger.Error("index commit failed", "error", err)
		return err
	}
	c.logger.Info("index committed", "docs", c.writer.DocCount())
	return nil
}
