package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

func testWriter(t *testing.T) *index.Writer {
	t.Helper()
	schema := field.NewSchema()
	for _, f := range []*field.Field{
		field.Keyword(field.IDField, field.Store()),
		field.Text("title", field.Store()),
		field.Text("body"),
	} {
		if err := schema.Define(f); err != nil {
			t.Fatal(err)
		}
	}
	w, err := index.Open(t.TempDir(), schema, config.Default().Index, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name  string
		event DocumentEvent
		ok    bool
	}{
		{"index", DocumentEvent{Action: ActionIndex, Fields: map[string]any{"body": "x"}}, true},
		{"index no fields", DocumentEvent{Action: ActionIndex}, false},
		{"update", DocumentEvent{Action: ActionUpdate, ID: "a", Fields: map[string]any{"body": "x"}}, true},
		{"update no id", DocumentEvent{Action: ActionUpdate, Fields: map[string]any{"body": "x"}}, false},
		{"update no fields", DocumentEvent{Action: ActionUpdate, ID: "a"}, false},
		{"delete", DocumentEvent{Action: ActionDelete, ID: "a"}, true},
		{"delete no id", DocumentEvent{Action: ActionDelete}, false},
		{"unknown", DocumentEvent{Action: "purge", ID: "a"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate: %v", err)
			}
			if !tt.ok && !errors.Is(err, scerrors.ErrInvalidValue) {
				t.Errorf("Validate = %v, want ErrInvalidValue", err)
			}
		})
	}
}

func applyEvent(t *testing.T, c *Consumer, key string, event DocumentEvent) error {
	t.Helper()
	value, err := json.Marshal(event)
	if err != nil {
		t.Fatal(err)
	}
	return c.apply(context.Background(), []byte(key), value)
}

func TestConsumerApply(t *testing.T) {
	w := testWriter(t)
	c := NewConsumer(config.Default().Kafka, w)
	c.CommitDocs = 2

	if err := applyEvent(t, c, "a", DocumentEvent{
		Action: ActionIndex,
		Fields: map[string]any{"title": "first", "body": "hello world"},
	}); err != nil {
		t.Fatalf("apply index: %v", err)
	}
	// Second event crosses CommitDocs and commits both.
	if err := applyEvent(t, c, "b", DocumentEvent{
		Action: ActionIndex,
		Fields: map[string]any{"title": "second", "body": "goodbye"},
	}); err != nil {
		t.Fatalf("apply index: %v", err)
	}

	s, err := index.OpenSearcher(w.Dir(), nil)
	if err != nil {
		t.Fatalf("OpenSearcher: %v", err)
	}
	defer s.Close()
	if n := s.Count(); n != 2 {
		t.Fatalf("committed count %d, want 2", n)
	}
	doc, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = %v, %v", ok, err)
	}
	if doc.Get("title") != "first" {
		t.Errorf("title %v, want first", doc.Get("title"))
	}
}

func TestConsumerUpdateAndDelete(t *testing.T) {
	w := testWriter(t)
	c := NewConsumer(config.Default().Kafka, w)
	c.CommitDocs = 1

	if err := applyEvent(t, c, "a", DocumentEvent{
		Action: ActionIndex,
		Fields: map[string]any{"title": "original", "body": "hello"},
	}); err != nil {
		t.Fatalf("apply index: %v", err)
	}
	// The key stands in for a missing event id.
	if err := applyEvent(t, c, "a", DocumentEvent{
		Action: ActionUpdate,
		Fields: map[string]any{"title": "revised", "body": "hello"},
	}); err != nil {
		t.Fatalf("apply update: %v", err)
	}

	s, err := index.OpenSearcher(w.Dir(), nil)
	if err != nil {
		t.Fatalf("OpenSearcher: %v", err)
	}
	defer s.Close()
	if n := s.Count(); n != 1 {
		t.Fatalf("count after update %d, want 1", n)
	}
	doc, ok, err := s.Get("a")
	if err != nil || !ok {
		t.Fatalf("Get(a) = %v, %v", ok, err)
	}
	if doc.Get("title") != "revised" {
		t.Errorf("title %v, want revised", doc.Get("title"))
	}

	if err := applyEvent(t, c, "a", DocumentEvent{Action: ActionDelete}); err != nil {
		t.Fatalf("apply delete: %v", err)
	}
	if err := s.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if n := s.Count(); n != 0 {
		t.Errorf("count after delete %d, want 0", n)
	}
}

func TestConsumerRejectsMalformed(t *testing.T) {
	w := testWriter(t)
	c := NewConsumer(config.Default().Kafka, w)

	if err := c.apply(context.Background(), nil, []byte("{not json")); err == nil {
		t.Error("malformed JSON accepted")
	}
	if err := applyEvent(t, c, "", DocumentEvent{Action: ActionDelete}); !errors.Is(err, scerrors.ErrInvalidValue) {
		t.Errorf("invalid event err = %v, want ErrInvalidValue", err)
	}
	if w.DocCount() != 0 {
		t.Errorf("writer touched by rejected events: %d docs", w.DocCount())
	}
}
