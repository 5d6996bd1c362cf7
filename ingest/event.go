// Package ingest feeds an index writer from external sources: a Kafka
// document stream for near-real-time updates and a PostgreSQL table for bulk
// reindexing.
package ingest

import (
	"time"

	scerrors "github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Actions a DocumentEvent can carry.
const (
	ActionIndex  = "index"  // add without replacing
	ActionUpdate = "update" // replace by document id
	ActionDelete = "delete" // remove by document id
)

// DocumentEvent is the JSON payload of one message on the document topic.
type DocumentEvent struct {
	Action string         `json:"action"`
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields,omitempty"`
	At     time.Time      `json:"at,omitempty"`
}

// Validate checks the event's shape before it touches the writer.
func (e DocumentEvent) Validate() error {
	switch e.Action {
	case ActionIndex:
		if len(e.Fields) == 0 {
			return scerrors.Newf("ingest", "", scerrors.ErrInvalidValue, "index event without fields")
		}
	case ActionUpdate:
		if e.ID == "" {
			return scerrors.Newf("ingest", "", scerrors.ErrInvalidValue, "update event without id")
		}
		if len(e.Fields) == 0 {
			return scerrors.Newf("ingest", "", scerrors.ErrInvalidValue, "update event without fields")
		}
	case ActionDelete:
		if e.ID == "" {
			return scerrors.Newf("ingest", "", scerrors.ErrInvalidValue, "delete event without id")
		}
	default:
		return scerrors.Newf("ingest", "", scerrors.ErrInvalidValue, "unknown action %q", e.Action)
	}
	return nil
}
