package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/postgres"
)

// TableSource bulk-loads documents from a PostgreSQL table with an `id`
// text column and a `doc` JSONB column holding the field values.
type TableSource struct {
	client *postgres.Client
	table  string
	logger *slog.Logger

	// BatchDocs is the number of rows applied between index commits.
	BatchDocs int
}

// NewTableSource reads from the named table through the client.
func NewTableSource(client *postgres.Client, table string) *TableSource {
	return &TableSource{
		client:    client,
		table:     table,
		logger:    logger.WithComponent("ingest.table").With("table", table),
		BatchDocs: 5000,
	}
}

// Reindex streams every row into the writer as an update, committing in
// batches and once more at the end. It returns the number of rows applied.
func (s *TableSource) Reindex(ctx context.Context, w *index.Writer) (int, error) {
	rows, err := s.client.DB.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, doc FROM %s ORDER BY id`, s.table))
	if err != nil {
		return 0, fmt.Errorf("querying %s: %w", s.table, err)
	}
	defer rows.Close()

	applied := 0
	for rows.Next() {
		var id string
		var raw []byte
		if err := rows.Scan(&id, &raw); err != nil {
			return applied, fmt.Errorf("scanning %s row: %w", s.table, err)
		}
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return applied, fmt.Errorf("decoding doc %s: %w", id, err)
		}
		doc := field.FromMap(fields).Set(field.IDField, id)
		if err := w.Update(doc); err != nil {
			return applied, fmt.Errorf("indexing doc %s: %w", id, err)
		}
		applied++
		if s.BatchDocs > 0 && applied%s.BatchDocs == 0 {
			if err := w.Commit(); err != nil {
				return applied, err
			}
			s.logger.Info("batch committed", "rows", applied)
		}
	}
	if err := rows.Err(); err != nil {
		return applied, fmt.Errorf("iterating %s: %w", s.table, err)
	}
	if err := w.Commit(); err != nil {
		return applied, err
	}
	s.logger.Info("reindex complete", "rows", applied)
	return applied, nil
}
