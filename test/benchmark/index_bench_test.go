// Package benchmark measures throughput and allocation behaviour of the
// engine's hot paths: analysis, indexing, and query execution.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/searchcore/analysis"
	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/index"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/config"
)

const benchBody = "a distributed search engine indexes structured documents into " +
	"immutable segments and answers ranked boolean queries over them"

func benchSchema(b *testing.B) *field.Schema {
	b.Helper()
	s := field.NewSchema()
	for _, f := range []*field.Field{
		field.Keyword(field.IDField, field.Store()),
		field.Text("body", field.Store()),
		field.Keyword("color", field.DocValued()),
	} {
		if err := s.Define(f); err != nil {
			b.Fatal(err)
		}
	}
	return s
}

func benchDoc(i int) *field.Document {
	return field.NewDocument().
		Set(field.IDField, fmt.Sprintf("doc-%d", i)).
		Set("body", benchBody).
		Set("color", []string{"red", "green", "blue"}[i%3])
}

// BenchmarkTokenize measures the analysis chain on a typical sentence.
func BenchmarkTokenize(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		analysis.Tokenize(benchBody)
	}
}

// BenchmarkWriterAdd measures per-document buffering throughput, flushes
// excluded.
func BenchmarkWriterAdd(b *testing.B) {
	cfg := config.Default().Index
	cfg.FlushDocs = 0
	cfg.FlushBytes = 0
	w, err := index.Open(b.TempDir(), benchSchema(b), cfg, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := w.Add(benchDoc(i)); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCommit measures the flush-and-publish cycle for thousand-document
// batches.
func BenchmarkCommit(b *testing.B) {
	cfg := config.Default().Index
	cfg.FlushDocs = 0
	cfg.MaxSegments = 0
	w, err := index.Open(b.TempDir(), benchSchema(b), cfg, nil)
	if err != nil {
		b.Fatal(err)
	}
	defer w.Close()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for j := 0; j < 1000; j++ {
			if err := w.Add(benchDoc(i*1000 + j)); err != nil {
				b.Fatal(err)
			}
		}
		if err := w.Commit(); err != nil {
			b.Fatal(err)
		}
	}
}
