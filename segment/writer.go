package segment

import (
	"encoding/json"
	"hash/crc32"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/logger"
)

// Writer serialises Data payloads into new .scx segment files.
type Writer struct {
	dir    string
	logger *slog.Logger
}

// NewWriter creates a Writer that publishes segments into dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir, logger: logger.WithIndex("segment.writer", dir)}
}

// Write atomically creates a new segment file from the payload and returns
// its name. It writes to a .tmp file, fsyncs, and renames on success, so a
// crash never leaves a partial segment visible.
func (w *Writer) Write(data *Data) (string, error) {
	const op = "segment.write"
	if data.DocCount == 0 {
		return "", errors.Newf(op, w.dir, errors.ErrInvalidValue, "empty segment")
	}
	name := "seg_" + uuid.NewString() + FileExt
	finalPath := filepath.Join(w.dir, name)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", errors.New(op, w.dir, err, "creating segment directory")
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", errors.New(op, w.dir, err, "creating temp segment file")
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath)
	}()

	if _, err := f.Write(make([]byte, HeaderSize)); err != nil {
		return "", errors.New(op, w.dir, err, "writing header placeholder")
	}

	meta := fileMeta{
		Dict:      make([]DictEntry, 0, len(data.Terms)),
		Docs:      make([]docEntry, 0, data.DocCount),
		DocValues: data.DocValues,
		Norms:     data.Norms,
		SumLength: data.SumLength,
	}

	postStart, _ := f.Seek(0, 1)
	for _, tp := range data.Terms {
		offset, _ := f.Seek(0, 1)
		blob, err := json.Marshal(tp.Postings)
		if err != nil {
			return "", errors.Newf(op, w.dir, err, "marshaling postings for %s:%s", tp.Field, tp.Term)
		}
		if _, err := f.Write(blob); err != nil {
			return "", errors.New(op, w.dir, err, "writing postings")
		}
		meta.Dict = append(meta.Dict, DictEntry{
			Field:   tp.Field,
			Term:    tp.Term,
			Offset:  offset - postStart,
			Len:     len(blob),
			DocFreq: tp.Postings.Len(),
		})
	}
	postEnd, _ := f.Seek(0, 1)

	for ord := 0; ord < data.DocCount; ord++ {
		var stored map[string]any
		if ord < len(data.Stored) {
			stored = data.Stored[ord]
		}
		blob, err := json.Marshal(stored)
		if err != nil {
			return "", errors.Newf(op, w.dir, err, "marshaling stored doc %d", ord)
		}
		offset, _ := f.Seek(0, 1)
		if _, err := f.Write(blob); err != nil {
			return "", errors.New(op, w.dir, err, "writing stored doc")
		}
		meta.Docs = append(meta.Docs, docEntry{Offset: offset - postEnd, Len: len(blob)})
	}
	docsEnd, _ := f.Seek(0, 1)

	metaBlob, err := json.Marshal(meta)
	if err != nil {
		return "", errors.New(op, w.dir, err, "marshaling meta")
	}
	if _, err := f.Write(metaBlob); err != nil {
		return "", errors.New(op, w.dir, err, "writing meta")
	}
	metaEnd, _ := f.Seek(0, 1)

	footer := make([]byte, FooterSize)
	putUint32(footer[0:4], crc32.ChecksumIEEE(metaBlob))
	putUint32(footer[4:8], uint32(data.DocCount))
	putUint64(footer[8:16], uint64(docsEnd))
	if _, err := f.Write(footer); err != nil {
		return "", errors.New(op, w.dir, err, "writing footer")
	}

	header := Header{
		Magic:      MagicBytes,
		Version:    FormatVersion,
		TermCount:  uint32(len(meta.Dict)),
		DocCount:   uint32(data.DocCount),
		PostOffset: postStart,
		PostSize:   postEnd - postStart,
		DocsOffset: postEnd,
		DocsSize:   docsEnd - postEnd,
		MetaOffset: docsEnd,
		MetaSize:   metaEnd - docsEnd,
	}
	if _, err := f.WriteAt(header.encode(), 0); err != nil {
		return "", errors.New(op, w.dir, err, "updating header")
	}
	if err := f.Sync(); err != nil {
		return "", errors.New(op, w.dir, err, "syncing segment file")
	}
	if err := f.Close(); err != nil {
		return "", errors.New(op, w.dir, err, "closing segment file")
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", errors.New(op, w.dir, err, "renaming segment file")
	}
	if err := syncDir(w.dir); err != nil {
		return "", err
	}
	w.logger.Debug("segment written",
		"segment", name,
		"terms", len(meta.Dict),
		"docs", data.DocCount,
	)
	return name, nil
}
