// Package segment implements the immutable on-disk index segments, the
// commit descriptor that names the live set of segments, and the deletion
// bitmaps layered over them. Segment files are never modified after the
// rename that publishes them; all mutation happens by writing new files and
// moving the commit pointer.
package segment

import "encoding/binary"

// MagicBytes identifies a valid .scx segment file.
const (
	MagicBytes    uint32 = 0x53435831
	FormatVersion uint32 = 1
	HeaderSize    int    = 64
	FooterSize    int    = 16
)

// FileExt is the suffix of published segment files.
const FileExt = ".scx"

// Header is the fixed-size block at the start of every segment file. The
// section offsets are absolute file positions.
type Header struct {
	Magic      uint32
	Version    uint32
	TermCount  uint32
	DocCount   uint32
	PostOffset int64
	PostSize   int64
	DocsOffset int64
	DocsSize   int64
	MetaOffset int64
	MetaSize   int64
}

func (h Header) encode() []byte {
	b := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(b[0:4], h.Magic)
	binary.LittleEndian.PutUint32(b[4:8], h.Version)
	binary.LittleEndian.PutUint32(b[8:12], h.TermCount)
	binary.LittleEndian.PutUint32(b[12:16], h.DocCount)
	binary.LittleEndian.PutUint64(b[16:24], uint64(h.PostOffset))
	binary.LittleEndian.PutUint64(b[24:32], uint64(h.PostSize))
	binary.LittleEndian.PutUint64(b[32:40], uint64(h.DocsOffset))
	binary.LittleEndian.PutUint64(b[40:48], uint64(h.DocsSize))
	binary.LittleEndian.PutUint64(b[48:56], uint64(h.MetaOffset))
	binary.LittleEndian.PutUint64(b[56:64], uint64(h.MetaSize))
	return b
}

func decodeHeader(b []byte) Header {
	return Header{
		Magic:      binary.LittleEndian.Uint32(b[0:4]),
		Version:    binary.LittleEndian.Uint32(b[4:8]),
		TermCount:  binary.LittleEndian.Uint32(b[8:12]),
		DocCount:   binary.LittleEndian.Uint32(b[12:16]),
		PostOffset: int64(binary.LittleEndian.Uint64(b[16:24])),
		PostSize:   int64(binary.LittleEndian.Uint64(b[24:32])),
		DocsOffset: int64(binary.LittleEndian.Uint64(b[32:40])),
		DocsSize:   int64(binary.LittleEndian.Uint64(b[40:48])),
		MetaOffset: int64(binary.LittleEndian.Uint64(b[48:56])),
		MetaSize:   int64(binary.LittleEndian.Uint64(b[56:64])),
	}
}

// Postings is the per-term payload: parallel slices of local document
// ordinals (ascending), term frequencies, and token positions.
type Postings struct {
	Docs      []uint32   `json:"d"`
	Freqs     []uint32   `json:"f"`
	Positions [][]uint32 `json:"p,omitempty"`
}

// Len returns the document frequency of the term.
func (p Postings) Len() int { return len(p.Docs) }

// DictEntry locates a term's postings blob within the postings section.
// Offsets are relative to the section start.
type DictEntry struct {
	Field   string `json:"fl"`
	Term    string `json:"t"`
	Offset  int64  `json:"o"`
	Len     int    `json:"l"`
	DocFreq int    `json:"n"`
}

// docEntry locates one stored document blob within the docs section.
type docEntry struct {
	Offset int64 `json:"o"`
	Len    int   `json:"l"`
}

// fileMeta is the JSON trailer: the term dictionary, the stored-document
// index, and the columnar per-document data. The footer checksum covers its
// marshalled bytes.
type fileMeta struct {
	Dict      []DictEntry           `json:"dict"`
	Docs      []docEntry            `json:"docs"`
	DocValues map[string][][]string `json:"docValues,omitempty"`
	Norms     map[string][]int      `json:"norms,omitempty"`
	SumLength map[string]int64      `json:"sumLength,omitempty"`
}

// TermPostings pairs a (field, term) key with its postings, the unit a flush
// or merge hands to the segment writer. Slices of these are sorted by field
// then term.
type TermPostings struct {
	Field    string
	Term     string
	Postings Postings
}

// Data is the complete payload of one segment, assembled in memory by a
// flush or a merge and serialised by Writer.Write.
type Data struct {
	DocCount  int
	Terms     []TermPostings
	Stored    []map[string]any
	DocValues map[string][][]string
	Norms     map[string][]int
	SumLength map[string]int64
}
