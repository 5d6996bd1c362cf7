package segment

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/searchcore/field"
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// CommitFile is the generation pointer naming the live segment set. The
// index state a reader sees is exactly what this file names; everything else
// in the directory is either unpublished or garbage awaiting cleanup.
const CommitFile = "commit.json"

// Info describes one live segment within a commit.
type Info struct {
	Name     string `json:"name"`
	DocCount int    `json:"docCount"`
	// DelFile names the deletion bitmap layered over the segment, empty
	// when no document in it has been deleted.
	DelFile string `json:"delFile,omitempty"`
}

// Commit is the persisted index state: which segments are live, the deletes
// layered over them, and the schema their terms were encoded under.
type Commit struct {
	Version    uint32        `json:"version"`
	Generation uint64        `json:"generation"`
	Segments   []Info        `json:"segments"`
	Schema     *field.Schema `json:"schema,omitempty"`
}

// DocCount returns the total document count across segments, deletions
// not subtracted.
func (c *Commit) DocCount() int {
	total := 0
	for _, s := range c.Segments {
		total += s.DocCount
	}
	return total
}

// ReadCommit loads the commit descriptor. A directory with no commit yet
// returns an empty generation-zero commit.
func ReadCommit(dir string) (*Commit, error) {
	const op = "segment.commit.read"
	data, err := os.ReadFile(filepath.Join(dir, CommitFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &Commit{Version: FormatVersion, Schema: field.NewSchema()}, nil
		}
		return nil, errors.New(op, dir, err, "reading commit file")
	}
	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Newf(op, dir, errors.ErrCorrupted, "commit file: %v", err)
	}
	if c.Version > FormatVersion {
		return nil, errors.Newf(op, dir, errors.ErrFutureVersion, "commit version %d", c.Version)
	}
	if c.Schema == nil {
		c.Schema = field.NewSchema()
	}
	return &c, nil
}

// Write publishes the commit atomically. Readers opening the directory see
// either the previous generation or this one, never a mix.
func (c *Commit) Write(dir string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("segment.commit.write", dir, err, "marshaling commit")
	}
	return atomicWriteFile(filepath.Join(dir, CommitFile), data)
}

// LiveFiles returns every file name the commit references, used to decide
// what a cleanup pass may delete.
func (c *Commit) LiveFiles() map[string]bool {
	live := map[string]bool{CommitFile: true, LockFile: true}
	for _, s := range c.Segments {
		live[s.Name] = true
		if s.DelFile != "" {
			live[s.DelFile] = true
		}
	}
	return live
}
