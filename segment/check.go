package segment

import (
	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// CheckResult summarises an integrity pass over an index directory.
type CheckResult struct {
	Generation uint64
	Segments   int
	Docs       int
	Deleted    int
	Terms      int
}

// Check verifies every segment and deletion bitmap the current commit
// references. It opens each segment (which validates magic, version, and the
// meta checksum) and confirms deletion bitmaps stay within ordinal bounds.
func Check(dir string) (*CheckResult, error) {
	commit, err := ReadCommit(dir)
	if err != nil {
		return nil, err
	}
	result := &CheckResult{Generation: commit.Generation, Segments: len(commit.Segments)}
	for _, info := range commit.Segments {
		r, err := Open(dir, info.Name)
		if err != nil {
			return nil, err
		}
		if r.DocCount() != info.DocCount {
			r.Release()
			return nil, errors.Newf("segment.check", dir, errors.ErrCorrupted,
				"%s: commit says %d docs, segment has %d", info.Name, info.DocCount, r.DocCount())
		}
		deleted, err := ReadDeletes(dir, info.DelFile)
		if err != nil {
			r.Release()
			return nil, err
		}
		if !deleted.IsEmpty() && int(deleted.Maximum()) >= r.DocCount() {
			r.Release()
			return nil, errors.Newf("segment.check", dir, errors.ErrCorrupted,
				"%s: deletion bitmap references ordinal %d of %d", info.Name, deleted.Maximum(), r.DocCount())
		}
		result.Docs += r.DocCount()
		result.Deleted += int(deleted.GetCardinality())
		result.Terms += r.TermCount()
		r.Release()
	}
	return result, nil
}
