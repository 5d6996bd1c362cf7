package segment

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// Deletion bitmaps live beside their segment as seg_<id>.del.<generation>
// files. A segment file is never rewritten for a delete; each commit that
// adds tombstones writes a fresh bitmap under the next generation and the
// commit descriptor points at it.

// DelFileName returns the deletion bitmap name for a segment at a commit
// generation.
func DelFileName(segName string, generation uint64) string {
	base := strings.TrimSuffix(segName, FileExt)
	return fmt.Sprintf("%s.del.%d", base, generation)
}

// WriteDeletes publishes a deletion bitmap and returns its file name.
func WriteDeletes(dir, segName string, generation uint64, deleted *roaring.Bitmap) (string, error) {
	name := DelFileName(segName, generation)
	data, err := deleted.MarshalBinary()
	if err != nil {
		return "", errors.New("segment.deletes.write", dir, err, name)
	}
	if err := atomicWriteFile(filepath.Join(dir, name), data); err != nil {
		return "", err
	}
	return name, nil
}

// ReadDeletes loads a deletion bitmap; an empty name yields an empty bitmap.
func ReadDeletes(dir, name string) (*roaring.Bitmap, error) {
	deleted := roaring.New()
	if name == "" {
		return deleted, nil
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, errors.New("segment.deletes.read", dir, err, name)
	}
	if err := deleted.UnmarshalBinary(data); err != nil {
		return nil, errors.Newf("segment.deletes.read", dir, errors.ErrCorrupted, "%s: %v", name, err)
	}
	return deleted, nil
}
