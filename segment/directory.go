package segment

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/searchcore/pkg/errors"
)

// LockFile is the exclusive writer lock inside an index directory.
const LockFile = "write.lock"

func putUint32(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }
func putUint64(b []byte, v uint64) { binary.LittleEndian.PutUint64(b, v) }

// syncDir fsyncs a directory so a preceding rename survives a crash.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return errors.New("segment.sync", dir, err, "opening directory")
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return errors.New("segment.sync", dir, err, "syncing directory")
	}
	return nil
}

// atomicWriteFile publishes data under path via a temp file and rename.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.New("segment.writefile", dir, err, "creating temp file")
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.New("segment.writefile", dir, err, "writing temp file")
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.New("segment.writefile", dir, err, "syncing temp file")
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.New("segment.writefile", dir, err, "closing temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.New("segment.writefile", dir, err, "renaming into place")
	}
	return syncDir(dir)
}

// Lock is a held exclusive write lock on an index directory.
type Lock struct {
	dir   string
	token string
}

// AcquireLock takes the directory's exclusive write lock, failing with
// ErrLockHeld if a live lock file already exists.
func AcquireLock(dir string) (*Lock, error) {
	const op = "segment.lock"
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.New(op, dir, err, "creating index directory")
	}
	path := filepath.Join(dir, LockFile)
	token := uuid.NewString()
	host, _ := os.Hostname()
	body := fmt.Sprintf("%s pid=%d host=%s\n", token, os.Getpid(), host)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			holder, _ := os.ReadFile(path)
			return nil, errors.Newf(op, dir, errors.ErrLockHeld, "held by %s", strings.TrimSpace(string(holder)))
		}
		return nil, errors.New(op, dir, err, "creating lock file")
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		os.Remove(path)
		return nil, errors.New(op, dir, err, "writing lock file")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return nil, errors.New(op, dir, err, "closing lock file")
	}
	return &Lock{dir: dir, token: token}, nil
}

// Release removes the lock file if this process still holds it.
func (l *Lock) Release() error {
	path := filepath.Join(l.dir, LockFile)
	body, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.New("segment.unlock", l.dir, err, "reading lock file")
	}
	if !strings.HasPrefix(string(body), l.token) {
		return errors.Newf("segment.unlock", l.dir, errors.ErrLockHeld, "lock stolen: %s", strings.TrimSpace(string(body)))
	}
	if err := os.Remove(path); err != nil {
		return errors.New("segment.unlock", l.dir, err, "removing lock file")
	}
	return nil
}
