package mappingfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Writer persists mapping documents on the local filesystem. Writes are
// serialised across processes through a sibling ".lock" file.
type Writer struct {
	Perm os.FileMode
}

// NewWriter constructs a Writer producing 0644 files.
func NewWriter() *Writer {
	return &Writer{Perm: 0o644}
}

// LockFile returns the lock path guarding path.
func LockFile(path string) string {
	return path + ".lock"
}

// Write replaces the document at path with pairs.
func (w *Writer) Write(path string, pairs map[string]string) error {
	return w.withLock(path, func() error {
		return w.write(path, pairs)
	})
}

// Update loads the pairs stored at path, applies fn and writes the result
// while holding the lock. A missing document starts from an empty table.
func (w *Writer) Update(path string, fn func(pairs map[string]string) error) error {
	if fn == nil {
		return fmt.Errorf("mappingfile: update function is required")
	}
	return w.withLock(path, func() error {
		pairs, err := readLocal(path)
		if err != nil {
			return err
		}
		if err := fn(pairs); err != nil {
			return err
		}
		return w.write(path, pairs)
	})
}

func (w *Writer) withLock(path string, fn func() error) error {
	if path == "" {
		return fmt.Errorf("mappingfile: path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mappingfile: create dir: %w", err)
	}
	fileLock := flock.New(LockFile(path))
	if err := fileLock.Lock(); err != nil {
		return fmt.Errorf("mappingfile: acquire lock: %w", err)
	}
	defer func() { _ = fileLock.Unlock() }()
	return fn()
}

func (w *Writer) write(path string, pairs map[string]string) error {
	format, err := FormatFor(path)
	if err != nil {
		return err
	}
	data, err := Encode(format, pairs)
	if err != nil {
		return err
	}
	perm := w.Perm
	if perm == 0 {
		perm = 0o644
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("mappingfile: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("mappingfile: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("mappingfile: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("mappingfile: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("mappingfile: replace %s: %w", path, err)
	}
	return nil
}

func readLocal(path string) (map[string]string, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mappingfile: read %s: %w", path, err)
	}
	flat, err := Decode(format, data)
	if err != nil {
		return nil, err
	}
	return Pairs(flat), nil
}
