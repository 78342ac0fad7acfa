package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DefaultExternalFileName is the conventional name for the sync file.
const DefaultExternalFileName = "othings-data.json"

// FileTarget writes the snapshot to a user-chosen file. Every save rewrites
// the whole file through a temp file and a rename, so readers never see a
// partial snapshot.
type FileTarget struct {
	path string
}

// NewFileTarget returns a target for path. A directory path gets the
// default file name appended.
func NewFileTarget(path string) *FileTarget {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, DefaultExternalFileName)
	}
	return &FileTarget{path: path}
}

// Kind reports ModeExternal.
func (f *FileTarget) Kind() Mode { return ModeExternal }

// Label returns the file path.
func (f *FileTarget) Label() string { return f.path }

// Path returns the resolved file path.
func (f *FileTarget) Path() string { return f.path }

// Load reads and unwraps the envelope in the file. A missing or empty file
// yields ErrNoSnapshot.
func (f *FileTarget) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, wrapPermission(fmt.Errorf("reading %s: %w", f.path, err))
	}
	if len(data) == 0 {
		return nil, ErrNoSnapshot
	}
	return Decode(data)
}

// Save atomically replaces the file with envelope.
func (f *FileTarget) Save(_ context.Context, envelope []byte) error {
	return wrapPermission(writeFileAtomic(f.path, envelope))
}

// Close is a no-op; the file is not held open between saves.
func (f *FileTarget) Close() error { return nil }

// Revalidate checks that the file can still be read and written. A missing
// file is fine as long as its directory accepts new files.
func (f *FileTarget) Revalidate(_ context.Context) error {
	file, err := os.OpenFile(f.path, os.O_RDWR, 0)
	if err == nil {
		return file.Close()
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return wrapPermission(err)
	}
	check, err := os.CreateTemp(filepath.Dir(f.path), ".othings-check-*")
	if err != nil {
		return wrapPermission(err)
	}
	name := check.Name()
	check.Close()
	return os.Remove(name)
}

func wrapPermission(err error) error {
	if err != nil && errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermission, err)
	}
	return err
}

// writeFileAtomic writes data to path using the temp-file, fsync, rename
// pattern.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
