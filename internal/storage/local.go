package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// SnapshotKey is the namespaced key holding the local snapshot.
const SnapshotKey = "othings-db"

// LocalTarget keeps the snapshot under SnapshotKey in a KV store.
type LocalTarget struct {
	kv    KV
	label string
}

// NewLocalTarget wraps kv. label describes the store in status output.
func NewLocalTarget(kv KV, label string) *LocalTarget {
	return &LocalTarget{kv: kv, label: label}
}

// OpenLocal opens the local target for driver under dataDir.
func OpenLocal(driver, dataDir string) (Target, error) {
	switch driver {
	case types.DriverPebble, "":
		dir := filepath.Join(dataDir, "pebble")
		kv, err := OpenPebble(dir)
		if err != nil {
			return nil, err
		}
		return NewLocalTarget(kv, "pebble:"+dir), nil
	case types.DriverBadger:
		dir := filepath.Join(dataDir, "badger")
		kv, err := OpenBadger(dir)
		if err != nil {
			return nil, err
		}
		return NewLocalTarget(kv, "badger:"+dir), nil
	case types.DriverMemory:
		return NewMemoryTarget(), nil
	}
	return nil, fmt.Errorf("%w: %s", types.ErrDriverUnknown, driver)
}

// Kind reports ModeLocal.
func (l *LocalTarget) Kind() Mode { return ModeLocal }

// Label returns the driver name and directory, such as "pebble:/path".
func (l *LocalTarget) Label() string { return l.label }

// Load reads the envelope stored under SnapshotKey and unwraps it.
func (l *LocalTarget) Load(_ context.Context) ([]byte, error) {
	data, err := l.kv.Get([]byte(SnapshotKey))
	if err != nil {
		if errors.Is(err, ErrNoSnapshot) {
			return nil, err
		}
		return nil, fmt.Errorf("reading local snapshot: %w", err)
	}
	return Decode(data)
}

// Save stores envelope under SnapshotKey.
func (l *LocalTarget) Save(_ context.Context, envelope []byte) error {
	if err := l.kv.Set([]byte(SnapshotKey), envelope); err != nil {
		return fmt.Errorf("writing local snapshot: %w", err)
	}
	return nil
}

// Close closes the key-value store.
func (l *LocalTarget) Close() error { return l.kv.Close() }

// MemoryTarget keeps the snapshot in process memory. It backs degraded
// operation when no durable store can be opened.
type MemoryTarget struct {
	mu   sync.Mutex
	data []byte

	// FailSave, when set, is returned by Save.
	FailSave error
}

// NewMemoryTarget returns an empty in-memory target.
func NewMemoryTarget() *MemoryTarget { return &MemoryTarget{} }

// Kind reports ModeMemory.
func (m *MemoryTarget) Kind() Mode { return ModeMemory }

// Label returns a fixed description of the target.
func (m *MemoryTarget) Label() string { return "in-memory only" }

// Load unwraps the last saved envelope.
func (m *MemoryTarget) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil, ErrNoSnapshot
	}
	return Decode(m.data)
}

// Save keeps a copy of envelope, or returns FailSave when it is set.
func (m *MemoryTarget) Save(_ context.Context, envelope []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.data = append([]byte(nil), envelope...)
	return nil
}

// Close is a no-op.
func (m *MemoryTarget) Close() error { return nil }
