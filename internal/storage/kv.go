package storage

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/dgraph-io/badger/v4"
)

// KV is the subset of a key-value store the local target needs.
type KV interface {
	// Get returns a copy of the value or ErrNoSnapshot.
	Get(key []byte) ([]byte, error)
	// Set durably stores value under key.
	Set(key, value []byte) error
	Close() error
}

// PebbleKV stores snapshots in a pebble database.
type PebbleKV struct {
	db *pebble.DB
}

// OpenPebble opens or creates a pebble database in dir.
func OpenPebble(dir string) (*PebbleKV, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble at %s: %w", dir, err)
	}
	return &PebbleKV{db: db}, nil
}

// Get returns a copy of the value for key, or ErrNoSnapshot.
func (p *PebbleKV) Get(key []byte) ([]byte, error) {
	val, closer, err := p.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, nil
}

// Set writes value with a synced commit.
func (p *PebbleKV) Set(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

// Close closes the database.
func (p *PebbleKV) Close() error {
	return p.db.Close()
}

// BadgerKV stores snapshots in a badger database.
type BadgerKV struct {
	db *badger.DB
}

// OpenBadger opens or creates a badger database in dir.
func OpenBadger(dir string) (*BadgerKV, error) {
	opts := badger.DefaultOptions(dir).
		WithLogger(nil).
		WithSyncWrites(true)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return &BadgerKV{db: db}, nil
}

// Get returns a copy of the value for key, or ErrNoSnapshot.
func (b *BadgerKV) Get(key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set writes value in an update transaction.
func (b *BadgerKV) Set(key, value []byte) error {
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Close closes the database.
func (b *BadgerKV) Close() error {
	return b.db.Close()
}
