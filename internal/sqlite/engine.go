// Package sqlite holds the in-memory relational engine and the repositories
// built on it. The engine lives entirely in memory; durability comes from
// snapshots handed to the storage backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	msqlite "modernc.org/sqlite"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// ErrSnapshotUnsupported is returned when the driver connection cannot
// serialize or restore the database image.
var ErrSnapshotUnsupported = errors.New("sqlite driver does not support snapshots")

// SaveRequester is notified after every committed mutation.
type SaveRequester interface {
	RequestSave()
}

// SaveRequesterFunc adapts a plain function to SaveRequester.
type SaveRequesterFunc func()

// RequestSave calls f.
func (f SaveRequesterFunc) RequestSave() { f() }

type noopSaver struct{}

func (noopSaver) RequestSave() {}

// serializer and restorer are implemented by modernc.org/sqlite driver
// connections.
type serializer interface {
	Serialize() ([]byte, error)
}

type restorer interface {
	NewRestore(srcURI string) (*msqlite.Backup, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSaveRequester sets the hook called after each mutation.
func WithSaveRequester(s SaveRequester) Option {
	return func(e *Engine) {
		if s != nil {
			e.saver = s
		}
	}
}

// WithProtectedCategories rejects deletion of built-in categories.
func WithProtectedCategories(protect bool) Option {
	return func(e *Engine) { e.protectSystem = protect }
}

// Engine is the in-memory SQLite database plus its repositories.
type Engine struct {
	mu     sync.Mutex
	db     *sql.DB
	closed bool

	now           func() time.Time
	saver         SaveRequester
	protectSystem bool

	// lastStamp keeps updatedAt strictly increasing within a session.
	lastStamp time.Time

	items      *ItemsTable
	categories *CategoriesTable
	reminders  *RemindersTable
	settings   *SettingsTable
}

// Open creates an empty in-memory database, applies the schema and seeds the
// default categories.
func Open(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{
		now:   time.Now,
		saver: noopSaver{},
	}
	for _, opt := range opts {
		opt(e)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening engine: %w", err)
	}
	// Each pooled connection would get its own private :memory: database,
	// so the pool is pinned to a single connection that is never recycled.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	e.db = db

	if err := e.ensureSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	e.items = &ItemsTable{engine: e}
	e.categories = &CategoriesTable{engine: e}
	e.reminders = &RemindersTable{engine: e}
	e.settings = &SettingsTable{engine: e}
	return e, nil
}

// DB exposes the underlying handle for read-only reporting queries.
func (e *Engine) DB() *sql.DB { return e.db }

// Items returns the item repository.
func (e *Engine) Items() *ItemsTable { return e.items }

// Categories returns the category repository.
func (e *Engine) Categories() *CategoriesTable { return e.categories }

// Reminders returns the reminder repository.
func (e *Engine) Reminders() *RemindersTable { return e.reminders }

// Settings returns the settings repository.
func (e *Engine) Settings() *SettingsTable { return e.settings }

// Now returns the engine clock reading.
func (e *Engine) Now() time.Time { return e.now() }

// EnsureSchema re-applies the schema. Safe to call at any time.
func (e *Engine) EnsureSchema(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return types.ErrClosed
	}
	return e.ensureSchema(ctx)
}

func (e *Engine) ensureSchema(ctx context.Context) error {
	if err := EnsureSchema(ctx, e.db); err != nil {
		return err
	}
	return seedDefaultCategories(ctx, e.db, e.stamp())
}

// Snapshot returns the serialized database image.
func (e *Engine) Snapshot(ctx context.Context) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, types.ErrClosed
	}

	var image []byte
	err := e.withDriverConn(ctx, func(driverConn any) error {
		s, ok := driverConn.(serializer)
		if !ok {
			return ErrSnapshotUnsupported
		}
		var err error
		image, err = s.Serialize()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("serializing engine: %w", err)
	}
	return image, nil
}

// Restore replaces the whole database with image. The image is first written
// to a staging file, migrated to the current schema and checked; only then
// are its pages copied into the live database. An image that fails any step
// leaves the live database untouched.
func (e *Engine) Restore(ctx context.Context, image []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return types.ErrClosed
	}
	if len(image) == 0 {
		return errors.New("restoring engine: empty image")
	}

	path, err := writeStagingFile(image)
	if err != nil {
		return fmt.Errorf("restoring engine: %w", err)
	}
	defer os.Remove(path)

	if err := e.prepareStaging(ctx, path); err != nil {
		return fmt.Errorf("restoring engine: %w", err)
	}

	err = e.withDriverConn(ctx, func(driverConn any) error {
		r, ok := driverConn.(restorer)
		if !ok {
			return ErrSnapshotUnsupported
		}
		bk, err := r.NewRestore(path)
		if err != nil {
			return err
		}
		for {
			more, err := bk.Step(-1)
			if err != nil {
				bk.Finish()
				return err
			}
			if !more {
				break
			}
		}
		return bk.Finish()
	})
	if err != nil {
		return fmt.Errorf("restoring engine: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enabling foreign keys: %w", err)
	}
	e.lastStamp = time.Time{}
	return nil
}

func writeStagingFile(image []byte) (string, error) {
	f, err := os.CreateTemp("", "othings-restore-*.db")
	if err != nil {
		return "", fmt.Errorf("creating staging file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("writing staging file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing staging file: %w", err)
	}
	return path, nil
}

// prepareStaging opens the staged image as its own database, brings it to
// the current schema, checks it and matches its page size to the live
// database, which the page copy requires. The caller must hold e.mu.
func (e *Engine) prepareStaging(ctx context.Context, path string) error {
	staging, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening staged image: %w", err)
	}
	defer staging.Close()
	staging.SetMaxOpenConns(1)

	if err := checkIntegrity(ctx, staging); err != nil {
		return err
	}
	if err := EnsureSchema(ctx, staging); err != nil {
		return err
	}
	if err := seedDefaultCategories(ctx, staging, e.stamp()); err != nil {
		return err
	}

	var livePage, stagedPage int
	if err := e.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&livePage); err != nil {
		return fmt.Errorf("reading page size: %w", err)
	}
	if err := staging.QueryRowContext(ctx, "PRAGMA page_size").Scan(&stagedPage); err != nil {
		return fmt.Errorf("reading staged page size: %w", err)
	}
	if livePage != stagedPage {
		if _, err := staging.ExecContext(ctx, fmt.Sprintf("PRAGMA page_size = %d", livePage)); err != nil {
			return fmt.Errorf("setting staged page size: %w", err)
		}
		if _, err := staging.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("rebuilding staged image: %w", err)
		}
	}
	return nil
}

func checkIntegrity(ctx context.Context, db *sql.DB) error {
	var result string
	if err := db.QueryRowContext(ctx, "PRAGMA quick_check").Scan(&result); err != nil {
		return fmt.Errorf("checking restored image: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("restored image failed integrity check: %s", result)
	}
	return nil
}

// withDriverConn runs fn with the raw driver connection behind the pinned
// pool connection.
func (e *Engine) withDriverConn(ctx context.Context, fn func(driverConn any) error) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Raw(fn)
}

// Close releases the database. Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.db.Close()
}

// mutate runs fn inside a write transaction under the engine lock. When fn
// reports a change and the commit succeeds, a save is requested after the
// lock is released, so a synchronous flush can take a snapshot.
func (e *Engine) mutate(ctx context.Context, fn func(tx *sql.Tx) (bool, error)) error {
	changed, err := func() (bool, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			return false, types.ErrClosed
		}

		tx, err := e.db.BeginTx(ctx, nil)
		if err != nil {
			return false, fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		changed, err := fn(tx)
		if err != nil {
			return false, err
		}
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("committing transaction: %w", err)
		}
		return changed, nil
	}()
	if err != nil {
		return err
	}
	if changed {
		e.saver.RequestSave()
	}
	return nil
}

// Read runs fn with the database handle under the engine lock, so reads from
// outside the package never interleave with a mutation or a restore. fn must
// not call back into the engine.
func (e *Engine) Read(fn func(db *sql.DB) error) error { return e.query(fn) }

// query runs fn under the engine lock. Reads never use a cache.
func (e *Engine) query(fn func(db *sql.DB) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return types.ErrClosed
	}
	return fn(e.db)
}

// stamp returns the next mutation timestamp. Timestamps are truncated to
// milliseconds and always move forward, even when the clock does not.
// The caller must hold e.mu.
func (e *Engine) stamp() time.Time {
	t := e.now().UTC().Truncate(time.Millisecond)
	if !t.After(e.lastStamp) {
		t = e.lastStamp.Add(time.Millisecond)
	}
	e.lastStamp = t
	return t
}

// after returns a timestamp strictly later than prev and not earlier than the
// next clock stamp. The caller must hold e.mu.
func (e *Engine) after(prev time.Time) time.Time {
	t := e.stamp()
	if !t.After(prev) {
		t = prev.Add(time.Millisecond)
		e.lastStamp = t
	}
	return t
}

// newID generates a new UUID v7 for entity IDs.
func newID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating UUID v7: %w", err)
	}
	return id.String(), nil
}
