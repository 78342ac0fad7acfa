// Package store is the application root. It owns the engine, the
// persistence backend and the save scheduler, and hands out the
// repositories built on them.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/metrics"
	"github.com/mesh-intelligence/othings/internal/report"
	"github.com/mesh-intelligence/othings/internal/scheduler"
	"github.com/mesh-intelligence/othings/internal/search"
	"github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/internal/storage"
	"github.com/mesh-intelligence/othings/internal/transfer"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// Option configures Open.
type Option func(*options)

type options struct {
	logger     logging.Logger
	registerer prometheus.Registerer
	clock      scheduler.Clock
	now        func() time.Time
	local      storage.Target
	classifier search.Classifier
}

// WithLogger replaces the logger built from the config.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRegisterer registers the store metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithSchedulerClock sets the clock driving the save timer.
func WithSchedulerClock(c scheduler.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithNow sets the time source for record timestamps and snapshot stamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLocalTarget uses t instead of opening the configured local driver.
func WithLocalTarget(t storage.Target) Option {
	return func(o *options) { o.local = t }
}

// WithClassifier enables the LLM search mode.
func WithClassifier(c search.Classifier) Option {
	return func(o *options) { o.classifier = c }
}

// Store is an open inventory.
type Store struct {
	cfg     types.Config
	logger  logging.Logger
	metrics *metrics.Metrics

	backend  *storage.Backend
	engine   *sqlite.Engine
	sched    *scheduler.Scheduler
	reports  *report.Reporter
	searcher *search.Searcher

	mu       sync.Mutex
	warnings []string
	closed   bool
}

// Open builds the store for cfg. Configuration errors are returned; storage
// problems are not. When no durable target can be used the store runs in
// memory only and the reason is listed in Warnings.
func Open(ctx context.Context, cfg types.Config, opts ...Option) (*Store, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{now: time.Now, clock: scheduler.RealClock{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	}

	s := &Store{
		cfg:     cfg,
		logger:  o.logger,
		metrics: metrics.New(o.registerer),
	}

	local := o.local
	if local == nil {
		var err error
		local, err = storage.OpenLocal(cfg.LocalDriver, cfg.DataDir)
		if err != nil {
			s.warn(ctx, "local storage unavailable, changes will not be kept", err)
			local = storage.NewMemoryTarget()
		}
	}
	s.backend = storage.NewBackend(local,
		storage.WithLogger(s.logger),
		storage.WithMetrics(s.metrics),
		storage.WithClock(o.now),
		storage.WithExternal(cfg.ExternalFile),
	)
	if err := s.backend.Revalidate(ctx); err != nil {
		s.warn(ctx, "sync file unavailable, using local storage", err)
	}

	s.sched = scheduler.New(s.flush,
		scheduler.WithStrategy(cfg.SyncStrategy),
		scheduler.WithDelay(cfg.SaveDelay),
		scheduler.WithClock(o.clock),
		scheduler.WithErrorHandler(func(err error) {
			s.warn(context.Background(), "save failed, changes are kept in memory", err)
		}),
		scheduler.WithLogger(s.logger),
		scheduler.WithMetrics(s.metrics),
	)

	engine, err := s.openEngine(ctx, o.now)
	if err != nil {
		s.backend.Close()
		return nil, err
	}
	s.engine = engine

	s.reports, err = report.New(engine)
	if err != nil {
		engine.Close()
		s.backend.Close()
		return nil, err
	}
	s.searcher = search.New(engine, search.WithClassifier(o.classifier), search.WithLogger(s.logger))

	status := s.backend.Mode()
	s.logger.InfoCtx(ctx, "store opened", "mode", status.Mode, "target", status.Label, "sync", cfg.SyncStrategy)
	return s, nil
}

// openEngine loads the latest snapshot into a new engine. A snapshot that
// cannot be restored is treated as absent.
func (s *Store) openEngine(ctx context.Context, now func() time.Time) (*sqlite.Engine, error) {
	engineOpts := []sqlite.Option{
		sqlite.WithClock(now),
		sqlite.WithSaveRequester(s.sched),
		sqlite.WithProtectedCategories(s.cfg.ProtectSystemCategories),
	}
	engine, err := sqlite.Open(ctx, engineOpts...)
	if err != nil {
		return nil, err
	}

	image, err := s.backend.Load(ctx)
	if storage.IsDegraded(err) {
		s.warn(ctx, "sync file unavailable, using local storage", err)
	}
	switch {
	case image != nil:
		rerr := engine.Restore(ctx, image)
		if rerr == nil {
			return engine, nil
		}
		s.warn(ctx, "stored snapshot could not be restored, starting fresh", rerr)
		engine.Close()
		return sqlite.Open(ctx, engineOpts...)
	case err == nil, errors.Is(err, storage.ErrNoSnapshot):
		s.logger.InfoCtx(ctx, "no stored snapshot, starting fresh")
	default:
		s.warn(ctx, "stored snapshot could not be read, starting fresh", err)
	}
	return engine, nil
}

// flush writes the current engine image. A fallback to local storage is
// reported as a warning, not as a failed save.
func (s *Store) flush(ctx context.Context) error {
	image, err := s.engine.Snapshot(ctx)
	if err != nil {
		return err
	}
	err = s.backend.Flush(ctx, image)
	if storage.IsDegraded(err) {
		s.warn(ctx, "sync file write failed, saved to local storage", err)
		return nil
	}
	return err
}

func (s *Store) warn(ctx context.Context, msg string, err error) {
	s.logger.WarnCtx(ctx, msg, "error", err)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warnings = append(s.warnings, fmt.Sprintf("%s: %v", msg, err))
}

// Items returns the item repository.
func (s *Store) Items() *sqlite.ItemsTable { return s.engine.Items() }

// Categories returns the category repository.
func (s *Store) Categories() *sqlite.CategoriesTable { return s.engine.Categories() }

// Reminders returns the reminder repository.
func (s *Store) Reminders() *sqlite.RemindersTable { return s.engine.Reminders() }

// Settings returns the settings repository.
func (s *Store) Settings() *sqlite.SettingsTable { return s.engine.Settings() }

// Reports returns the reporter.
func (s *Store) Reports() *report.Reporter { return s.reports }

// Search returns the item searcher.
func (s *Store) Search() *search.Searcher { return s.searcher }

// Metrics returns the store metrics.
func (s *Store) Metrics() *metrics.Metrics { return s.metrics }

// Now returns the store clock, used to derive reminder statuses.
func (s *Store) Now() time.Time { return s.engine.Now() }

// Mode reports where snapshots currently go.
func (s *Store) Mode() storage.Status { return s.backend.Mode() }

// Warnings returns the persistence problems seen so far, oldest first.
func (s *Store) Warnings() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.warnings...)
}

// Pending reports whether changes are waiting for the save timer.
func (s *Store) Pending() bool { return s.sched.Pending() }

// SaveNow flushes immediately, bypassing the save timer.
func (s *Store) SaveNow(ctx context.Context) error {
	if s.isClosed() {
		return types.ErrClosed
	}
	return s.sched.FlushNow(ctx)
}

// UseExternal switches to a file chosen by picker. A file that already
// holds a snapshot replaces the in-memory state; otherwise the current state
// is written to it. A snapshot that cannot be restored leaves the in-memory
// state as it was and switches back to local storage.
func (s *Store) UseExternal(ctx context.Context, picker storage.Picker) error {
	if s.isClosed() {
		return types.ErrClosed
	}
	image, err := s.backend.UseExternal(ctx, picker)
	if err != nil {
		return err
	}
	if image != nil {
		if err := s.engine.Restore(ctx, image); err != nil {
			s.backend.UseLocal()
			return fmt.Errorf("adopting snapshot from sync file: %w", err)
		}
		return nil
	}
	return s.sched.FlushNow(ctx)
}

// UseLocal stops writing to the external file and saves the current state
// locally.
func (s *Store) UseLocal(ctx context.Context) error {
	if s.isClosed() {
		return types.ErrClosed
	}
	s.backend.UseLocal()
	return s.sched.FlushNow(ctx)
}

// Revalidate re-checks access to the external file. On failure the store
// switches to local storage and records a warning.
func (s *Store) Revalidate(ctx context.Context) error {
	err := s.backend.Revalidate(ctx)
	if storage.IsDegraded(err) {
		s.warn(ctx, "sync file unavailable, using local storage", err)
	}
	return err
}

// Export returns the whole database as an export document.
func (s *Store) Export(ctx context.Context) (types.ExportData, error) {
	return transfer.Export(ctx, s.engine)
}

// Preflight reports what importing data would add.
func (s *Store) Preflight(ctx context.Context, data types.ExportData) (types.PreflightResult, error) {
	return transfer.Preflight(ctx, s.engine, data)
}

// Import adds the records of data to the store.
func (s *Store) Import(ctx context.Context, data types.ExportData, opts ...transfer.ImportOption) (types.ImportReport, error) {
	opts = append([]transfer.ImportOption{transfer.WithLogger(s.logger)}, opts...)
	return transfer.Import(ctx, s.engine, data, opts...)
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close performs a final flush and releases the engine and the local
// target. Later calls return nil.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var errs []error
	if err := s.sched.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("final save: %w", err))
	}
	if err := s.engine.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.backend.Close(); err != nil {
		errs = append(errs, err)
	}
	s.logger.InfoCtx(ctx, "store closed")
	return errors.Join(errs...)
}
