package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash"

	"github.com/mesh-intelligence/othings/internal/logging"
	"github.com/mesh-intelligence/othings/internal/metrics"
)

// Backend routes snapshots to the external file when one is selected and to
// the local target otherwise. Flushes are serialized, so at most one write
// is in flight.
type Backend struct {
	mu       sync.Mutex
	local    Target
	external *FileTarget

	logger  logging.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// lastDigest is the xxhash of the last image written to lastTarget.
	lastDigest uint64
	lastTarget string
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithLogger sets the logger.
func WithLogger(l logging.Logger) BackendOption {
	return func(b *Backend) { b.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) BackendOption {
	return func(b *Backend) { b.metrics = m }
}

// WithClock sets the time source for savedAt stamps.
func WithClock(now func() time.Time) BackendOption {
	return func(b *Backend) { b.now = now }
}

// WithExternal selects an external file at construction time. Use
// Revalidate before the first Load to confirm it is still accessible.
func WithExternal(path string) BackendOption {
	return func(b *Backend) {
		if path != "" {
			b.external = NewFileTarget(path)
		}
	}
}

// NewBackend returns a backend writing to local unless an external file is
// selected.
func NewBackend(local Target, opts ...BackendOption) *Backend {
	b := &Backend{
		local:  local,
		logger: logging.Discard(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Mode reports where snapshots currently go.
func (b *Backend) Mode() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.current()
	return Status{Mode: t.Kind(), Label: t.Label()}
}

func (b *Backend) current() Target {
	if b.external != nil {
		return b.external
	}
	return b.local
}

// Load returns the most recent image. The external file is preferred; when
// it holds nothing usable the local snapshot is tried. ErrNoSnapshot means
// there is no prior state. When the external file cannot be read the backend
// switches to local and returns the local image with a *DegradedError.
func (b *Backend) Load(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var degraded error
	if b.external != nil {
		image, err := b.external.Load(ctx)
		switch {
		case err == nil:
			b.remember(b.external, image)
			return image, nil
		case errors.Is(err, ErrNoSnapshot):
			b.logger.InfoCtx(ctx, "external file holds no snapshot", "path", b.external.Label())
		case errors.Is(err, ErrCorruptSnapshot):
			b.logger.WarnCtx(ctx, "external snapshot unreadable, ignoring it", "path", b.external.Label(), "error", err)
		default:
			b.logger.WarnCtx(ctx, "external file unavailable, using local storage", "path", b.external.Label(), "error", err)
			degraded = &DegradedError{Target: b.external.Label(), Err: err}
			b.external = nil
		}
	}

	image, err := b.local.Load(ctx)
	if errors.Is(err, ErrCorruptSnapshot) {
		b.logger.WarnCtx(ctx, "local snapshot unreadable, starting fresh", "target", b.local.Label(), "error", err)
		err = ErrNoSnapshot
	}
	if err != nil {
		if degraded != nil && errors.Is(err, ErrNoSnapshot) {
			return nil, errors.Join(err, degraded)
		}
		return nil, err
	}
	b.remember(b.local, image)
	return image, degraded
}

// Flush writes image to the current target. If the external file fails,
// the image is written locally and a *DegradedError is returned; the backend
// stays in local mode afterwards. If both fail the errors are joined.
// An image identical to the last one written to the same target is skipped.
func (b *Backend) Flush(ctx context.Context, image []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	target := b.current()
	digest := xxhash.Sum64(image)
	if digest == b.lastDigest && target.Label() == b.lastTarget {
		b.metrics.Flushed(string(target.Kind()), metrics.ResultSkipped, 0, len(image))
		return nil
	}

	envelope, err := Encode(image, b.now())
	if err != nil {
		return err
	}

	err = b.save(ctx, target, envelope, len(image))
	if err == nil {
		b.remember(target, image)
		return nil
	}
	if target == b.local {
		return err
	}

	b.logger.WarnCtx(ctx, "external write failed, falling back to local storage",
		"path", target.Label(), "error", err)
	if lerr := b.save(ctx, b.local, envelope, len(image)); lerr != nil {
		b.logger.ErrorCtx(ctx, "local fallback write failed", "target", b.local.Label(), "error", lerr)
		return errors.Join(
			fmt.Errorf("writing external file: %w", err),
			fmt.Errorf("writing local fallback: %w", lerr),
		)
	}
	b.metrics.Flushed(string(ModeExternal), metrics.ResultFallback, 0, len(image))
	b.external = nil
	b.remember(b.local, image)
	return &DegradedError{Target: target.Label(), Err: err}
}

func (b *Backend) save(ctx context.Context, t Target, envelope []byte, size int) error {
	start := time.Now()
	err := t.Save(ctx, envelope)
	result := metrics.ResultOK
	if err != nil {
		result = metrics.ResultError
	}
	b.metrics.Flushed(string(t.Kind()), result, time.Since(start), size)
	if err == nil {
		b.logger.DebugCtx(ctx, "snapshot written", "target", t.Label(), "bytes", size)
	}
	return err
}

func (b *Backend) remember(t Target, image []byte) {
	b.lastDigest = xxhash.Sum64(image)
	b.lastTarget = t.Label()
}

// UseExternal asks picker for a file and makes it the current target. If the
// file already holds a valid snapshot it is returned so the caller can adopt
// it; otherwise the returned image is nil and the caller should flush its
// current state. ErrPickerUnsupported leaves the backend unchanged.
func (b *Backend) UseExternal(ctx context.Context, picker Picker) ([]byte, error) {
	path, err := picker.PickFile(ctx)
	if err != nil {
		return nil, err
	}
	ft := NewFileTarget(path)
	if err := ft.Revalidate(ctx); err != nil {
		return nil, fmt.Errorf("checking %s: %w", ft.Label(), err)
	}

	image, err := ft.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSnapshot):
		image = nil
	case errors.Is(err, ErrCorruptSnapshot):
		b.logger.WarnCtx(ctx, "selected file is not a snapshot, it will be overwritten", "path", ft.Label())
		image = nil
	default:
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.external = ft
	b.lastTarget = ""
	if image != nil {
		b.remember(ft, image)
	}
	b.logger.InfoCtx(ctx, "external sync file selected", "path", ft.Label())
	return image, nil
}

// UseLocal drops the external file and writes locally from now on.
func (b *Backend) UseLocal() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.external = nil
	b.lastTarget = ""
}

// Revalidate re-checks access to the external file. On failure the backend
// switches to local mode and returns a *DegradedError; in-memory state is
// untouched.
func (b *Backend) Revalidate(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.external == nil {
		return nil
	}
	if err := b.external.Revalidate(ctx); err != nil {
		label := b.external.Label()
		b.logger.WarnCtx(ctx, "external file permission lost, using local storage", "path", label, "error", err)
		b.external = nil
		b.lastTarget = ""
		return &DegradedError{Target: label, Err: err}
	}
	return nil
}

// Close releases the local target.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.local.Close()
}
