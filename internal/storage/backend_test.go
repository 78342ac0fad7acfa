package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/othings/internal/metrics"
)

func setupBackend(t *testing.T, opts ...BackendOption) (*Backend, *MemoryTarget) {
	t.Helper()
	local := NewMemoryTarget()
	b := NewBackend(local, opts...)
	t.Cleanup(func() { b.Close() })
	return b, local
}

func TestBackendLocalFlushAndLoad(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)

	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, b.Flush(ctx, []byte("state-1")))
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("state-1"), got)
	assert.Equal(t, ModeMemory, b.Mode().Mode)
}

func TestBackendSkipsUnchangedImage(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	b, _ := setupBackend(t, WithMetrics(m))

	require.NoError(t, b.Flush(ctx, []byte("same")))
	require.NoError(t, b.Flush(ctx, []byte("same")))
	require.NoError(t, b.Flush(ctx, []byte("different")))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Flushes.WithLabelValues(string(ModeMemory), metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues(string(ModeMemory), metrics.ResultSkipped)))
}

func TestBackendCorruptLocalIsNoSnapshot(t *testing.T) {
	ctx := context.Background()
	b, local := setupBackend(t)
	require.NoError(t, local.Save(ctx, []byte(`{"version":"v9","content":[1]}`)))

	_, err := b.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)
}

func TestBackendUseExternalWritesCurrentState(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	path := filepath.Join(t.TempDir(), "othings-data.json")

	image, err := b.UseExternal(ctx, PathPicker(path))
	require.NoError(t, err)
	assert.Nil(t, image, "a new file has no snapshot to adopt")
	assert.Equal(t, Status{Mode: ModeExternal, Label: path}, b.Mode())

	require.NoError(t, b.Flush(ctx, []byte("cloud")))
	got, err := NewFileTarget(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("cloud"), got)
}

func TestBackendUseExternalAdoptsExistingSnapshot(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.json")
	env, err := Encode([]byte("from-other-device"), b0())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, env, 0o600))

	b, _ := setupBackend(t)
	image, err := b.UseExternal(ctx, PathPicker(path))
	require.NoError(t, err)
	assert.Equal(t, []byte("from-other-device"), image)
}

func TestBackendUseExternalUnsupportedPicker(t *testing.T) {
	b, _ := setupBackend(t)
	_, err := b.UseExternal(context.Background(), NoPicker{})
	assert.ErrorIs(t, err, ErrPickerUnsupported)
	assert.Equal(t, ModeMemory, b.Mode().Mode)
}

func TestBackendExternalFailureFallsBackToLocal(t *testing.T) {
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	b, local := setupBackend(t, WithMetrics(m))
	dir := filepath.Join(t.TempDir(), "cloud")
	require.NoError(t, os.Mkdir(dir, 0o700))

	_, err := b.UseExternal(ctx, PathPicker(filepath.Join(dir, "data.json")))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = b.Flush(ctx, []byte("precious"))
	require.Error(t, err)
	var degraded *DegradedError
	require.True(t, errors.As(err, &degraded))
	assert.True(t, IsDegraded(err))

	got, err := local.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("precious"), got, "data reaches local storage")
	assert.Equal(t, ModeMemory, b.Mode().Mode, "backend stays local after degrading")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Flushes.WithLabelValues(string(ModeExternal), metrics.ResultFallback)))
}

func TestBackendBothTargetsFail(t *testing.T) {
	ctx := context.Background()
	b, local := setupBackend(t)
	local.FailSave = errors.New("quota exceeded")
	dir := filepath.Join(t.TempDir(), "cloud")
	require.NoError(t, os.Mkdir(dir, 0o700))
	_, err := b.UseExternal(ctx, PathPicker(filepath.Join(dir, "data.json")))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	err = b.Flush(ctx, []byte("x"))
	require.Error(t, err)
	assert.False(t, IsDegraded(err))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestBackendRevalidateFallsBack(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "cloud")
	require.NoError(t, os.Mkdir(dir, 0o700))
	b, _ := setupBackend(t, WithExternal(filepath.Join(dir, "data.json")))
	require.NoError(t, b.Revalidate(ctx))
	assert.Equal(t, ModeExternal, b.Mode().Mode)

	require.NoError(t, os.RemoveAll(dir))
	err := b.Revalidate(ctx)
	assert.True(t, IsDegraded(err))
	assert.Equal(t, ModeMemory, b.Mode().Mode)
}

func TestBackendLoadPrefersExternal(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.json")
	b, local := setupBackend(t, WithExternal(path))

	env, err := Encode([]byte("local"), b0())
	require.NoError(t, err)
	require.NoError(t, local.Save(ctx, env))

	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("local"), got, "an empty external file falls back to the local snapshot")

	env, err = Encode([]byte("external"), b0())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, env, 0o600))
	got, err = b.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("external"), got)
}

func TestBackendUseLocal(t *testing.T) {
	ctx := context.Background()
	b, _ := setupBackend(t)
	_, err := b.UseExternal(ctx, PathPicker(filepath.Join(t.TempDir(), "d.json")))
	require.NoError(t, err)
	b.UseLocal()
	assert.Equal(t, ModeMemory, b.Mode().Mode)
}
