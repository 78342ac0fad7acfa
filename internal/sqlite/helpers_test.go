package sqlite

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// fixedNow is the clock reading used by repository tests.
var fixedNow = time.Date(2024, time.March, 10, 12, 0, 0, 0, time.UTC)

// countingSaver records how many saves were requested.
type countingSaver struct {
	n atomic.Int32
}

func (c *countingSaver) RequestSave() { c.n.Add(1) }

func (c *countingSaver) count() int { return int(c.n.Load()) }

// setupEngine opens an engine with a fixed clock and a counting saver.
func setupEngine(t *testing.T, opts ...Option) (*Engine, *countingSaver) {
	t.Helper()
	saver := &countingSaver{}
	opts = append([]Option{
		WithClock(func() time.Time { return fixedNow }),
		WithSaveRequester(saver),
	}, opts...)
	e, err := Open(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e, saver
}

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func intPtr(i int) *int { return &i }

func mustCreateCategory(t *testing.T, e *Engine, name string) types.Category {
	t.Helper()
	c, err := e.Categories().Create(context.Background(), types.CategoryInput{Name: name})
	require.NoError(t, err)
	return c
}

func mustCreateItem(t *testing.T, e *Engine, in types.ItemInput) types.Item {
	t.Helper()
	it, err := e.Items().Create(context.Background(), in)
	require.NoError(t, err)
	return it
}

func mustCreateReminder(t *testing.T, e *Engine, in types.ReminderInput) types.Reminder {
	t.Helper()
	r, err := e.Reminders().Create(context.Background(), in)
	require.NoError(t, err)
	return r
}
