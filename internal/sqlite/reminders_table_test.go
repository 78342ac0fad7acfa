package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/othings/pkg/types"
)

func TestReminderCreateDefaults(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Boiler"})

	r := mustCreateReminder(t, e, types.ReminderInput{ItemID: item.ID, Title: "Service", DueDate: "2024-09-01"})
	assert.Equal(t, types.DefaultNotifyBefore, r.NotifyBefore)
	assert.False(t, r.Completed)
	assert.Nil(t, r.CompletedAt)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)

	got, ok, err := e.Reminders().FindByID(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, r, got)

	_, err = e.Reminders().Create(ctx, types.ReminderInput{ItemID: "ghost", Title: "x", DueDate: "2024-09-01"})
	assert.ErrorIs(t, err, types.ErrInvalidReference)
}

func TestReminderCompletionTransitions(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Smoke alarm"})
	r := mustCreateReminder(t, e, types.ReminderInput{ItemID: item.ID, Title: "Battery", DueDate: "2024-03-01"})

	done, err := e.Reminders().MarkComplete(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, done.Completed)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, done.UpdatedAt, *done.CompletedAt)

	again, err := e.Reminders().MarkComplete(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, *done.CompletedAt, *again.CompletedAt, "completing twice keeps the first stamp")

	reopened, err := e.Reminders().MarkIncomplete(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, reopened.Completed)
	assert.Nil(t, reopened.CompletedAt)

	_, err = e.Reminders().MarkComplete(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestReminderOrderingAndLookup(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	a := mustCreateItem(t, e, types.ItemInput{Name: "A"})
	b := mustCreateItem(t, e, types.ItemInput{Name: "B"})
	mustCreateReminder(t, e, types.ReminderInput{ItemID: a.ID, Title: "late", DueDate: "2024-12-01"})
	mustCreateReminder(t, e, types.ReminderInput{ItemID: b.ID, Title: "early", DueDate: "2024-01-01"})
	mustCreateReminder(t, e, types.ReminderInput{ItemID: a.ID, Title: "middle", DueDate: "2024-06-01"})

	all, err := e.Reminders().FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"early", "middle", "late"}, []string{all[0].Title, all[1].Title, all[2].Title})

	forA, err := e.Reminders().FindByItemID(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, forA, 2)

	require.NoError(t, e.Reminders().Delete(ctx, all[0].ID))
	require.NoError(t, e.Reminders().Delete(ctx, all[0].ID))
	n, err := e.Reminders().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestReminderGetByStatusPartition(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "House"})

	due := []string{"2024-02-01", "2024-03-10", "2024-03-15", "2024-05-01", "2024-01-01"}
	var ids []string
	for _, d := range due {
		r := mustCreateReminder(t, e, types.ReminderInput{ItemID: item.ID, Title: d, DueDate: d})
		ids = append(ids, r.ID)
	}
	_, err := e.Reminders().MarkComplete(ctx, ids[4])
	require.NoError(t, err)

	b, err := e.Reminders().GetByStatus(ctx)
	require.NoError(t, err)

	assert.Equal(t, len(due), b.Len(), "every reminder lands in exactly one bucket")
	seen := map[string]int{}
	for _, bucket := range [][]types.Reminder{b.Overdue, b.Upcoming, b.Completed, b.Scheduled} {
		for _, r := range bucket {
			seen[r.ID]++
		}
	}
	for _, id := range ids {
		assert.Equal(t, 1, seen[id])
	}

	require.Len(t, b.Overdue, 1)
	assert.Equal(t, "2024-02-01", b.Overdue[0].DueDate)
	require.Len(t, b.Upcoming, 2)
	require.Len(t, b.Completed, 1)
	require.Len(t, b.Scheduled, 1)
	assert.Equal(t, "2024-05-01", b.Scheduled[0].DueDate)
}

func TestWarrantyScenario(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	cat, err := e.Categories().Create(ctx, types.CategoryInput{Name: "Gadgets", Color: "#6366f1"})
	require.NoError(t, err)
	laptop := mustCreateItem(t, e, types.ItemInput{
		Name: "Laptop", CategoryID: &cat.ID, Quantity: 1, PurchasePrice: floatPtr(1200),
	})
	dueDate := fixedNow.AddDate(0, 0, 10).Format(types.DateLayout)
	r := mustCreateReminder(t, e, types.ReminderInput{
		ItemID: laptop.ID, Title: "Warranty check", DueDate: dueDate, NotifyBefore: intPtr(7),
	})

	b, err := e.Reminders().GetByStatusAt(ctx, fixedNow)
	require.NoError(t, err)
	assert.Empty(t, b.Upcoming)
	require.Len(t, b.Scheduled, 1)

	b, err = e.Reminders().GetByStatusAt(ctx, fixedNow.Add(3*24*time.Hour))
	require.NoError(t, err)
	require.Len(t, b.Upcoming, 1)
	assert.Equal(t, r.ID, b.Upcoming[0].ID)

	require.NoError(t, e.Categories().Delete(ctx, cat.ID))
	it, ok, err := e.Items().FindByID(ctx, laptop.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, it.CategoryID)
	_, ok, err = e.Reminders().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, ok, "reminder survives category deletion")

	require.NoError(t, e.Items().Delete(ctx, laptop.ID))
	_, ok, err = e.Reminders().FindByID(ctx, r.ID)
	require.NoError(t, err)
	assert.False(t, ok, "reminder is removed with its item")
}

func TestReminderInsertKeepsCompletion(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Piano"})
	at := time.Date(2023, time.May, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, e.Reminders().Insert(ctx, types.Reminder{
		ID: "rem-1", ItemID: item.ID, Title: "Tune", DueDate: "2023-05-01",
		Completed: true, CompletedAt: &at, NotifyBefore: 3, CreatedAt: at, UpdatedAt: at,
	}))
	got, ok, err := e.Reminders().FindByID(ctx, "rem-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Completed)
	assert.Equal(t, at, *got.CompletedAt)
	assert.Equal(t, 3, got.NotifyBefore)

	err = e.Reminders().Insert(ctx, types.Reminder{ID: "rem-2", ItemID: "ghost", Title: "x", DueDate: "2023-05-01"})
	assert.ErrorIs(t, err, types.ErrInvalidReference)
}
