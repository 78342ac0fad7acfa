package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/othings/pkg/types"
)

func TestItemCreateAndFindByID(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, e, "Office")

	in := types.ItemInput{
		Name:           "Monitor",
		CategoryID:     &cat.ID,
		Quantity:       2,
		Description:    "27 inch",
		Location:       "Desk",
		Status:         types.ItemStatusInactive,
		PurchasePrice:  floatPtr(249.99),
		PurchaseDate:   strPtr("2023-11-24"),
		WarrantyExpiry: strPtr("2026-11-24"),
		CustomFields:   map[string]any{"serial": "MN-1", "hdr": true},
	}
	created := mustCreateItem(t, e, in)

	got, ok, err := e.Items().FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got)

	assert.NotEmpty(t, got.ID)
	assert.Equal(t, in.Name, got.Name)
	assert.Equal(t, cat.ID, *got.CategoryID)
	assert.Equal(t, 2, got.Quantity)
	assert.Equal(t, "27 inch", got.Description)
	assert.Equal(t, "Desk", got.Location)
	assert.Equal(t, types.ItemStatusInactive, got.Status)
	assert.Equal(t, 249.99, *got.PurchasePrice)
	assert.Equal(t, "2023-11-24", *got.PurchaseDate)
	assert.Equal(t, "2026-11-24", *got.WarrantyExpiry)
	assert.Equal(t, map[string]any{"serial": "MN-1", "hdr": true}, got.CustomFields)
	assert.Equal(t, got.CreatedAt, got.UpdatedAt)
}

func TestItemCreateAppliesDefaults(t *testing.T) {
	e, _ := setupEngine(t)

	got := mustCreateItem(t, e, types.ItemInput{Name: "Spoon"})

	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, types.ItemStatusActive, got.Status)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.PurchasePrice)
	assert.Nil(t, got.CustomFields)
}

func TestItemFindByIDMissing(t *testing.T) {
	e, _ := setupEngine(t)

	_, ok, err := e.Items().FindByID(context.Background(), "no-such-id")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestItemCreateRejects(t *testing.T) {
	tests := []struct {
		name    string
		input   types.ItemInput
		wantErr error
	}{
		{"empty name", types.ItemInput{Name: ""}, types.ErrInvalidName},
		{"bad status", types.ItemInput{Name: "x", Status: "sold"}, types.ErrInvalidStatus},
		{"unknown category", types.ItemInput{Name: "x", CategoryID: strPtr("nope")}, types.ErrInvalidReference},
		{"negative price", types.ItemInput{Name: "x", PurchasePrice: floatPtr(-3)}, types.ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := setupEngine(t)
			_, err := e.Items().Create(context.Background(), tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrValidation)
			assert.False(t, errors.Is(err, types.ErrNotFound))

			n, err := e.Items().Count(context.Background(), types.ItemFilter{})
			require.NoError(t, err)
			assert.Equal(t, 0, n, "rejected input must not write")
		})
	}
}

func TestItemUpdateEmptyPatchBumpsUpdatedAt(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Lamp", PurchasePrice: floatPtr(20)})

	updated, err := e.Items().Update(ctx, item.ID, types.ItemPatch{})
	require.NoError(t, err)

	assert.True(t, updated.UpdatedAt.After(item.UpdatedAt), "updatedAt must strictly increase")
	updated.UpdatedAt = item.UpdatedAt
	assert.Equal(t, item, updated)
}

func TestItemUpdateSuppliedFieldsOnly(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	cat := mustCreateCategory(t, e, "Bikes")
	item := mustCreateItem(t, e, types.ItemInput{
		Name: "Bike", CategoryID: &cat.ID, Location: "Shed", PurchasePrice: floatPtr(400),
	})

	status := types.ItemStatusDiscarded
	updated, err := e.Items().Update(ctx, item.ID, types.ItemPatch{
		Quantity:      intPtr(3),
		Status:        &status,
		PurchasePrice: types.Null[float64](),
		CategoryID:    types.Null[string](),
	})
	require.NoError(t, err)

	assert.Equal(t, "Bike", updated.Name)
	assert.Equal(t, "Shed", updated.Location)
	assert.Equal(t, 3, updated.Quantity)
	assert.Equal(t, types.ItemStatusDiscarded, updated.Status)
	assert.Nil(t, updated.PurchasePrice)
	assert.Nil(t, updated.CategoryID)
	assert.Equal(t, item.CreatedAt, updated.CreatedAt)
}

func TestItemUpdateErrors(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Rug"})

	_, err := e.Items().Update(ctx, "missing", types.ItemPatch{Name: strPtr("x")})
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.False(t, errors.Is(err, types.ErrValidation))

	_, err = e.Items().Update(ctx, item.ID, types.ItemPatch{Quantity: intPtr(0)})
	assert.ErrorIs(t, err, types.ErrValidation)

	_, err = e.Items().Update(ctx, item.ID, types.ItemPatch{CategoryID: types.Set("ghost")})
	assert.ErrorIs(t, err, types.ErrInvalidReference)
}

func TestItemUpdatedAtIncreasesWithStoppedClock(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Clock"})

	prev := item.UpdatedAt
	for i := 0; i < 3; i++ {
		got, err := e.Items().Update(ctx, item.ID, types.ItemPatch{})
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(prev))
		prev = got.UpdatedAt
	}
}

func TestItemFindAllFilters(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	tools := mustCreateCategory(t, e, "Workshop")

	mustCreateItem(t, e, types.ItemInput{Name: "Hammer", CategoryID: &tools.ID, Location: "Garage"})
	mustCreateItem(t, e, types.ItemInput{Name: "Saw", CategoryID: &tools.ID, Location: "Garage", Status: types.ItemStatusInactive})
	mustCreateItem(t, e, types.ItemInput{Name: "Vase", Description: "from the garage sale", Location: "Hall"})
	mustCreateItem(t, e, types.ItemInput{Name: "100% cotton shirt", Location: "Closet"})

	names := func(items []types.Item) []string {
		var out []string
		for _, it := range items {
			out = append(out, it.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter types.ItemFilter
		want   []string
	}{
		{"no filter", types.ItemFilter{}, []string{"100% cotton shirt", "Vase", "Saw", "Hammer"}},
		{"search matches name description and location", types.ItemFilter{Search: "garage"}, []string{"Vase", "Saw", "Hammer"}},
		{"category", types.ItemFilter{CategoryID: tools.ID}, []string{"Saw", "Hammer"}},
		{"status", types.ItemFilter{Status: types.ItemStatusInactive}, []string{"Saw"}},
		{"location exact", types.ItemFilter{Location: "Garage"}, []string{"Saw", "Hammer"}},
		{"and semantics", types.ItemFilter{Search: "a", CategoryID: tools.ID, Status: types.ItemStatusActive}, []string{"Hammer"}},
		{"wildcards are literal", types.ItemFilter{Search: "%"}, []string{"100% cotton shirt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := e.Items().FindAll(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(items))

			n, err := e.Items().Count(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), n)
		})
	}
}

func TestItemDeleteCascadesReminders(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	item := mustCreateItem(t, e, types.ItemInput{Name: "Car"})
	other := mustCreateItem(t, e, types.ItemInput{Name: "Boat"})
	for _, title := range []string{"Oil", "Tires", "Inspection"} {
		mustCreateReminder(t, e, types.ReminderInput{ItemID: item.ID, Title: title, DueDate: "2024-06-01"})
	}
	mustCreateReminder(t, e, types.ReminderInput{ItemID: other.ID, Title: "Hull", DueDate: "2024-06-01"})

	require.NoError(t, e.Items().Delete(ctx, item.ID))

	n, err := e.Reminders().Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	rems, err := e.Reminders().FindByItemID(ctx, item.ID)
	require.NoError(t, err)
	assert.Empty(t, rems)

	require.NoError(t, e.Items().Delete(ctx, item.ID), "deleting twice is not an error")
}

func TestItemAggregates(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	mustCreateItem(t, e, types.ItemInput{Name: "A", Quantity: 2, PurchasePrice: floatPtr(10), Location: "Attic"})
	mustCreateItem(t, e, types.ItemInput{Name: "B", Quantity: 1, Location: "Basement"})
	mustCreateItem(t, e, types.ItemInput{Name: "C", Quantity: 3, PurchasePrice: floatPtr(5), Location: "Attic"})
	mustCreateItem(t, e, types.ItemInput{Name: "D"})

	value, err := e.Items().TotalValue(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 35.0, value, 1e-9)

	qty, err := e.Items().TotalQuantity(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, qty)

	locs, err := e.Items().Locations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Attic", "Basement"}, locs)

	month, err := e.Items().CountThisMonth(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, month)

	later, err := e.Items().CountCreatedSince(ctx, fixedNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, later)
}

func TestItemAggregatesEmpty(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()

	value, err := e.Items().TotalValue(ctx)
	require.NoError(t, err)
	assert.Zero(t, value)

	qty, err := e.Items().TotalQuantity(ctx)
	require.NoError(t, err)
	assert.Zero(t, qty)

	locs, err := e.Items().Locations(ctx)
	require.NoError(t, err)
	assert.Empty(t, locs)
}

func TestItemInsertKeepsIdentity(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	created := time.Date(2022, time.January, 5, 9, 30, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	it := types.Item{
		ID: "imported-1", Name: "Globe", Quantity: 1, Status: types.ItemStatusActive,
		CreatedAt: created, UpdatedAt: updated,
	}
	require.NoError(t, e.Items().Insert(ctx, it))

	got, ok, err := e.Items().FindByID(ctx, "imported-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, updated, got.UpdatedAt)

	err = e.Items().Insert(ctx, it)
	assert.ErrorIs(t, err, types.ErrAlreadyExists)
}

func TestStartOfMonth(t *testing.T) {
	got := StartOfMonth(time.Date(2024, time.February, 29, 23, 59, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestItemFindPage(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	for _, name := range []string{"A", "B", "C", "D", "E"} {
		mustCreateItem(t, e, types.ItemInput{Name: name, Location: "Shed"})
	}
	mustCreateItem(t, e, types.ItemInput{Name: "F", Location: "Attic"})

	all, err := e.Items().FindAll(ctx, types.ItemFilter{Location: "Shed"})
	require.NoError(t, err)

	first, err := e.Items().FindPage(ctx, types.ItemFilter{Location: "Shed"}, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	assert.Equal(t, 3, first.TotalPages)
	assert.Equal(t, 1, first.Page)
	assert.Equal(t, 2, first.PageSize)
	assert.Equal(t, all[:2], first.Items)

	last, err := e.Items().FindPage(ctx, types.ItemFilter{Location: "Shed"}, 3, 2)
	require.NoError(t, err)
	assert.Equal(t, all[4:], last.Items)

	past, err := e.Items().FindPage(ctx, types.ItemFilter{Location: "Shed"}, 4, 2)
	require.NoError(t, err)
	assert.Empty(t, past.Items)
	assert.NotNil(t, past.Items)
	assert.Equal(t, 5, past.Total)

	empty, err := e.Items().FindPage(ctx, types.ItemFilter{Location: "Nowhere"}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Total)
	assert.Equal(t, 0, empty.TotalPages)
}

func TestItemFindPageRejectsBadBounds(t *testing.T) {
	e, _ := setupEngine(t)
	for _, tt := range []struct{ page, size int }{{0, 10}, {1, 0}, {-1, -1}} {
		_, err := e.Items().FindPage(context.Background(), types.ItemFilter{}, tt.page, tt.size)
		assert.ErrorIs(t, err, types.ErrInvalidPage)
		assert.ErrorIs(t, err, types.ErrValidation)
	}
}

func TestItemRecent(t *testing.T) {
	e, _ := setupEngine(t)
	ctx := context.Background()
	a := mustCreateItem(t, e, types.ItemInput{Name: "Old"})
	b := mustCreateItem(t, e, types.ItemInput{Name: "Middle"})
	c := mustCreateItem(t, e, types.ItemInput{Name: "New"})

	// Touching the oldest item does not make it recent.
	_, err := e.Items().Update(ctx, a.ID, types.ItemPatch{})
	require.NoError(t, err)

	recent, err := e.Items().Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, c.ID, recent[0].ID)
	assert.Equal(t, b.ID, recent[1].ID)

	none, err := e.Items().Recent(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
