// This file implements the item repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// ItemsTable is the repository for items.
type ItemsTable struct {
	engine *Engine
}

const itemListOrder = " ORDER BY updated_at DESC, id DESC"

// FindAll returns the items matching filter, most recently updated first.
func (t *ItemsTable) FindAll(ctx context.Context, filter types.ItemFilter) ([]types.Item, error) {
	w := itemWhere(filter)
	q := "SELECT " + itemColumns + " FROM items" + w.String() + itemListOrder

	var items []types.Item
	err := t.engine.query(func(db *sql.DB) error {
		var err error
		items, err = scanItems(ctx, db, q, w.args...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// FindPage returns one page of the items matching filter, in FindAll order.
// Pages are numbered from 1; a page past the end is empty.
func (t *ItemsTable) FindPage(ctx context.Context, filter types.ItemFilter, page, size int) (types.ItemPage, error) {
	if page < 1 {
		return types.ItemPage{}, types.Invalid("page", types.ErrInvalidPage)
	}
	if size < 1 {
		return types.ItemPage{}, types.Invalid("pageSize", types.ErrInvalidPage)
	}
	w := itemWhere(filter)
	q := "SELECT " + itemColumns + " FROM items" + w.String() + itemListOrder + " LIMIT ? OFFSET ?"
	args := append(append([]any(nil), w.args...), size, (page-1)*size)

	res := types.ItemPage{Page: page, PageSize: size}
	err := t.engine.query(func(db *sql.DB) error {
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items"+w.String(), w.args...).Scan(&res.Total); err != nil {
			return fmt.Errorf("counting items: %w", err)
		}
		var err error
		res.Items, err = scanItems(ctx, db, q, args...)
		return err
	})
	if err != nil {
		return types.ItemPage{}, err
	}
	res.TotalPages = (res.Total + size - 1) / size
	return res, nil
}

// Recent returns up to limit items, newest first by creation time.
func (t *ItemsTable) Recent(ctx context.Context, limit int) ([]types.Item, error) {
	if limit < 1 {
		return []types.Item{}, nil
	}
	q := "SELECT " + itemColumns + " FROM items ORDER BY created_at DESC, id DESC LIMIT ?"
	var items []types.Item
	err := t.engine.query(func(db *sql.DB) error {
		var err error
		items, err = scanItems(ctx, db, q, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

func scanItems(ctx context.Context, db *sql.DB, q string, args ...any) ([]types.Item, error) {
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("fetching items: %w", err)
	}
	defer rows.Close()

	items := []types.Item{}
	for rows.Next() {
		it, err := hydrateItem(rows)
		if err != nil {
			return nil, fmt.Errorf("hydrating item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// FindByID returns the item with id. A missing item is reported through ok,
// not as an error.
func (t *ItemsTable) FindByID(ctx context.Context, id string) (item types.Item, ok bool, err error) {
	if id == "" {
		return types.Item{}, false, nil
	}
	err = t.engine.query(func(db *sql.DB) error {
		item, err = getItem(ctx, db, id)
		return err
	})
	if errors.Is(err, types.ErrNotFound) {
		return types.Item{}, false, nil
	}
	if err != nil {
		return types.Item{}, false, err
	}
	return item, true, nil
}

// Create validates in, applies defaults, stores a new item and returns it as
// read back from the database.
func (t *ItemsTable) Create(ctx context.Context, in types.ItemInput) (types.Item, error) {
	in = in.WithDefaults()
	if err := in.Validate(); err != nil {
		return types.Item{}, err
	}
	customFields, err := encodeCustomFields(in.CustomFields)
	if err != nil {
		return types.Item{}, err
	}
	id, err := newID()
	if err != nil {
		return types.Item{}, err
	}

	var created types.Item
	err = t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkCategoryRef(ctx, tx, "categoryId", in.CategoryID); err != nil {
			return false, err
		}
		now := formatTime(t.engine.stamp())
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, in.Name, nullable(in.CategoryID), in.Quantity, in.Description, in.Location,
			string(in.Status), nullable(in.PurchasePrice), nullable(in.PurchaseDate),
			nullable(in.WarrantyExpiry), customFields, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("inserting item: %w", err)
		}
		created, err = getItem(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Item{}, err
	}
	return created, nil
}

// Update applies the supplied fields of patch to the item with id and always
// refreshes updatedAt. It returns ErrNotFound when the item does not exist.
func (t *ItemsTable) Update(ctx context.Context, id string, patch types.ItemPatch) (types.Item, error) {
	if id == "" {
		return types.Item{}, types.ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return types.Item{}, err
	}

	var updated types.Item
	err := t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		cur, err := getItem(ctx, tx, id)
		if err != nil {
			return false, err
		}
		next := applyItemPatch(cur, patch)
		if patch.CategoryID.IsSet() {
			if err := checkCategoryRef(ctx, tx, "categoryId", next.CategoryID); err != nil {
				return false, err
			}
		}
		customFields, err := encodeCustomFields(next.CustomFields)
		if err != nil {
			return false, err
		}
		now := t.engine.after(cur.UpdatedAt)
		_, err = tx.ExecContext(ctx,
			`UPDATE items SET name = ?, category_id = ?, quantity = ?, description = ?, location = ?,
			 status = ?, purchase_price = ?, purchase_date = ?, warranty_expiry = ?, custom_fields = ?,
			 updated_at = ? WHERE id = ?`,
			next.Name, nullable(next.CategoryID), next.Quantity, next.Description, next.Location,
			string(next.Status), nullable(next.PurchasePrice), nullable(next.PurchaseDate),
			nullable(next.WarrantyExpiry), customFields, formatTime(now), id,
		)
		if err != nil {
			return false, fmt.Errorf("updating item: %w", err)
		}
		updated, err = getItem(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Item{}, err
	}
	return updated, nil
}

func applyItemPatch(it types.Item, p types.ItemPatch) types.Item {
	if p.Name != nil {
		it.Name = *p.Name
	}
	if p.CategoryID.IsSet() {
		it.CategoryID = p.CategoryID.Ptr()
	}
	if p.Quantity != nil {
		it.Quantity = *p.Quantity
	}
	if p.Description != nil {
		it.Description = *p.Description
	}
	if p.Location != nil {
		it.Location = *p.Location
	}
	if p.Status != nil {
		it.Status = *p.Status
	}
	if p.PurchasePrice.IsSet() {
		it.PurchasePrice = p.PurchasePrice.Ptr()
	}
	if p.PurchaseDate.IsSet() {
		it.PurchaseDate = p.PurchaseDate.Ptr()
	}
	if p.WarrantyExpiry.IsSet() {
		it.WarrantyExpiry = p.WarrantyExpiry.Ptr()
	}
	if p.CustomFields.IsSet() {
		if v := p.CustomFields.Ptr(); v != nil {
			it.CustomFields = *v
		} else {
			it.CustomFields = nil
		}
	}
	return it
}

// Delete removes the item and its reminders. Deleting a missing item is not
// an error.
func (t *ItemsTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if _, err := tx.ExecContext(ctx, "DELETE FROM reminders WHERE item_id = ?", id); err != nil {
			return false, fmt.Errorf("deleting reminders of item: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id)
		if err != nil {
			return false, fmt.Errorf("deleting item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
}

// Insert stores an item exactly as given, keeping its id and timestamps. It
// is used by import and returns ErrAlreadyExists for a known id.
func (t *ItemsTable) Insert(ctx context.Context, it types.Item) error {
	if it.ID == "" {
		return types.ErrInvalidID
	}
	in := types.ItemInput{
		Name: it.Name, CategoryID: it.CategoryID, Quantity: it.Quantity,
		Description: it.Description, Location: it.Location, Status: it.Status,
		PurchasePrice: it.PurchasePrice, PurchaseDate: it.PurchaseDate,
		WarrantyExpiry: it.WarrantyExpiry, CustomFields: it.CustomFields,
	}.WithDefaults()
	if err := in.Validate(); err != nil {
		return err
	}
	customFields, err := encodeCustomFields(in.CustomFields)
	if err != nil {
		return err
	}

	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkExists(ctx, tx, "items", it.ID); err != nil {
			return false, err
		}
		if err := checkCategoryRef(ctx, tx, "categoryId", in.CategoryID); err != nil {
			return false, err
		}
		createdAt, updatedAt := importStamps(t.engine, it.CreatedAt, it.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			it.ID, in.Name, nullable(in.CategoryID), in.Quantity, in.Description, in.Location,
			string(in.Status), nullable(in.PurchasePrice), nullable(in.PurchaseDate),
			nullable(in.WarrantyExpiry), customFields, createdAt, updatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("inserting item: %w", err)
		}
		return true, nil
	})
}

// Count returns the number of items matching filter.
func (t *ItemsTable) Count(ctx context.Context, filter types.ItemFilter) (int, error) {
	w := itemWhere(filter)
	var n int
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items"+w.String(), w.args...).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return n, nil
}

// TotalQuantity returns the sum of all item quantities.
func (t *ItemsTable) TotalQuantity(ctx context.Context) (int, error) {
	var n int
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COALESCE(SUM(quantity), 0) FROM items").Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("summing quantities: %w", err)
	}
	return n, nil
}

// TotalValue returns the sum of quantity times price over items that have a
// price. Items without a price are excluded rather than counted as zero.
func (t *ItemsTable) TotalValue(ctx context.Context) (float64, error) {
	var v float64
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			"SELECT COALESCE(SUM(quantity * purchase_price), 0.0) FROM items WHERE purchase_price IS NOT NULL",
		).Scan(&v)
	})
	if err != nil {
		return 0, fmt.Errorf("summing item value: %w", err)
	}
	return v, nil
}

// CountCreatedSince returns the number of items created at or after since.
func (t *ItemsTable) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM items WHERE created_at >= ?", formatTime(since),
		).Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting new items: %w", err)
	}
	return n, nil
}

// CountThisMonth returns the number of items created since the first day of
// the current month.
func (t *ItemsTable) CountThisMonth(ctx context.Context) (int, error) {
	return t.CountCreatedSince(ctx, StartOfMonth(t.engine.Now()))
}

// StartOfMonth returns midnight UTC on the first day of the month of t.
func StartOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

// Locations returns the distinct non-empty item locations in ascending order.
func (t *ItemsTable) Locations(ctx context.Context) ([]string, error) {
	locations := []string{}
	err := t.engine.query(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT DISTINCT location FROM items WHERE location != '' ORDER BY location ASC")
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var loc string
			if err := rows.Scan(&loc); err != nil {
				return err
			}
			locations = append(locations, loc)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing locations: %w", err)
	}
	return locations, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func getItem(ctx context.Context, q querier, id string) (types.Item, error) {
	row := q.QueryRowContext(ctx, "SELECT "+itemColumns+" FROM items WHERE id = ?", id)
	it, err := hydrateItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Item{}, types.ErrNotFound
	}
	if err != nil {
		return types.Item{}, fmt.Errorf("getting item %s: %w", id, err)
	}
	return it, nil
}

// checkCategoryRef rejects a reference to a category that does not exist.
func checkCategoryRef(ctx context.Context, q querier, field string, id *string) error {
	if id == nil {
		return nil
	}
	ok, err := rowExists(ctx, q, "categories", *id)
	if err != nil {
		return err
	}
	if !ok {
		return types.Invalid(field, types.ErrInvalidReference)
	}
	return nil
}

// checkExists returns ErrAlreadyExists when table already holds id.
func checkExists(ctx context.Context, q querier, table, id string) error {
	ok, err := rowExists(ctx, q, table, id)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("%s %s: %w", table, id, types.ErrAlreadyExists)
	}
	return nil
}

// rowExists reports whether table has a row with id. table is always one of
// the fixed relation names, never user input.
func rowExists(ctx context.Context, q querier, table, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking %s existence: %w", table, err)
	}
	return true, nil
}

// importStamps keeps imported timestamps when they are valid and falls back
// to the current stamp otherwise. updatedAt never precedes createdAt.
func importStamps(e *Engine, createdAt, updatedAt time.Time) (string, string) {
	if createdAt.IsZero() {
		createdAt = e.stamp()
	}
	if updatedAt.Before(createdAt) {
		updatedAt = createdAt
	}
	return formatTime(createdAt), formatTime(updatedAt)
}
