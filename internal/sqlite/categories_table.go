// This file implements the category repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// CategoriesTable is the repository for categories.
type CategoriesTable struct {
	engine *Engine
}

// FindAll returns every category ordered by name.
func (t *CategoriesTable) FindAll(ctx context.Context) ([]types.Category, error) {
	categories := []types.Category{}
	err := t.engine.query(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT "+categoryColumns+" FROM categories ORDER BY name COLLATE NOCASE ASC, id ASC")
		if err != nil {
			return fmt.Errorf("fetching categories: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := hydrateCategory(rows)
			if err != nil {
				return fmt.Errorf("hydrating category: %w", err)
			}
			categories = append(categories, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// FindByID returns the category with id; ok is false when it does not exist.
func (t *CategoriesTable) FindByID(ctx context.Context, id string) (c types.Category, ok bool, err error) {
	if id == "" {
		return types.Category{}, false, nil
	}
	err = t.engine.query(func(db *sql.DB) error {
		c, err = getCategory(ctx, db, id)
		return err
	})
	if errors.Is(err, types.ErrNotFound) {
		return types.Category{}, false, nil
	}
	if err != nil {
		return types.Category{}, false, err
	}
	return c, true, nil
}

// Create stores a new custom category.
func (t *CategoriesTable) Create(ctx context.Context, in types.CategoryInput) (types.Category, error) {
	in = in.WithDefaults()
	if err := in.Validate(); err != nil {
		return types.Category{}, err
	}
	id, err := newID()
	if err != nil {
		return types.Category{}, err
	}

	var created types.Category
	err = t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkCategoryRef(ctx, tx, "parentId", in.ParentID); err != nil {
			return false, err
		}
		now := formatTime(t.engine.stamp())
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			id, in.Name, in.Color, in.Icon, nullable(in.ParentID), now, now,
		)
		if err != nil {
			return false, fmt.Errorf("inserting category: %w", err)
		}
		created, err = getCategory(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Category{}, err
	}
	return created, nil
}

// Update applies the supplied fields of patch. A category cannot become its
// own ancestor.
func (t *CategoriesTable) Update(ctx context.Context, id string, patch types.CategoryPatch) (types.Category, error) {
	if id == "" {
		return types.Category{}, types.ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return types.Category{}, err
	}

	var updated types.Category
	err := t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		cur, err := getCategory(ctx, tx, id)
		if err != nil {
			return false, err
		}
		next := cur
		if patch.Name != nil {
			next.Name = *patch.Name
		}
		if patch.Color != nil {
			next.Color = *patch.Color
		}
		if patch.Icon != nil {
			next.Icon = *patch.Icon
		}
		if patch.ParentID.IsSet() {
			next.ParentID = patch.ParentID.Ptr()
			if err := checkCategoryRef(ctx, tx, "parentId", next.ParentID); err != nil {
				return false, err
			}
			if next.ParentID != nil {
				if err := checkNoCycle(ctx, tx, id, *next.ParentID); err != nil {
					return false, err
				}
			}
		}
		now := t.engine.after(cur.UpdatedAt)
		_, err = tx.ExecContext(ctx,
			`UPDATE categories SET name = ?, color = ?, icon = ?, parent_id = ?, updated_at = ? WHERE id = ?`,
			next.Name, next.Color, next.Icon, nullable(next.ParentID), formatTime(now), id,
		)
		if err != nil {
			return false, fmt.Errorf("updating category: %w", err)
		}
		updated, err = getCategory(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Category{}, err
	}
	return updated, nil
}

// checkNoCycle walks up from parentID and fails if it reaches id.
func checkNoCycle(ctx context.Context, q querier, id, parentID string) error {
	seen := map[string]bool{}
	for cur := parentID; cur != ""; {
		if cur == id {
			return types.Invalid("parentId", types.ErrInvalidParent)
		}
		if seen[cur] {
			return nil
		}
		seen[cur] = true

		var next sql.NullString
		err := q.QueryRowContext(ctx, "SELECT parent_id FROM categories WHERE id = ?", cur).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("walking category parents: %w", err)
		}
		cur = next.String
	}
	return nil
}

// Delete removes the category. Items in it and child categories are kept
// with their reference cleared. Deleting a missing category is not an error.
// With protection enabled, built-in categories cannot be deleted.
func (t *CategoriesTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		cur, err := getCategory(ctx, tx, id)
		if errors.Is(err, types.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if t.engine.protectSystem && !cur.IsCustom {
			return false, fmt.Errorf("category %s: %w", cur.Name, types.ErrProtectedCategory)
		}

		now := formatTime(t.engine.stamp())
		if _, err := tx.ExecContext(ctx,
			"UPDATE items SET category_id = NULL, updated_at = ? WHERE category_id = ?", now, id,
		); err != nil {
			return false, fmt.Errorf("clearing item categories: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE categories SET parent_id = NULL, updated_at = ? WHERE parent_id = ?", now, id,
		); err != nil {
			return false, fmt.Errorf("clearing child categories: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM categories WHERE id = ?", id); err != nil {
			return false, fmt.Errorf("deleting category: %w", err)
		}
		return true, nil
	})
}

// Insert stores a category exactly as given, keeping its id, custom flag
// and timestamps. The parent, if any, must already exist.
func (t *CategoriesTable) Insert(ctx context.Context, c types.Category) error {
	if c.ID == "" {
		return types.ErrInvalidID
	}
	in := types.CategoryInput{Name: c.Name, Color: c.Color, Icon: c.Icon, ParentID: c.ParentID}.WithDefaults()
	if err := in.Validate(); err != nil {
		return err
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkExists(ctx, tx, "categories", c.ID); err != nil {
			return false, err
		}
		if err := checkCategoryRef(ctx, tx, "parentId", in.ParentID); err != nil {
			return false, err
		}
		createdAt, updatedAt := importStamps(t.engine, c.CreatedAt, c.UpdatedAt)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.ID, in.Name, in.Color, in.Icon, nullable(in.ParentID), c.IsCustom, createdAt, updatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("inserting category: %w", err)
		}
		return true, nil
	})
}

// Count returns the number of categories.
func (t *CategoriesTable) Count(ctx context.Context) (int, error) {
	var n int
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting categories: %w", err)
	}
	return n, nil
}

func getCategory(ctx context.Context, q querier, id string) (types.Category, error) {
	row := q.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	c, err := hydrateCategory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Category{}, types.ErrNotFound
	}
	if err != nil {
		return types.Category{}, fmt.Errorf("getting category %s: %w", id, err)
	}
	return c, nil
}
