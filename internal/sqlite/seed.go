package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// seedDefaultCategories inserts the built-in categories when the categories
// table is empty. Emptiness is the only guard, so a database whose categories
// were all deleted is seeded again on its next load.
func seedDefaultCategories(ctx context.Context, db *sql.DB, now time.Time) error {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM categories").Scan(&count); err != nil {
		return fmt.Errorf("counting categories: %w", err)
	}
	if count > 0 {
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning seed transaction: %w", err)
	}
	defer tx.Rollback()

	ts := formatTime(now)
	for _, bc := range types.DefaultCategories {
		id, err := newID()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO categories (id, name, color, icon, parent_id, is_custom, created_at, updated_at)
			 VALUES (?, ?, ?, ?, NULL, 0, ?, ?)`,
			id, bc.Name, bc.Color, bc.Icon, ts, ts,
		)
		if err != nil {
			return fmt.Errorf("seeding category %s: %w", bc.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing seed transaction: %w", err)
	}
	return nil
}
