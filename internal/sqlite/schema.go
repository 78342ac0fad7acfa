package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema DDL for all tables. Timestamps are stored as UTC text with
// millisecond precision so lexical order matches time order.
const (
	createCategories = `CREATE TABLE IF NOT EXISTS categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '#5c5f66',
    icon TEXT NOT NULL DEFAULT '',
    parent_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
    is_custom INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createItems = `CREATE TABLE IF NOT EXISTS items (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    category_id TEXT REFERENCES categories(id) ON DELETE SET NULL,
    quantity INTEGER NOT NULL DEFAULT 1 CHECK (quantity >= 1),
    description TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'active',
    purchase_price REAL CHECK (purchase_price IS NULL OR purchase_price >= 0),
    purchase_date TEXT,
    warranty_expiry TEXT,
    custom_fields TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createReminders = `CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    item_id TEXT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
    title TEXT NOT NULL,
    due_date TEXT NOT NULL,
    completed INTEGER NOT NULL DEFAULT 0,
    completed_at TEXT,
    notify_before INTEGER NOT NULL DEFAULT 7,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);`

	createSettings = `CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);`
)

// Index DDL for the filter and join columns.
const (
	idxItemsCategory    = `CREATE INDEX IF NOT EXISTS idx_items_category ON items(category_id);`
	idxItemsStatus      = `CREATE INDEX IF NOT EXISTS idx_items_status ON items(status);`
	idxItemsName        = `CREATE INDEX IF NOT EXISTS idx_items_name ON items(name);`
	idxRemindersItem    = `CREATE INDEX IF NOT EXISTS idx_reminders_item ON reminders(item_id);`
	idxRemindersDueDate = `CREATE INDEX IF NOT EXISTS idx_reminders_due_date ON reminders(due_date);`
)

// schemaDDL lists all CREATE TABLE statements in dependency order.
var schemaDDL = []string{
	createCategories,
	createItems,
	createReminders,
	createSettings,
}

// indexDDL lists all CREATE INDEX statements.
var indexDDL = []string{
	idxItemsCategory,
	idxItemsStatus,
	idxItemsName,
	idxRemindersItem,
	idxRemindersDueDate,
}

// EnsureSchema creates any missing tables and indexes. Existing data is never
// touched, so it runs on every start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ddl := range schemaDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating table: %w", err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}
	return nil
}
