package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// TimeLayout is the stored timestamp format. Lexical order matches time order.
const TimeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		// Rows imported from other tools may carry RFC 3339 timestamps.
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const itemColumns = `id, name, category_id, quantity, description, location, status,
	purchase_price, purchase_date, warranty_expiry, custom_fields, created_at, updated_at`

// hydrateItem converts one row into a types.Item.
func hydrateItem(s scanner) (types.Item, error) {
	var (
		it                     types.Item
		categoryID             sql.NullString
		price                  sql.NullFloat64
		purchaseDate, warranty sql.NullString
		customFields           sql.NullString
		status                 string
		createdAt, updatedAt   string
	)
	err := s.Scan(&it.ID, &it.Name, &categoryID, &it.Quantity, &it.Description, &it.Location,
		&status, &price, &purchaseDate, &warranty, &customFields, &createdAt, &updatedAt)
	if err != nil {
		return types.Item{}, err
	}
	it.Status = types.ItemStatus(status)
	it.CategoryID = nullString(categoryID)
	if price.Valid {
		v := price.Float64
		it.PurchasePrice = &v
	}
	it.PurchaseDate = nullString(purchaseDate)
	it.WarrantyExpiry = nullString(warranty)
	if customFields.Valid && customFields.String != "" {
		if err := json.Unmarshal([]byte(customFields.String), &it.CustomFields); err != nil {
			return types.Item{}, fmt.Errorf("decoding custom fields: %w", err)
		}
	}
	if it.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Item{}, err
	}
	if it.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Item{}, err
	}
	return it, nil
}

const categoryColumns = `id, name, color, icon, parent_id, is_custom, created_at, updated_at`

// hydrateCategory converts one row into a types.Category.
func hydrateCategory(s scanner) (types.Category, error) {
	var (
		c                    types.Category
		parentID             sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&c.ID, &c.Name, &c.Color, &c.Icon, &parentID, &c.IsCustom, &createdAt, &updatedAt); err != nil {
		return types.Category{}, err
	}
	c.ParentID = nullString(parentID)
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Category{}, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Category{}, err
	}
	return c, nil
}

const reminderColumns = `id, item_id, title, due_date, completed, completed_at, notify_before, created_at, updated_at`

// hydrateReminder converts one row into a types.Reminder.
func hydrateReminder(s scanner) (types.Reminder, error) {
	var (
		r                    types.Reminder
		completedAt          sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&r.ID, &r.ItemID, &r.Title, &r.DueDate, &r.Completed, &completedAt,
		&r.NotifyBefore, &createdAt, &updatedAt); err != nil {
		return types.Reminder{}, err
	}
	var err error
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return types.Reminder{}, err
		}
		r.CompletedAt = &t
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Reminder{}, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Reminder{}, err
	}
	return r, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

// nullable converts an optional value into a driver argument.
func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func encodeCustomFields(fields map[string]any) (any, error) {
	if len(fields) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encoding custom fields: %w", err)
	}
	return string(data), nil
}
