// This file implements the reminder repository.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// RemindersTable is the repository for reminders.
type RemindersTable struct {
	engine *Engine
}

// FindAll returns every reminder ordered by due date.
func (t *RemindersTable) FindAll(ctx context.Context) ([]types.Reminder, error) {
	return t.fetch(ctx, "")
}

// FindByItemID returns the reminders of one item ordered by due date.
func (t *RemindersTable) FindByItemID(ctx context.Context, itemID string) ([]types.Reminder, error) {
	return t.fetch(ctx, " WHERE item_id = ?", itemID)
}

func (t *RemindersTable) fetch(ctx context.Context, where string, args ...any) ([]types.Reminder, error) {
	reminders := []types.Reminder{}
	err := t.engine.query(func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx,
			"SELECT "+reminderColumns+" FROM reminders"+where+" ORDER BY due_date ASC, created_at ASC, id ASC",
			args...)
		if err != nil {
			return fmt.Errorf("fetching reminders: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			r, err := hydrateReminder(rows)
			if err != nil {
				return fmt.Errorf("hydrating reminder: %w", err)
			}
			reminders = append(reminders, r)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

// FindByID returns the reminder with id; ok is false when it does not exist.
func (t *RemindersTable) FindByID(ctx context.Context, id string) (r types.Reminder, ok bool, err error) {
	if id == "" {
		return types.Reminder{}, false, nil
	}
	err = t.engine.query(func(db *sql.DB) error {
		r, err = getReminder(ctx, db, id)
		return err
	})
	if errors.Is(err, types.ErrNotFound) {
		return types.Reminder{}, false, nil
	}
	if err != nil {
		return types.Reminder{}, false, err
	}
	return r, true, nil
}

// Create stores a new pending reminder for an existing item.
func (t *RemindersTable) Create(ctx context.Context, in types.ReminderInput) (types.Reminder, error) {
	if err := in.Validate(); err != nil {
		return types.Reminder{}, err
	}
	notify := types.DefaultNotifyBefore
	if in.NotifyBefore != nil {
		notify = *in.NotifyBefore
	}
	id, err := newID()
	if err != nil {
		return types.Reminder{}, err
	}

	var created types.Reminder
	err = t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkItemRef(ctx, tx, in.ItemID); err != nil {
			return false, err
		}
		now := formatTime(t.engine.stamp())
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, 0, NULL, ?, ?, ?)`,
			id, in.ItemID, in.Title, in.DueDate, notify, now, now,
		)
		if err != nil {
			return false, fmt.Errorf("inserting reminder: %w", err)
		}
		created, err = getReminder(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Reminder{}, err
	}
	return created, nil
}

// Update applies the supplied fields of patch. Completing a pending reminder
// stamps completedAt; reopening a completed one clears it.
func (t *RemindersTable) Update(ctx context.Context, id string, patch types.ReminderPatch) (types.Reminder, error) {
	if id == "" {
		return types.Reminder{}, types.ErrInvalidID
	}
	if err := patch.Validate(); err != nil {
		return types.Reminder{}, err
	}

	var updated types.Reminder
	err := t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		cur, err := getReminder(ctx, tx, id)
		if err != nil {
			return false, err
		}
		next := cur
		if patch.ItemID != nil {
			if err := checkItemRef(ctx, tx, *patch.ItemID); err != nil {
				return false, err
			}
			next.ItemID = *patch.ItemID
		}
		if patch.Title != nil {
			next.Title = *patch.Title
		}
		if patch.DueDate != nil {
			next.DueDate = *patch.DueDate
		}
		if patch.NotifyBefore != nil {
			next.NotifyBefore = *patch.NotifyBefore
		}

		now := t.engine.after(cur.UpdatedAt)
		if patch.Completed != nil && *patch.Completed != cur.Completed {
			next.Completed = *patch.Completed
			if next.Completed {
				next.CompletedAt = &now
			} else {
				next.CompletedAt = nil
			}
		}
		var completedAt any
		if next.CompletedAt != nil {
			completedAt = formatTime(*next.CompletedAt)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE reminders SET item_id = ?, title = ?, due_date = ?, completed = ?, completed_at = ?,
			 notify_before = ?, updated_at = ? WHERE id = ?`,
			next.ItemID, next.Title, next.DueDate, next.Completed, completedAt,
			next.NotifyBefore, formatTime(now), id,
		)
		if err != nil {
			return false, fmt.Errorf("updating reminder: %w", err)
		}
		updated, err = getReminder(ctx, tx, id)
		return true, err
	})
	if err != nil {
		return types.Reminder{}, err
	}
	return updated, nil
}

// MarkComplete marks the reminder done.
func (t *RemindersTable) MarkComplete(ctx context.Context, id string) (types.Reminder, error) {
	done := true
	return t.Update(ctx, id, types.ReminderPatch{Completed: &done})
}

// MarkIncomplete reopens the reminder.
func (t *RemindersTable) MarkIncomplete(ctx context.Context, id string) (types.Reminder, error) {
	done := false
	return t.Update(ctx, id, types.ReminderPatch{Completed: &done})
}

// Delete removes the reminder. Deleting a missing reminder is not an error.
func (t *RemindersTable) Delete(ctx context.Context, id string) error {
	if id == "" {
		return types.ErrInvalidID
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		res, err := tx.ExecContext(ctx, "DELETE FROM reminders WHERE id = ?", id)
		if err != nil {
			return false, fmt.Errorf("deleting reminder: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	})
}

// GetByStatus partitions all reminders by derived status. Today is read once
// so every reminder is judged against the same date.
func (t *RemindersTable) GetByStatus(ctx context.Context) (types.ReminderBuckets, error) {
	return t.GetByStatusAt(ctx, t.engine.Now())
}

// GetByStatusAt partitions all reminders as of the calendar day of today.
func (t *RemindersTable) GetByStatusAt(ctx context.Context, today time.Time) (types.ReminderBuckets, error) {
	all, err := t.FindAll(ctx)
	if err != nil {
		return types.ReminderBuckets{}, err
	}
	b := types.ReminderBuckets{
		Overdue:   []types.Reminder{},
		Upcoming:  []types.Reminder{},
		Completed: []types.Reminder{},
		Scheduled: []types.Reminder{},
	}
	for _, r := range all {
		b.Add(r, r.Status(today))
	}
	return b, nil
}

// Insert stores a reminder exactly as given, keeping its id, completion
// state and timestamps. The item must already exist.
func (t *RemindersTable) Insert(ctx context.Context, r types.Reminder) error {
	if r.ID == "" {
		return types.ErrInvalidID
	}
	notify := r.NotifyBefore
	in := types.ReminderInput{ItemID: r.ItemID, Title: r.Title, DueDate: r.DueDate, NotifyBefore: &notify}
	if err := in.Validate(); err != nil {
		return err
	}
	return t.engine.mutate(ctx, func(tx *sql.Tx) (bool, error) {
		if err := checkExists(ctx, tx, "reminders", r.ID); err != nil {
			return false, err
		}
		if err := checkItemRef(ctx, tx, r.ItemID); err != nil {
			return false, err
		}
		createdAt, updatedAt := importStamps(t.engine, r.CreatedAt, r.UpdatedAt)
		var completedAt any
		if r.Completed {
			at := r.UpdatedAt
			if r.CompletedAt != nil {
				at = *r.CompletedAt
			}
			if at.IsZero() {
				at = t.engine.stamp()
			}
			completedAt = formatTime(at)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reminders (`+reminderColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID, r.ItemID, r.Title, r.DueDate, r.Completed, completedAt, notify, createdAt, updatedAt,
		)
		if err != nil {
			return false, fmt.Errorf("inserting reminder: %w", err)
		}
		return true, nil
	})
}

// Count returns the number of reminders.
func (t *RemindersTable) Count(ctx context.Context) (int, error) {
	var n int
	err := t.engine.query(func(db *sql.DB) error {
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reminders").Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("counting reminders: %w", err)
	}
	return n, nil
}

func getReminder(ctx context.Context, q querier, id string) (types.Reminder, error) {
	row := q.QueryRowContext(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE id = ?", id)
	r, err := hydrateReminder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Reminder{}, types.ErrNotFound
	}
	if err != nil {
		return types.Reminder{}, fmt.Errorf("getting reminder %s: %w", id, err)
	}
	return r, nil
}

func checkItemRef(ctx context.Context, q querier, itemID string) error {
	ok, err := rowExists(ctx, q, "items", itemID)
	if err != nil {
		return err
	}
	if !ok {
		return types.Invalid("itemId", types.ErrInvalidReference)
	}
	return nil
}
