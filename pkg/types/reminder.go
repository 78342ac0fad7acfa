package types

import (
	"strings"
	"time"
)

// DefaultNotifyBefore is the number of days before the due date at which a
// pending reminder becomes upcoming.
const DefaultNotifyBefore = 7

// Reminder is a dated follow-up tied to one item.
type Reminder struct {
	ID           string     `json:"id"`
	ItemID       string     `json:"itemId"`
	Title        string     `json:"title"`
	DueDate      string     `json:"dueDate"` // YYYY-MM-DD
	Completed    bool       `json:"completed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	NotifyBefore int        `json:"notifyBefore"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// ReminderInput carries the fields of a new reminder. A nil NotifyBefore
// takes DefaultNotifyBefore.
type ReminderInput struct {
	ItemID       string `json:"itemId"`
	Title        string `json:"title"`
	DueDate      string `json:"dueDate"`
	NotifyBefore *int   `json:"notifyBefore,omitempty"`
}

// Validate checks the structural rules for a new reminder. The item reference
// is checked by the repository.
func (in ReminderInput) Validate() error {
	if in.ItemID == "" {
		return invalid("itemId", ErrInvalidID)
	}
	if strings.TrimSpace(in.Title) == "" {
		return invalid("title", ErrInvalidName)
	}
	if !ValidDate(in.DueDate) {
		return invalid("dueDate", ErrInvalidDate)
	}
	if in.NotifyBefore != nil && *in.NotifyBefore < 0 {
		return invalid("notifyBefore", ErrInvalidNotify)
	}
	return nil
}

// ReminderPatch lists the reminder fields an update should change. Setting
// Completed drives CompletedAt: true stamps it, false clears it.
type ReminderPatch struct {
	ItemID       *string `json:"itemId,omitempty"`
	Title        *string `json:"title,omitempty"`
	DueDate      *string `json:"dueDate,omitempty"`
	Completed    *bool   `json:"completed,omitempty"`
	NotifyBefore *int    `json:"notifyBefore,omitempty"`
}

// Validate checks every supplied field.
func (p ReminderPatch) Validate() error {
	if p.ItemID != nil && *p.ItemID == "" {
		return invalid("itemId", ErrInvalidID)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return invalid("title", ErrInvalidName)
	}
	if p.DueDate != nil && !ValidDate(*p.DueDate) {
		return invalid("dueDate", ErrInvalidDate)
	}
	if p.NotifyBefore != nil && *p.NotifyBefore < 0 {
		return invalid("notifyBefore", ErrInvalidNotify)
	}
	return nil
}

// ReminderStatus is derived on read and never stored.
type ReminderStatus string

// Reminder statuses. Scheduled covers pending reminders whose due date is
// further away than their notify-before window.
const (
	ReminderOverdue   ReminderStatus = "overdue"
	ReminderUpcoming  ReminderStatus = "upcoming"
	ReminderCompleted ReminderStatus = "completed"
	ReminderScheduled ReminderStatus = "scheduled"
)

// DeriveReminderStatus computes the status of a reminder on the calendar day
// of today. Only the date part of today is used.
func DeriveReminderStatus(completed bool, dueDate string, notifyBefore int, today time.Time) ReminderStatus {
	if completed {
		return ReminderCompleted
	}
	due, err := time.Parse(DateLayout, dueDate)
	if err != nil {
		return ReminderScheduled
	}
	day := StartOfDay(today)
	if due.Before(day) {
		return ReminderOverdue
	}
	if !due.After(day.AddDate(0, 0, notifyBefore)) {
		return ReminderUpcoming
	}
	return ReminderScheduled
}

// Status returns the derived status of r on the day of today.
func (r Reminder) Status(today time.Time) ReminderStatus {
	return DeriveReminderStatus(r.Completed, r.DueDate, r.NotifyBefore, today)
}

// StartOfDay returns midnight UTC of the calendar date of t in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ReminderBuckets partitions reminders by derived status. Every reminder
// lands in exactly one bucket.
type ReminderBuckets struct {
	Overdue   []Reminder `json:"overdue"`
	Upcoming  []Reminder `json:"upcoming"`
	Completed []Reminder `json:"completed"`
	Scheduled []Reminder `json:"scheduled"`
}

// Add places r into the bucket for status.
func (b *ReminderBuckets) Add(r Reminder, status ReminderStatus) {
	switch status {
	case ReminderOverdue:
		b.Overdue = append(b.Overdue, r)
	case ReminderUpcoming:
		b.Upcoming = append(b.Upcoming, r)
	case ReminderCompleted:
		b.Completed = append(b.Completed, r)
	default:
		b.Scheduled = append(b.Scheduled, r)
	}
}

// Len returns the total number of bucketed reminders.
func (b ReminderBuckets) Len() int {
	return len(b.Overdue) + len(b.Upcoming) + len(b.Completed) + len(b.Scheduled)
}
