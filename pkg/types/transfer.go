package types

import "time"

// ExportSchemaVersion tags full-database JSON exports.
const ExportSchemaVersion = "v1"

// ExportData is the full-database JSON export and the accepted import shape.
type ExportData struct {
	SchemaVersion string     `json:"schemaVersion,omitempty"`
	ExportedAt    time.Time  `json:"exportedAt"`
	Items         []Item     `json:"items"`
	Categories    []Category `json:"categories"`
	Reminders     []Reminder `json:"reminders"`
	Settings      *Settings  `json:"settings,omitempty"`
}

// PreflightResult summarizes what an import would add before running it.
type PreflightResult struct {
	NewItems      int `json:"newItems"`
	NewCategories int `json:"newCategories"`
	NewReminders  int `json:"newReminders"`

	// Conflicts counts records whose id already exists; they are skipped.
	Conflicts int `json:"conflicts"`
}

// ImportError describes one record that could not be imported.
type ImportError struct {
	Kind   string `json:"kind"` // category, item or reminder
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// ImportReport is returned by an import. Failed records are listed rather than
// aborting the batch.
type ImportReport struct {
	Categories int `json:"categories"`
	Items      int `json:"items"`
	Reminders  int `json:"reminders"`

	// Skipped counts records whose id already exists.
	Skipped int `json:"skipped"`

	// SettingsApplied is true when the document's settings replaced the
	// stored ones.
	SettingsApplied bool          `json:"settingsApplied"`
	Errors          []ImportError `json:"errors,omitempty"`
}

// Failed returns the number of records that were rejected.
func (r ImportReport) Failed() int { return len(r.Errors) }

// ReminderCounts holds per-status reminder totals.
type ReminderCounts struct {
	Overdue   int `json:"overdue"`
	Upcoming  int `json:"upcoming"`
	Completed int `json:"completed"`
	Scheduled int `json:"scheduled"`
}

// DashboardStats is the summary shown on the dashboard view.
type DashboardStats struct {
	TotalItems        int            `json:"totalItems"`
	TotalQuantity     int            `json:"totalQuantity"`
	TotalValue        float64        `json:"totalValue"`
	NewItemsThisMonth int            `json:"newItemsThisMonth"`
	Categories        int            `json:"categories"`
	Reminders         ReminderCounts `json:"reminders"`
}
