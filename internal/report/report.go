// Package report computes grouped summaries of the inventory. Queries run
// through GORM on top of the engine's pinned connection.
package report

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	engine "github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// UncategorizedLabel names the group of items without a category.
const UncategorizedLabel = "Uncategorized"

// NoLocationLabel names the group of items without a location.
const NoLocationLabel = "(none)"

// Group is one row of a grouped report.
type Group struct {
	// Key is the grouping value: a category id, a status or a location.
	// It is empty for the uncategorized and no-location groups.
	Key      string          `json:"key" gorm:"column:group_key"`
	Label    string          `json:"label" gorm:"column:group_label"`
	Items    int             `json:"items" gorm:"column:item_count"`
	Quantity int             `json:"quantity" gorm:"column:quantity_total"`
	Value    decimal.Decimal `json:"value" gorm:"column:value_total"`
}

// Reporter runs reports against an engine.
type Reporter struct {
	engine *engine.Engine
	db     *gorm.DB
}

// New wraps the engine connection in a GORM session. The connection pool
// stays owned by the engine.
func New(e *engine.Engine) (*Reporter, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: e.DB()}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening report session: %w", err)
	}
	return &Reporter{engine: e, db: db}, nil
}

// read runs fn under the engine lock with a context-bound session.
func (r *Reporter) read(ctx context.Context, fn func(db *gorm.DB) error) error {
	return r.engine.Read(func(*sql.DB) error {
		return fn(r.db.WithContext(ctx))
	})
}

const groupAggregates = "COUNT(*) AS item_count, " +
	"COALESCE(SUM(i.quantity), 0) AS quantity_total, " +
	"COALESCE(SUM(i.quantity * i.purchase_price), 0.0) AS value_total"

// ByCategory groups items by category. Items without a category form one
// group labelled UncategorizedLabel. Groups are ordered by item count, then
// label.
func (r *Reporter) ByCategory(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Table("items AS i").
			Select("COALESCE(i.category_id, '') AS group_key, COALESCE(c.name, ?) AS group_label, "+groupAggregates, UncategorizedLabel).
			Joins("LEFT JOIN categories AS c ON c.id = i.category_id").
			Group("i.category_id, c.name").
			Order("item_count DESC, group_label ASC").
			Scan(&groups).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reporting by category: %w", err)
	}
	return groups, nil
}

// ByStatus groups items by status.
func (r *Reporter) ByStatus(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Table("items AS i").
			Select("i.status AS group_key, i.status AS group_label, " + groupAggregates).
			Group("i.status").
			Order("item_count DESC, group_label ASC").
			Scan(&groups).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reporting by status: %w", err)
	}
	return groups, nil
}

// ByLocation groups items by location. Items with an empty location form
// one group labelled NoLocationLabel.
func (r *Reporter) ByLocation(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	err := r.read(ctx, func(db *gorm.DB) error {
		return db.Table("items AS i").
			Select("i.location AS group_key, CASE WHEN i.location = '' THEN ? ELSE i.location END AS group_label, "+groupAggregates, NoLocationLabel).
			Group("i.location").
			Order("item_count DESC, group_label ASC").
			Scan(&groups).Error
	})
	if err != nil {
		return nil, fmt.Errorf("reporting by location: %w", err)
	}
	return groups, nil
}

type totals struct {
	Items    int             `gorm:"column:item_count"`
	Quantity int             `gorm:"column:quantity_total"`
	Value    decimal.Decimal `gorm:"column:value_total"`
	New      int             `gorm:"column:new_items"`
}

// Dashboard returns the summary counts as of today. New items are those
// created since the first day of today's month; reminder counts use the same
// buckets as the reminder status view.
func (r *Reporter) Dashboard(ctx context.Context, today time.Time) (types.DashboardStats, error) {
	var (
		t          totals
		categories int64
	)
	monthStart := engine.StartOfMonth(today.UTC()).Format(engine.TimeLayout)
	err := r.read(ctx, func(db *gorm.DB) error {
		err := db.Table("items AS i").
			Select(groupAggregates+", COALESCE(SUM(CASE WHEN i.created_at >= ? THEN 1 ELSE 0 END), 0) AS new_items", monthStart).
			Scan(&t).Error
		if err != nil {
			return err
		}
		return db.Table("categories").Count(&categories).Error
	})
	if err != nil {
		return types.DashboardStats{}, fmt.Errorf("computing dashboard: %w", err)
	}

	buckets, err := r.engine.Reminders().GetByStatusAt(ctx, today)
	if err != nil {
		return types.DashboardStats{}, fmt.Errorf("computing dashboard: %w", err)
	}

	return types.DashboardStats{
		TotalItems:        t.Items,
		TotalQuantity:     t.Quantity,
		TotalValue:        t.Value.Round(2).InexactFloat64(),
		NewItemsThisMonth: t.New,
		Categories:        int(categories),
		Reminders: types.ReminderCounts{
			Overdue:   len(buckets.Overdue),
			Upcoming:  len(buckets.Upcoming),
			Completed: len(buckets.Completed),
			Scheduled: len(buckets.Scheduled),
		},
	}, nil
}

// Total sums the value column of groups.
func Total(groups []Group) decimal.Decimal {
	sum := decimal.Zero
	for _, g := range groups {
		sum = sum.Add(g.Value)
	}
	return sum
}
