package transfer

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/mesh-intelligence/othings/internal/sqlite"
	"github.com/mesh-intelligence/othings/pkg/types"
)

// Errors returned when reading an export document.
var (
	ErrInvalidExport      = errors.New("export document has no items array")
	ErrUnsupportedVersion = errors.New("unsupported export schema version")
)

// TagsField is the custom field whose value fills the CSV Tags column.
const TagsField = "tags"

// CSVHeader is the fixed column order of the item CSV export.
var CSVHeader = []string{
	"Name", "Description", "Category", "Tags", "Quantity", "Location", "Status",
	"Purchase Price", "Total Value", "Purchase Date", "Warranty Expiry",
	"ID", "Category ID", "Created At", "Updated At",
}

// Export reads the whole database into an export document stamped with the
// engine clock. The LLM API key never leaves the store.
func Export(ctx context.Context, e *sqlite.Engine) (types.ExportData, error) {
	items, err := e.Items().FindAll(ctx, types.ItemFilter{})
	if err != nil {
		return types.ExportData{}, fmt.Errorf("exporting items: %w", err)
	}
	categories, err := e.Categories().FindAll(ctx)
	if err != nil {
		return types.ExportData{}, fmt.Errorf("exporting categories: %w", err)
	}
	reminders, err := e.Reminders().FindAll(ctx)
	if err != nil {
		return types.ExportData{}, fmt.Errorf("exporting reminders: %w", err)
	}
	settings, err := e.Settings().Get(ctx)
	if err != nil {
		return types.ExportData{}, fmt.Errorf("exporting settings: %w", err)
	}
	settings.LLMAPIKey = ""
	return types.ExportData{
		SchemaVersion: types.ExportSchemaVersion,
		ExportedAt:    e.Now().UTC(),
		Items:         items,
		Categories:    categories,
		Reminders:     reminders,
		Settings:      &settings,
	}, nil
}

// WriteJSON writes data as indented JSON.
func WriteJSON(w io.Writer, data types.ExportData) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("writing JSON export: %w", err)
	}
	return nil
}

// ReadJSON parses an export document. A document without an items array or
// with an unknown schema version is rejected before anything is imported.
func ReadJSON(r io.Reader) (types.ExportData, error) {
	var data types.ExportData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return types.ExportData{}, fmt.Errorf("reading JSON export: %w", err)
	}
	if data.Items == nil {
		return types.ExportData{}, ErrInvalidExport
	}
	if data.SchemaVersion != "" && data.SchemaVersion != types.ExportSchemaVersion {
		return types.ExportData{}, fmt.Errorf("%w: %q", ErrUnsupportedVersion, data.SchemaVersion)
	}
	return data, nil
}

// WriteCSV writes one row per item under CSVHeader. Category names are
// resolved from categories; prices are written with two decimals.
func WriteCSV(w io.Writer, items []types.Item, categories []types.Category) error {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, it := range items {
		if err := cw.Write(csvRow(it, names)); err != nil {
			return fmt.Errorf("writing CSV row %s: %w", it.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("writing CSV export: %w", err)
	}
	return nil
}

func csvRow(it types.Item, categoryNames map[string]string) []string {
	var category, categoryID string
	if it.CategoryID != nil {
		categoryID = *it.CategoryID
		category = categoryNames[categoryID]
	}
	var price, total string
	if it.PurchasePrice != nil {
		p := decimal.NewFromFloat(*it.PurchasePrice)
		price = p.StringFixed(2)
		total = p.Mul(decimal.NewFromInt(int64(it.Quantity))).StringFixed(2)
	}
	tags, _ := it.CustomFields[TagsField].(string)

	return []string{
		it.Name,
		it.Description,
		category,
		tags,
		strconv.Itoa(it.Quantity),
		it.Location,
		string(it.Status),
		price,
		total,
		deref(it.PurchaseDate),
		deref(it.WarrantyExpiry),
		it.ID,
		categoryID,
		it.CreatedAt.UTC().Format(sqlite.TimeLayout),
		it.UpdatedAt.UTC().Format(sqlite.TimeLayout),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
