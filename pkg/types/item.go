package types

import (
	"strings"
	"time"
)

// ItemStatus is the lifecycle label of an item. Any status may change to any
// other; there is no transition table.
type ItemStatus string

// Item statuses.
const (
	ItemStatusActive    ItemStatus = "active"
	ItemStatusInactive  ItemStatus = "inactive"
	ItemStatusDiscarded ItemStatus = "discarded"
)

// Valid reports whether s is a recognized status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemStatusActive, ItemStatusInactive, ItemStatusDiscarded:
		return true
	}
	return false
}

// DefaultQuantity is applied when an input leaves Quantity at zero.
const DefaultQuantity = 1

// Item is one inventory entry.
type Item struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	CategoryID     *string        `json:"categoryId"`
	Quantity       int            `json:"quantity"`
	Description    string         `json:"description,omitempty"`
	Location       string         `json:"location,omitempty"`
	Status         ItemStatus     `json:"status"`
	PurchasePrice  *float64       `json:"purchasePrice,omitempty"`
	PurchaseDate   *string        `json:"purchaseDate,omitempty"`   // YYYY-MM-DD
	WarrantyExpiry *string        `json:"warrantyExpiry,omitempty"` // YYYY-MM-DD
	CustomFields   map[string]any `json:"customFields,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// ItemInput carries the fields of a new item. Zero Quantity and empty Status
// take their defaults (1 and active).
type ItemInput struct {
	Name           string         `json:"name"`
	CategoryID     *string        `json:"categoryId,omitempty"`
	Quantity       int            `json:"quantity,omitempty"`
	Description    string         `json:"description,omitempty"`
	Location       string         `json:"location,omitempty"`
	Status         ItemStatus     `json:"status,omitempty"`
	PurchasePrice  *float64       `json:"purchasePrice,omitempty"`
	PurchaseDate   *string        `json:"purchaseDate,omitempty"`
	WarrantyExpiry *string        `json:"warrantyExpiry,omitempty"`
	CustomFields   map[string]any `json:"customFields,omitempty"`
}

// WithDefaults returns a copy of in with Quantity and Status defaulted.
func (in ItemInput) WithDefaults() ItemInput {
	if in.Quantity == 0 {
		in.Quantity = DefaultQuantity
	}
	if in.Status == "" {
		in.Status = ItemStatusActive
	}
	return in
}

// Validate checks the structural rules for a new item after defaults are
// applied. Foreign keys are checked by the repository.
func (in ItemInput) Validate() error {
	in = in.WithDefaults()
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", ErrInvalidName)
	}
	if in.Quantity < 1 {
		return invalid("quantity", ErrInvalidQuantity)
	}
	if !in.Status.Valid() {
		return invalid("status", ErrInvalidStatus)
	}
	if in.PurchasePrice != nil && *in.PurchasePrice < 0 {
		return invalid("purchasePrice", ErrInvalidPrice)
	}
	if in.PurchaseDate != nil && !ValidDate(*in.PurchaseDate) {
		return invalid("purchaseDate", ErrInvalidDate)
	}
	if in.WarrantyExpiry != nil && !ValidDate(*in.WarrantyExpiry) {
		return invalid("warrantyExpiry", ErrInvalidDate)
	}
	return validateCustomFields(in.CustomFields)
}

// ItemPatch lists the fields an update should change. Nil pointers and unset
// Nullable values leave the stored column as it is.
type ItemPatch struct {
	Name           *string                  `json:"name,omitempty"`
	CategoryID     Nullable[string]         `json:"categoryId,omitzero"`
	Quantity       *int                     `json:"quantity,omitempty"`
	Description    *string                  `json:"description,omitempty"`
	Location       *string                  `json:"location,omitempty"`
	Status         *ItemStatus              `json:"status,omitempty"`
	PurchasePrice  Nullable[float64]        `json:"purchasePrice,omitzero"`
	PurchaseDate   Nullable[string]         `json:"purchaseDate,omitzero"`
	WarrantyExpiry Nullable[string]         `json:"warrantyExpiry,omitzero"`
	CustomFields   Nullable[map[string]any] `json:"customFields,omitzero"`
}

// Validate checks every supplied field.
func (p ItemPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", ErrInvalidName)
	}
	if p.Quantity != nil && *p.Quantity < 1 {
		return invalid("quantity", ErrInvalidQuantity)
	}
	if p.Status != nil && !p.Status.Valid() {
		return invalid("status", ErrInvalidStatus)
	}
	if v := p.PurchasePrice.Ptr(); v != nil && *v < 0 {
		return invalid("purchasePrice", ErrInvalidPrice)
	}
	if v := p.PurchaseDate.Ptr(); v != nil && !ValidDate(*v) {
		return invalid("purchaseDate", ErrInvalidDate)
	}
	if v := p.WarrantyExpiry.Ptr(); v != nil && !ValidDate(*v) {
		return invalid("warrantyExpiry", ErrInvalidDate)
	}
	if v := p.CustomFields.Ptr(); v != nil {
		return validateCustomFields(*v)
	}
	return nil
}

// ItemFilter narrows FindAll and Count. Empty fields are ignored; supplied
// fields combine with AND.
type ItemFilter struct {
	// Search matches a substring of name, description or location.
	Search     string     `json:"search,omitempty"`
	CategoryID string     `json:"categoryId,omitempty"`
	Status     ItemStatus `json:"status,omitempty"`
	Location   string     `json:"location,omitempty"`
}

// ItemPage is one page of a paged item listing.
type ItemPage struct {
	Items      []Item `json:"data"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"pageSize"`
	TotalPages int    `json:"totalPages"`
}

// DefaultRecentItems is the number of items a recent-items listing shows.
const DefaultRecentItems = 5

// DateLayout is the calendar date format used by every date column.
const DateLayout = "2006-01-02"

// ValidDate reports whether s is a YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

func validateCustomFields(fields map[string]any) error {
	for k, v := range fields {
		if strings.TrimSpace(k) == "" {
			return invalid("customFields", ErrInvalidCustomField)
		}
		switch v.(type) {
		case string, bool, float64, float32, int, int32, int64:
		default:
			return invalid("customFields."+k, ErrInvalidCustomField)
		}
	}
	return nil
}
