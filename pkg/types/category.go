package types

import (
	"regexp"
	"strings"
	"time"
)

// DefaultCategoryColor is used when a category input has no color.
const DefaultCategoryColor = "#5c5f66"

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// Category is an optionally hierarchical label for items.
type Category struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Icon     string  `json:"icon,omitempty"`
	ParentID *string `json:"parentId"`

	// IsCustom is false for the built-in categories seeded on first start.
	IsCustom  bool      `json:"isCustom"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CategoryInput carries the fields of a new category.
type CategoryInput struct {
	Name     string  `json:"name"`
	Color    string  `json:"color,omitempty"`
	Icon     string  `json:"icon,omitempty"`
	ParentID *string `json:"parentId,omitempty"`
}

// WithDefaults returns a copy of in with Color defaulted.
func (in CategoryInput) WithDefaults() CategoryInput {
	if in.Color == "" {
		in.Color = DefaultCategoryColor
	}
	return in
}

// Validate checks name and color.
func (in CategoryInput) Validate() error {
	in = in.WithDefaults()
	if strings.TrimSpace(in.Name) == "" {
		return invalid("name", ErrInvalidName)
	}
	if !hexColor.MatchString(in.Color) {
		return invalid("color", ErrInvalidColor)
	}
	return nil
}

// CategoryPatch lists the category fields an update should change.
type CategoryPatch struct {
	Name     *string          `json:"name,omitempty"`
	Color    *string          `json:"color,omitempty"`
	Icon     *string          `json:"icon,omitempty"`
	ParentID Nullable[string] `json:"parentId,omitzero"`
}

// Validate checks every supplied field.
func (p CategoryPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return invalid("name", ErrInvalidName)
	}
	if p.Color != nil && !hexColor.MatchString(*p.Color) {
		return invalid("color", ErrInvalidColor)
	}
	return nil
}

// BuiltInCategory describes a category seeded into an empty database.
type BuiltInCategory struct {
	Name  string
	Icon  string
	Color string
}

// DefaultCategories are seeded when the categories table is empty at startup.
var DefaultCategories = []BuiltInCategory{
	{Name: "Electronics", Icon: "Laptop", Color: "#6366f1"},
	{Name: "Furniture", Icon: "Sofa", Color: "#a16207"},
	{Name: "Clothing", Icon: "Shirt", Color: "#db2777"},
	{Name: "Books", Icon: "BookOpen", Color: "#0891b2"},
	{Name: "Tools", Icon: "Wrench", Color: "#ea580c"},
	{Name: "Kitchen", Icon: "UtensilsCrossed", Color: "#16a34a"},
	{Name: "Sports", Icon: "Dumbbell", Color: "#dc2626"},
	{Name: "Art", Icon: "Palette", Color: "#9333ea"},
	{Name: "Collectibles", Icon: "Trophy", Color: "#ca8a04"},
	{Name: "Documents", Icon: "FileText", Color: "#475569"},
	{Name: "Other", Icon: "Package", Color: DefaultCategoryColor},
}
