package sqlite

import (
	"strings"

	"github.com/mesh-intelligence/othings/pkg/types"
)

// whereBuilder collects predicates joined with AND.
type whereBuilder struct {
	conditions []string
	args       []any
}

func (w *whereBuilder) add(cond string, args ...any) {
	w.conditions = append(w.conditions, cond)
	w.args = append(w.args, args...)
}

// String returns the WHERE clause, or "" when no predicate was added.
func (w *whereBuilder) String() string {
	if len(w.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conditions, " AND ")
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// itemWhere builds the predicates for an item filter. FindAll and Count share
// it so both see the same rows.
func itemWhere(f types.ItemFilter) *whereBuilder {
	w := &whereBuilder{}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := "%" + escapeLike(s) + "%"
		w.add(`(name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\' OR location LIKE ? ESCAPE '\')`, p, p, p)
	}
	if f.CategoryID != "" {
		w.add("category_id = ?", f.CategoryID)
	}
	if f.Status != "" {
		w.add("status = ?", string(f.Status))
	}
	if f.Location != "" {
		w.add("location = ?", f.Location)
	}
	return w
}
