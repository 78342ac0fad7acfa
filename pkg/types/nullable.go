package types

import "encoding/json"

// Nullable is a patch value for a column that may hold NULL. The zero value
// means "not supplied"; Null means "set to NULL"; Set means "set to v".
type Nullable[T any] struct {
	set   bool
	value *T
}

// Set returns a Nullable carrying v.
func Set[T any](v T) Nullable[T] {
	return Nullable[T]{set: true, value: &v}
}

// Null returns a Nullable that clears the column.
func Null[T any]() Nullable[T] {
	return Nullable[T]{set: true}
}

// FromPtr returns Null for a nil pointer and Set(*p) otherwise.
func FromPtr[T any](p *T) Nullable[T] {
	if p == nil {
		return Null[T]()
	}
	return Set(*p)
}

// IsSet reports whether the patch supplies a value (including NULL).
func (n Nullable[T]) IsSet() bool { return n.set }

// IsZero reports whether the patch leaves the column untouched. It lets
// encoding/json drop unsupplied fields with the omitzero option.
func (n Nullable[T]) IsZero() bool { return !n.set }

// Ptr returns the supplied value, or nil when the patch sets NULL.
func (n Nullable[T]) Ptr() *T {
	if n.value == nil {
		return nil
	}
	v := *n.value
	return &v
}

// MarshalJSON encodes NULL as JSON null.
func (n Nullable[T]) MarshalJSON() ([]byte, error) {
	if n.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*n.value)
}

// UnmarshalJSON marks the field as supplied; JSON null becomes NULL.
func (n *Nullable[T]) UnmarshalJSON(data []byte) error {
	n.set = true
	if string(data) == "null" {
		n.value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	n.value = &v
	return nil
}
