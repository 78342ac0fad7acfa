package storage

import "context"

// Mode names the kind of target currently receiving snapshots.
type Mode string

// Target modes.
const (
	ModeLocal    Mode = "local"
	ModeExternal Mode = "external"
	ModeMemory   Mode = "memory"
)

// Target stores one envelope-wrapped snapshot.
type Target interface {
	Kind() Mode
	// Label is a human-readable description such as a path.
	Label() string
	// Load returns the stored image, ErrNoSnapshot or ErrCorruptSnapshot.
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored snapshot with the encoded envelope.
	Save(ctx context.Context, envelope []byte) error
	Close() error
}

// Status describes where snapshots currently go.
type Status struct {
	Mode  Mode   `json:"mode"`
	Label string `json:"label"`
}
