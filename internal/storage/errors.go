package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSnapshot means the target holds no snapshot yet.
	ErrNoSnapshot = errors.New("no snapshot stored")

	// ErrCorruptSnapshot means the stored bytes are not a readable v1
	// envelope. Callers treat it like ErrNoSnapshot.
	ErrCorruptSnapshot = errors.New("snapshot is corrupt or has an unknown version")

	// ErrPermission means the external file can no longer be read or written.
	ErrPermission = errors.New("permission denied for external file")

	// ErrPickerUnsupported means this runtime cannot choose an external file.
	ErrPickerUnsupported = errors.New("file picker is not supported")
)

// DegradedError reports that the external target failed and the operation
// completed against the local store instead. It is not fatal.
type DegradedError struct {
	Target string
	Err    error
}

// Error describes the failed target and the cause.
func (e *DegradedError) Error() string {
	return fmt.Sprintf("external sync to %s degraded to local storage: %v", e.Target, e.Err)
}

// Unwrap returns the cause.
func (e *DegradedError) Unwrap() error { return e.Err }

// IsDegraded reports whether err carries a *DegradedError.
func IsDegraded(err error) bool {
	var d *DegradedError
	return errors.As(err, &d)
}
