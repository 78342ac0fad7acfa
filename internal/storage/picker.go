package storage

import (
	"context"
	"strings"
)

// Picker asks the user for an external snapshot file.
type Picker interface {
	PickFile(ctx context.Context) (string, error)
}

// PathPicker is a Picker that answers with a fixed path, as a CLI flag does.
type PathPicker string

func (p PathPicker) PickFile(_ context.Context) (string, error) {
	if strings.TrimSpace(string(p)) == "" {
		return "", ErrPickerUnsupported
	}
	return string(p), nil
}

// NoPicker is used where no picker is available.
type NoPicker struct{}

func (NoPicker) PickFile(_ context.Context) (string, error) {
	return "", ErrPickerUnsupported
}
