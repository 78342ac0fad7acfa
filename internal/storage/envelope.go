package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// EnvelopeVersion is the only snapshot format this build reads and writes.
const EnvelopeVersion = "v1"

// ByteArray encodes as a JSON array of numbers rather than base64.
type ByteArray []byte

// MarshalJSON writes b as [n, n, ...].
func (b ByteArray) MarshalJSON() ([]byte, error) {
	out := make([]byte, 0, len(b)*4+2)
	out = append(out, '[')
	for i, v := range b {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return append(out, ']'), nil
}

// UnmarshalJSON reads a JSON array of integers in the range 0-255.
func (b *ByteArray) UnmarshalJSON(data []byte) error {
	var nums []int
	if err := json.Unmarshal(data, &nums); err != nil {
		return err
	}
	buf := make([]byte, len(nums))
	for i, n := range nums {
		if n < 0 || n > 255 {
			return fmt.Errorf("byte %d out of range: %d", i, n)
		}
		buf[i] = byte(n)
	}
	*b = buf
	return nil
}

// Envelope wraps an engine image for storage.
type Envelope struct {
	Version string     `json:"version"`
	Content ByteArray  `json:"content"`
	SavedAt *time.Time `json:"savedAt,omitempty"`
}

// Encode wraps image in a v1 envelope.
func Encode(image []byte, savedAt time.Time) ([]byte, error) {
	ts := savedAt.UTC()
	data, err := json.Marshal(Envelope{Version: EnvelopeVersion, Content: image, SavedAt: &ts})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return data, nil
}

// Decode unwraps an envelope and returns the engine image. Anything other
// than a non-empty v1 envelope yields ErrCorruptSnapshot.
func Decode(data []byte) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if env.Version != EnvelopeVersion {
		return nil, fmt.Errorf("%w: version %q", ErrCorruptSnapshot, env.Version)
	}
	if len(env.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", ErrCorruptSnapshot)
	}
	return env.Content, nil
}
