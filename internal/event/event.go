// Package event defines the event model shared by the ingestion pipeline,
// the property store, and the query compiler: a ULID-keyed event, a tagged
// scalar union for property values, and the timestamp encoding.
package event

import (
	"fmt"
	"time"
)

// Reserved property names written by the ingestion pipeline itself. Client
// payloads must not use them.
const (
	PropertyName    = "name"
	PropertySession = "session"
)

// Event is one ingested occurrence. The key is a ULID, so keys sort
// lexicographically in creation order. Events are immutable once written.
type Event struct {
	Key  string    `json:"key"`
	Date time.Time `json:"date"`
}

// TimeLayout is the on-disk timestamp encoding. It is fixed-width UTC so
// that lexical ordering of encoded strings matches chronological ordering,
// which the date-range scan relies on.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime accepts any RFC 3339 timestamp and normalizes it to UTC.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
