// Package models contains the data types shared between server and clients.
package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// Entry represents a single file or folder in the hierarchical index.
// ParentID 0 denotes a root-level entry.
type Entry struct {
	ID         int64     `json:"id"`
	ParentID   int64     `json:"parent_id"`
	Name       string    `json:"name"`
	IsFolder   bool      `json:"is_folder"`
	Size       int64     `json:"size"`
	CreatedAt  Timestamp `json:"created_at"`
	Downloaded bool      `json:"downloaded,omitempty"`
	Modified   bool      `json:"modified,omitempty"`
}

// IsRoot returns true if the entry has no parent in the loaded tree.
func (e *Entry) IsRoot() bool {
	return e.ParentID == 0
}

const legacyTimeFormat = "2006-01-02 15:04:05"

// Timestamp is a time.Time that tolerates the formats the server may
// deliver: RFC 3339, a bare "2006-01-02 15:04:05" string, or a Unix epoch
// number. Entries are normalized at the JSON boundary so everything past
// ingestion works with a structured time value.
type Timestamp struct {
	time.Time
}

// MarshalJSON writes the timestamp as RFC 3339, or null for the zero value.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON parses RFC 3339 strings, legacy datetime strings, and Unix
// epoch numbers. null leaves the zero value in place.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	if data[0] == '"' {
		s := string(data[1 : len(data)-1])
		if s == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339, s); err == nil {
			t.Time = parsed
			return nil
		}
		parsed, err := time.ParseInLocation(legacyTimeFormat, s, time.UTC)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}

	epoch, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	t.Time = time.Unix(epoch, 0).UTC()
	return nil
}
