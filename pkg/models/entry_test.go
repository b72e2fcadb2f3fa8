package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampUnmarshalFormats(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2024-03-01T10:30:00Z"`, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"legacy datetime", `"2024-03-01 10:30:00"`, time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"unix epoch", `1709288100`, time.Unix(1709288100, 0).UTC()},
		{"null", `null`, time.Time{}},
		{"empty string", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.in), &ts); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if !ts.Time.Equal(tt.want) {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, ts.Time, tt.want)
			}
		})
	}
}

func TestTimestampUnmarshalInvalid(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"not a date"`), &ts); err == nil {
		t.Error("expected error for garbage timestamp")
	}
}

func TestTimestampMarshal(t *testing.T) {
	ts := Timestamp{Time: time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)}
	data, err := json.Marshal(ts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"2024-03-01T10:30:00Z"` {
		t.Errorf("Marshal = %s", data)
	}

	data, err = json.Marshal(Timestamp{})
	if err != nil {
		t.Fatalf("Marshal zero: %v", err)
	}
	if string(data) != "null" {
		t.Errorf("Marshal zero = %s, want null", data)
	}
}

func TestEntryRoundTrip(t *testing.T) {
	in := `{"id":3,"parent_id":1,"name":"a.txt","is_folder":false,"size":100,"created_at":"2024-03-01 10:30:00"}`

	var e Entry
	if err := json.Unmarshal([]byte(in), &e); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if e.ID != 3 || e.ParentID != 1 || e.Name != "a.txt" || e.IsFolder || e.Size != 100 {
		t.Errorf("entry = %+v", e)
	}
	if e.CreatedAt.IsZero() {
		t.Error("created_at was not normalized to a time value")
	}
	if e.IsRoot() {
		t.Error("entry with parent should not be root")
	}
}
