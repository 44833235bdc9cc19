package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// naiveLayout is the zone-less ISO form the backend emits (Python isoformat of a UTC datetime).
const naiveLayout = "2006-01-02T15:04:05.999999999"

// Timestamp decodes RFC3339 strings and zone-less ISO strings, the latter as UTC.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}

	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}

	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}

	parsed, err := time.ParseInLocation(naiveLayout, raw, time.UTC)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// MarshalJSON implements json.Marshaler using RFC3339.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}
