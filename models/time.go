package models

import (
	"encoding/json"
	"time"
)

// Timestamp is a time.Time wrapper that accepts both Unix milliseconds and
// RFC3339 strings. The HR API is not consistent between endpoints.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler for Timestamp.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		t.Time = time.Time{}
		return nil
	}

	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		t.Time = time.UnixMilli(millis)
		return nil
	}

	return json.Unmarshal(data, &t.Time)
}

// MarshalJSON implements json.Marshaler for Timestamp.
// It always writes RFC3339 so persisted snapshots stay human readable.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
