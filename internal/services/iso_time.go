package services

import (
	"fmt"
	"time"
)

// ISOLayout renders instants as UTC ISO-8601 with millisecond precision,
// e.g. 2024-03-09T10:00:00.000Z.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// ISOTime marshals to JSON in ISOLayout regardless of the stored location.
type ISOTime time.Time

func (t ISOTime) Time() time.Time {
	return time.Time(t)
}

func (t ISOTime) String() string {
	return time.Time(t).UTC().Format(ISOLayout)
}

func (t ISOTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *ISOTime) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("iso time: expected JSON string, got %s", data)
	}
	parsed, err := time.Parse(time.RFC3339Nano, string(data[1:len(data)-1]))
	if err != nil {
		return fmt.Errorf("iso time: %w", err)
	}
	*t = ISOTime(parsed.UTC())
	return nil
}
