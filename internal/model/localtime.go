package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const localTimeLayout = "2006-01-02T15:04:05"

// LocalTime is a zone-less timestamp as produced by the backend.
//
// Accepted encodings:
// - "2025-01-31T14:05:00" (optionally with fractional seconds or a trailing zone)
// - "2025-01-31"
// - [2025, 1, 31, 14, 5] with optional seconds and nanoseconds
//
// It always marshals to the string form.
type LocalTime struct {
	t time.Time
}

func NewLocalTime(t time.Time) *LocalTime {
	return &LocalTime{t: time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.Local)}
}

func (lt *LocalTime) Time() time.Time {
	if lt == nil {
		return time.Time{}
	}
	return lt.t
}

func (lt *LocalTime) IsZero() bool {
	return lt == nil || lt.t.IsZero()
}

// Format renders the value for display; "-" when missing.
func (lt *LocalTime) Format() string {
	if lt.IsZero() {
		return "-"
	}
	if lt.t.Hour() == 0 && lt.t.Minute() == 0 && lt.t.Second() == 0 {
		return lt.t.Format("2006-01-02")
	}
	return lt.t.Format("2006-01-02 15:04")
}

func (lt LocalTime) MarshalJSON() ([]byte, error) {
	if lt.t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(lt.t.Format(localTimeLayout))
}

func (lt *LocalTime) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		lt.t = time.Time{}
		return nil
	}
	if b[0] == '[' {
		var parts []int
		if err := json.Unmarshal(b, &parts); err != nil {
			return fmt.Errorf("local time array: %w", err)
		}
		if len(parts) < 3 {
			return fmt.Errorf("local time array: need at least [y, m, d], got %d parts", len(parts))
		}
		for len(parts) < 7 {
			parts = append(parts, 0)
		}
		lt.t = time.Date(parts[0], time.Month(parts[1]), parts[2], parts[3], parts[4], parts[5], parts[6], time.Local)
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("local time: %w", err)
	}
	t, err := ParseLocalTime(s)
	if err != nil {
		return err
	}
	lt.t = t
	return nil
}

// ParseLocalTime parses the string encodings accepted by LocalTime, plus the
// "2006-01-02 15:04" form typed into forms.
func ParseLocalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.In(time.Local), nil
	}
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		localTimeLayout,
		"2006-01-02T15:04",
		"2006-01-02 15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date/time: %q", s)
}
