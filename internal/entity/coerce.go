package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Number is a real-valued field. Accepts JSON numbers and numeric strings.
type Number float64

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	f, err := parseNumber(data)
	if err != nil {
		return err
	}
	*n = Number(f)
	return nil
}

// Count is a whole-number field (points, capacity). Accepts integral JSON
// numbers ("3", 3, 3.0) and rejects fractions.
type Count int64

// UnmarshalJSON implements json.Unmarshaler.
func (c *Count) UnmarshalJSON(data []byte) error {
	f, err := parseNumber(data)
	if err != nil {
		return err
	}
	if f != math.Trunc(f) {
		return fmt.Errorf("expected a whole number, got %v", f)
	}
	*c = Count(f)
	return nil
}

func parseNumber(data []byte) (float64, error) {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return 0, err
		}
		raw = strings.TrimSpace(s)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("expected a number, got %s", string(data))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected a finite number, got %s", string(data))
	}
	return f, nil
}

// DateTime is a timestamp normalized to RFC 3339 UTC.
type DateTime string

// UnmarshalJSON implements json.Unmarshaler.
func (d *DateTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected an ISO-8601 date string, got %s", string(data))
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = DateTime(t.UTC().Format(time.RFC3339Nano))
	return nil
}

// Day is a calendar date normalized to YYYY-MM-DD.
type Day string

// UnmarshalJSON implements json.Unmarshaler.
func (d *Day) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected an ISO-8601 date string, got %s", string(data))
	}
	t, err := ParseDateTime(s)
	if err != nil {
		return err
	}
	*d = Day(t.Format(DayLayout))
	return nil
}

// DayLayout is the storage layout of TimeEntry dates.
const DayLayout = "2006-01-02"

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DayLayout,
}

// ParseDateTime parses the ISO-8601 forms accepted at the boundary:
// full RFC 3339 (offset or trailing Z), naive date-times (read as UTC),
// and bare dates (midnight UTC).
func ParseDateTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparsable date %q", s)
}
