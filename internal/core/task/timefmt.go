package task

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// TimeLayout is the persisted and wire form of every timestamp.
const TimeLayout = time.RFC3339

// naiveLayouts are accepted on input and interpreted in the configured zone.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// FormatTime normalizes t to UTC at second precision so that lexical order of
// the stored text matches chronological order.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// ParseTime parses an ISO-8601 timestamp. Values carrying an offset keep it;
// naive values are read in loc. A nil loc means UTC.
func ParseTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}

	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", s); err == nil {
		return t, nil
	}
	// Fractional seconds without offset, as written by Python isoformat().
	if t, err := time.ParseInLocation("2006-01-02T15:04:05.999999999", s, loc); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02 15:04:05.999999999", s, loc); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// ParseOptionalTime returns nil for an empty string.
func ParseOptionalTime(s string, loc *time.Location) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := ParseTime(s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// LoadLocation resolves a zone name, falling back to UTC when the zone
// database does not know it.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
