package models

import (
	"fmt"
	"strings"
	"time"
)

// FlexTime is a time.Time that unmarshals from any of the timestamp layouts
// observed in upstream data: RFC 3339 (with or without sub-seconds or zone)
// and the legacy "2006-01-02 15:04:05" / "2006-01-02 15:04" forms.
// It always marshals as RFC 3339 UTC.
type FlexTime struct {
	time.Time
}

var flexLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseFlexTime parses s against the accepted layouts. Layouts without an
// explicit zone are interpreted as UTC.
func ParseFlexTime(s string) (FlexTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return FlexTime{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range flexLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return FlexTime{Time: t.UTC()}, nil
		}
	}
	return FlexTime{}, fmt.Errorf("unrecognized timestamp format: %q", s)
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + t.UTC().Format(time.RFC3339) + `"`), nil
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*t = FlexTime{}
		return nil
	}
	parsed, err := ParseFlexTime(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Day returns the UTC calendar day as "2006-01-02", used for grouping
// pipeline work into day-sized batches.
func (t FlexTime) Day() string {
	return t.UTC().Format("2006-01-02")
}
