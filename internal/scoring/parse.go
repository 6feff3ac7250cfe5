package scoring

import (
	"strconv"
	"strings"
)

// ParseNumeric converts a raw upstream field to a float. Percent and dollar
// signs are stripped; "", "N/A", and anything else unparseable report false.
func ParseNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "N/A") {
		return 0, false
	}
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(strings.TrimPrefix(s, "+"), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
