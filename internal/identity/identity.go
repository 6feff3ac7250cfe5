// Package identity derives stable deterministic identifiers for betting
// opportunities from their semantic fields.
package identity

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// fieldSep joins the identity fields before hashing. Fields are escaped so a
// separator occurring inside a field can never make two different tuples
// hash to the same bytes.
const fieldSep = "|"

// escapeField makes the field safe to join with fieldSep.
func escapeField(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, fieldSep, `\`+fieldSep)
}

// BetID returns the 128-bit hex identifier for a betting opportunity.
// The same five fields always yield the same ID across runs and processes;
// changing any single field yields a different ID.
func BetID(eventTime, eventTeams, sportLeague, betType, description string) string {
	parts := []string{
		escapeField(eventTime),
		escapeField(eventTeams),
		escapeField(sportLeague),
		escapeField(betType),
		escapeField(description),
	}
	sum := md5.Sum([]byte(strings.Join(parts, fieldSep)))
	return hex.EncodeToString(sum[:])
}
